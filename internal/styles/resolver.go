package styles

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/prdraft/prdraft/internal/errors"
	"github.com/prdraft/prdraft/internal/models"
)

// DefaultTemplateID names the built-in template used when a request
// carries none.
const DefaultTemplateID = "default"

// Resolver validates tones and resolves template IDs against the built-in
// set plus any user-defined templates.
type Resolver struct {
	templates map[string]*models.Template
	logger    *slog.Logger
}

// templatesFile is the on-disk shape of the user template file.
type templatesFile struct {
	Templates []models.Template `yaml:"templates"`
}

// builtinTemplates are always available. The default template itself is
// owned by the prompt composer; the resolver only knows its ID.
var builtinTemplates = []models.Template{
	{
		ID:    "minimal",
		Name:  "Minimal",
		Title: "{dominant_kind}: summarize the change in one line",
		Body:  "## Changes\n",
	},
	{
		ID:    "release",
		Name:  "Release",
		Title: "{dominant_kind}: prepare release changes",
		Body:  "## Changes\n\n## Release notes\n\n## Testing\n",
	},
}

// NewResolver creates a resolver, layering user templates from path over
// the built-ins. A missing file is fine; a malformed one is a config error.
func NewResolver(path string) (*Resolver, error) {
	r := &Resolver{
		templates: make(map[string]*models.Template),
		logger:    slog.Default().With("component", "styles"),
	}

	for i := range builtinTemplates {
		t := builtinTemplates[i]
		r.templates[t.ID] = &t
	}

	if path != "" {
		if err := r.loadUserTemplates(path); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Resolver) loadUserTemplates(path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.ConfigErrorf("read templates file: %v", err)
	}

	var file templatesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return errors.ConfigErrorf("parse templates file %s: %v", path, err)
	}

	for i := range file.Templates {
		t := file.Templates[i]
		if t.ID == "" {
			return errors.ConfigErrorf("template %d in %s has no id", i, path)
		}
		if t.ID == DefaultTemplateID {
			return errors.ConfigErrorf("template id %q is reserved", DefaultTemplateID)
		}
		// User templates shadow built-ins with the same ID.
		r.templates[t.ID] = &t
	}

	r.logger.Debug("user templates loaded", "path", path, "count", len(file.Templates))
	return nil
}

// Resolve validates the requested tone and template and returns the
// style preference for one generation. Empty inputs take defaults;
// unknown values are invalid requests, never silent fallbacks.
func (r *Resolver) Resolve(tone models.Tone, templateID string) (models.StylePreference, error) {
	if tone == "" {
		tone = models.ToneConcise
	}
	if !models.ValidTone(tone) {
		return models.StylePreference{}, errors.InvalidRequestf(
			"unknown tone %q (want %s, %s, or %s)",
			tone, models.ToneConcise, models.ToneDetailed, models.ToneTechnical)
	}

	if templateID == "" || templateID == DefaultTemplateID {
		return models.StylePreference{Tone: tone}, nil
	}

	tmpl, ok := r.templates[templateID]
	if !ok {
		return models.StylePreference{}, errors.InvalidRequestf(
			"unknown template %q (available: %s)", templateID, strings.Join(r.TemplateIDs(), ", "))
	}

	return models.StylePreference{Tone: tone, Template: tmpl}, nil
}

// TemplateIDs returns all resolvable template IDs, sorted, including the
// default.
func (r *Resolver) TemplateIDs() []string {
	ids := make([]string, 0, len(r.templates)+1)
	ids = append(ids, DefaultTemplateID)
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultTemplatesPath returns the conventional user templates location.
func DefaultTemplatesPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s/.prdraft/templates.yaml", homeDir)
}
