package prompt

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/prdraft/prdraft/internal/config"
	"github.com/prdraft/prdraft/internal/models"
)

// ComposedRequest is the prompt pair handed to the generation client.
type ComposedRequest struct {
	System     string
	User       string
	Tone       models.Tone
	TemplateID string
}

// Composer renders a change summary and style preference into a prompt.
// Composition is deterministic: the same summary and style always produce
// byte-identical output, which is what makes result caching sound.
type Composer struct {
	maxFiles      int
	maxMessageLen int
	log           *slog.Logger
}

// NewComposer creates a composer with the given prompt limits.
func NewComposer(cfg config.PromptConfig) *Composer {
	return &Composer{
		maxFiles:      cfg.MaxFiles,
		maxMessageLen: cfg.MaxMessageLen,
		log:           slog.Default().With("component", "prompt"),
	}
}

// Compose builds the prompt for one generation.
func (c *Composer) Compose(summary *models.ChangeSummary, style models.StylePreference) *ComposedRequest {
	var b strings.Builder

	b.WriteString("Change digest:\n")
	fmt.Fprintf(&b, "- Dominant kind: %s\n", summary.DominantKind)
	fmt.Fprintf(&b, "- Commits: %d\n", summary.CommitCount)
	fmt.Fprintf(&b, "- Files touched: %d\n", summary.FileCount)
	fmt.Fprintf(&b, "- Total complexity: %.1f\n", summary.TotalComplexity)

	b.WriteString("- Kind counts:")
	for _, kind := range models.KindsByPriority() {
		if n := summary.KindCounts[kind]; n > 0 {
			fmt.Fprintf(&b, " %s=%d", kind, n)
		}
	}
	b.WriteString("\n")

	if len(summary.FileTypes) > 0 {
		fmt.Fprintf(&b, "- File types: %s\n", strings.Join(summary.FileTypes, ", "))
	}

	if len(summary.Files) > 0 {
		b.WriteString("\nFiles:\n")
		files := summary.Files
		omitted := 0
		if c.maxFiles > 0 && len(files) > c.maxFiles {
			omitted = len(files) - c.maxFiles
			files = files[:c.maxFiles]
		}
		for _, f := range files {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		if omitted > 0 {
			fmt.Fprintf(&b, "- ... and %d more\n", omitted)
		}
	}

	if len(summary.Subjects) > 0 {
		b.WriteString("\nCommit subjects:\n")
		for _, subj := range summary.Subjects {
			fmt.Fprintf(&b, "- %s\n", c.truncate(subj))
		}
	}

	tmpl := style.Template
	if tmpl == nil {
		tmpl = DefaultTemplate()
	}
	b.WriteString("\nTemplate to follow:\n")
	fmt.Fprintf(&b, "Title: %s\n", fillTemplate(tmpl.Title, summary))
	fmt.Fprintf(&b, "Body:\n%s\n", fillTemplate(tmpl.Body, summary))

	if instr, ok := toneInstructions[style.Tone]; ok {
		b.WriteString("\n")
		b.WriteString(instr)
		b.WriteString("\n")
	}

	req := &ComposedRequest{
		System:     systemPrompt,
		User:       b.String(),
		Tone:       style.Tone,
		TemplateID: tmpl.ID,
	}

	c.log.Debug("composed prompt",
		"dominant_kind", summary.DominantKind,
		"commits", summary.CommitCount,
		"user_len", len(req.User))

	return req
}

// truncate shortens a commit subject to the configured limit, marking the
// cut so the model doesn't treat it as a complete sentence.
func (c *Composer) truncate(s string) string {
	if c.maxMessageLen <= 0 || len(s) <= c.maxMessageLen {
		return s
	}
	cut := s[:c.maxMessageLen]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
