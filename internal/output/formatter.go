package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/prdraft/prdraft/internal/config"
	"github.com/prdraft/prdraft/internal/models"
)

// Message is a validated PR message ready for display and persistence.
type Message struct {
	Title      string
	Body       string
	Sections   []models.Section
	Provenance models.Provenance
}

// Formatter turns raw backend text into a valid PR message. Formatting
// never fails outward: when the text is unusable the formatter synthesizes
// a message from the change summary and marks it as a fallback.
type Formatter struct {
	titleMaxLen int
	logger      *slog.Logger
}

// NewFormatter creates a formatter with the given output limits.
func NewFormatter(cfg config.OutputConfig) *Formatter {
	maxLen := cfg.TitleMaxLen
	if maxLen <= 0 {
		maxLen = 72
	}
	return &Formatter{
		titleMaxLen: maxLen,
		logger:      slog.Default().With("component", "output"),
	}
}

// payload is the JSON shape the backend is asked to produce.
type payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Format validates and normalizes raw backend output.
func (f *Formatter) Format(raw string, summary *models.ChangeSummary) *Message {
	text := stripFences(strings.TrimSpace(raw))
	if text == "" {
		f.logger.Warn("empty backend response, synthesizing fallback")
		return f.fallback(summary)
	}

	var p payload
	provenance := models.ProvenanceGenerated

	if err := json.Unmarshal([]byte(text), &p); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(text)
		if rerr == nil && json.Unmarshal([]byte(repaired), &p) == nil {
			provenance = models.ProvenanceRepaired
			f.logger.Debug("backend JSON repaired")
		} else {
			// Last salvage: treat the text as plain prose.
			p = fromPlainText(text)
			provenance = models.ProvenanceRepaired
			f.logger.Debug("backend response parsed as plain text")
		}
	}

	title := strings.TrimSpace(p.Title)
	body := strings.TrimSpace(p.Body)
	if title == "" && body == "" {
		f.logger.Warn("backend response carried no usable content, synthesizing fallback")
		return f.fallback(summary)
	}
	if title == "" {
		title = f.fallbackTitle(summary)
		provenance = models.ProvenanceRepaired
	}
	title = f.truncateTitle(title)

	if !hasChangesSection(body) {
		body = ensureChangesSection(body, summary)
		if provenance == models.ProvenanceGenerated {
			provenance = models.ProvenanceRepaired
		}
	}

	return &Message{
		Title:      title,
		Body:       body,
		Sections:   parseSections(body),
		Provenance: provenance,
	}
}

// fallback synthesizes a complete message from the change summary alone.
func (f *Formatter) fallback(summary *models.ChangeSummary) *Message {
	body := ensureChangesSection("", summary)
	return &Message{
		Title:      f.truncateTitle(f.fallbackTitle(summary)),
		Body:       body,
		Sections:   parseSections(body),
		Provenance: models.ProvenanceFallback,
	}
}

// fallbackTitle builds a title from the summary. It starts with the
// dominant kind so the title convention holds even without backend output.
func (f *Formatter) fallbackTitle(summary *models.ChangeSummary) string {
	return fmt.Sprintf("%s: update %d file(s) across %d commit(s)",
		summary.DominantKind, summary.FileCount, summary.CommitCount)
}

// truncateTitle enforces the title length limit, cutting at a word
// boundary when one exists.
func (f *Formatter) truncateTitle(title string) string {
	if len(title) <= f.titleMaxLen {
		return title
	}
	cut := title[:f.titleMaxLen-3]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " .,;:") + "..."
}

// fromPlainText salvages non-JSON prose: the first non-empty line becomes
// the title, the rest the body.
func fromPlainText(text string) payload {
	lines := strings.Split(text, "\n")
	var p payload
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		p.Title = strings.TrimSpace(strings.TrimLeft(line, "# "))
		p.Body = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		break
	}
	return p
}

func hasChangesSection(body string) bool {
	for _, s := range parseSections(body) {
		if strings.EqualFold(s.Heading, "Changes") {
			return true
		}
	}
	return false
}

// ensureChangesSection appends a synthesized "## Changes" section built
// from the summary's commit subjects, or the file list when subjects are
// missing.
func ensureChangesSection(body string, summary *models.ChangeSummary) string {
	var b strings.Builder
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	b.WriteString("## Changes\n\n")

	switch {
	case len(summary.Subjects) > 0:
		for _, subj := range summary.Subjects {
			fmt.Fprintf(&b, "- %s\n", subj)
		}
	case len(summary.Files) > 0:
		for _, file := range summary.Files {
			fmt.Fprintf(&b, "- %s\n", file)
		}
	default:
		fmt.Fprintf(&b, "- %d commit(s) touching %d file(s)\n",
			summary.CommitCount, summary.FileCount)
	}

	return strings.TrimRight(b.String(), "\n")
}

// parseSections splits a Markdown body on "## " headings. Text before the
// first heading becomes an untitled leading section.
func parseSections(body string) []models.Section {
	var sections []models.Section
	var current *models.Section

	flush := func() {
		if current != nil {
			current.Content = strings.TrimSpace(current.Content)
			sections = append(sections, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
			current = &models.Section{Heading: strings.TrimSpace(line[3:])}
			continue
		}
		if current == nil {
			if strings.TrimSpace(line) == "" {
				continue
			}
			current = &models.Section{}
		}
		current.Content += line + "\n"
	}
	flush()

	return sections
}

// stripFences removes a surrounding Markdown code fence, which some models
// emit around JSON despite instructions.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	trimmed := strings.TrimPrefix(text, "```")
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
