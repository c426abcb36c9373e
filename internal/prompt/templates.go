package prompt

import (
	"fmt"
	"strings"

	"github.com/prdraft/prdraft/internal/models"
)

// systemPrompt instructs the backend to answer with a strict JSON object.
// The formatter depends on the {"title","body"} shape and the "## Changes"
// section, so the contract lives here in one place.
const systemPrompt = `You are an assistant that writes pull request messages for software teams.

You will receive a structured digest of a set of commits: the dominant change kind, per-kind counts, the files touched, and the commit subjects.

Respond with a single JSON object and nothing else:
{"title": "...", "body": "..."}

Rules:
- The title is one line, at most 72 characters, imperative mood, and starts with the dominant change kind followed by a colon (for example "fix: ..." or "feature: ...").
- The body is GitHub-flavored Markdown and must contain a "## Changes" section summarizing what changed.
- Describe only what the digest supports. Do not invent files, issue numbers, or behavior.
- No preamble, no code fences around the JSON.`

// toneInstructions maps each tone to the extra instruction appended to the
// user prompt. Keep these short; the system prompt carries the hard rules.
var toneInstructions = map[models.Tone]string{
	models.ToneConcise:   "Tone: concise. Keep the body under 120 words. Short sentences, no filler.",
	models.ToneDetailed:  "Tone: detailed. Explain the motivation and the effect of each change group. Use subsections where it helps.",
	models.ToneTechnical: "Tone: technical. Name the files and modules involved and be precise about mechanisms. Assume the reader knows the codebase.",
}

// DefaultTemplate is the built-in template used when the request names none.
func DefaultTemplate() *models.Template {
	return &models.Template{
		ID:    "default",
		Name:  "Default",
		Title: "{dominant_kind}: summarize the change",
		Body:  "## Changes\n\nDescribe the {commit_count} commit(s) touching {file_count} file(s).",
	}
}

// fillTemplate substitutes digest placeholders into a template string.
// Unknown placeholders pass through untouched.
func fillTemplate(text string, summary *models.ChangeSummary) string {
	r := strings.NewReplacer(
		"{dominant_kind}", string(summary.DominantKind),
		"{commit_count}", fmt.Sprintf("%d", summary.CommitCount),
		"{file_count}", fmt.Sprintf("%d", summary.FileCount),
		"{file_types}", strings.Join(summary.FileTypes, ", "),
	)
	return r.Replace(text)
}
