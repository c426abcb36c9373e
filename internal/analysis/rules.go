package analysis

import (
	"strings"

	"github.com/prdraft/prdraft/internal/models"
)

// Rule is one classification rule. Rules are evaluated top-down and the
// first match wins, so declaration order is the precedence order.
type Rule struct {
	Name       string
	Kind       models.ChangeKind
	Confidence float64
	Match      func(msg commitMessage, files []models.FileChange) bool
}

// commitMessage is a pre-tokenized commit message shared across rules so
// each rule doesn't re-split the text.
type commitMessage struct {
	raw    string // lowercased full message
	prefix string // conventional-commit prefix ("fix" from "fix(login): ...")
	tokens map[string]struct{}
}

func parseMessage(message string) commitMessage {
	raw := strings.ToLower(strings.TrimSpace(message))

	cm := commitMessage{raw: raw, tokens: make(map[string]struct{})}

	// Conventional-commit prefix: everything before the first ':' on the
	// first line, with an optional "(scope)" and "!" stripped.
	firstLine := raw
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	if i := strings.IndexByte(firstLine, ':'); i > 0 {
		prefix := firstLine[:i]
		if j := strings.IndexByte(prefix, '('); j >= 0 {
			prefix = prefix[:j]
		}
		prefix = strings.TrimSuffix(strings.TrimSpace(prefix), "!")
		if prefix != "" && !strings.ContainsAny(prefix, " \t") {
			cm.prefix = prefix
		}
	}

	for _, tok := range strings.FieldsFunc(raw, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		cm.tokens[tok] = struct{}{}
	}

	return cm
}

func (cm commitMessage) hasToken(words ...string) bool {
	for _, w := range words {
		if _, ok := cm.tokens[w]; ok {
			return true
		}
	}
	return false
}

func prefixRule(prefixes ...string) func(cm commitMessage, _ []models.FileChange) bool {
	return func(cm commitMessage, _ []models.FileChange) bool {
		for _, p := range prefixes {
			if cm.prefix == p {
				return true
			}
		}
		return false
	}
}

func keywordRule(words ...string) func(cm commitMessage, _ []models.FileChange) bool {
	return func(cm commitMessage, _ []models.FileChange) bool {
		return cm.hasToken(words...)
	}
}

// filesOnlyRule matches when the commit touches at least one file and every
// touched file satisfies the predicate. Message-independent fallback.
func filesOnlyRule(pred func(path string) bool) func(cm commitMessage, files []models.FileChange) bool {
	return func(_ commitMessage, files []models.FileChange) bool {
		if len(files) == 0 {
			return false
		}
		for _, f := range files {
			if !pred(f.Path) {
				return false
			}
		}
		return true
	}
}

func isDocPath(path string) bool {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".rst") ||
		strings.HasSuffix(lower, ".txt") || strings.HasSuffix(lower, ".adoc") {
		return true
	}
	return strings.HasPrefix(lower, "docs/") || strings.Contains(lower, "/docs/")
}

func isTestPath(path string) bool {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, "_test.go") || strings.HasSuffix(lower, "_test.py") {
		return true
	}
	base := lower
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if strings.HasPrefix(base, "test_") || strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") {
		return true
	}
	return strings.Contains(lower, "/test/") || strings.Contains(lower, "/tests/") ||
		strings.Contains(lower, "/__tests__/")
}

// DefaultRules returns the built-in classification rules in precedence
// order. Conventional-commit prefixes are the strongest signal, loose
// message keywords next, file-path heuristics last.
func DefaultRules() []Rule {
	return []Rule{
		// Explicit prefixes ("fix: ...", "feat(scope): ...")
		{Name: "prefix-fix", Kind: models.KindFix, Confidence: 0.9, Match: prefixRule("fix", "bugfix", "hotfix")},
		{Name: "prefix-feature", Kind: models.KindFeature, Confidence: 0.9, Match: prefixRule("feat", "feature", "add")},
		{Name: "prefix-docs", Kind: models.KindDocs, Confidence: 0.9, Match: prefixRule("docs", "doc")},
		{Name: "prefix-test", Kind: models.KindTest, Confidence: 0.9, Match: prefixRule("test", "tests")},
		{Name: "prefix-refactor", Kind: models.KindRefactor, Confidence: 0.9, Match: prefixRule("refactor", "perf")},
		{Name: "prefix-chore", Kind: models.KindChore, Confidence: 0.9, Match: prefixRule("chore", "build", "ci", "style")},

		// Message keywords, anywhere in the message
		{Name: "keyword-fix", Kind: models.KindFix, Confidence: 0.6, Match: keywordRule("fix", "fixes", "fixed", "bug", "bugfix", "patch", "resolve", "resolves", "regression")},
		{Name: "keyword-feature", Kind: models.KindFeature, Confidence: 0.6, Match: keywordRule("add", "adds", "added", "implement", "implements", "introduce", "introduces", "support", "new")},
		{Name: "keyword-docs", Kind: models.KindDocs, Confidence: 0.6, Match: keywordRule("docs", "documentation", "readme", "changelog", "comment", "comments")},
		{Name: "keyword-refactor", Kind: models.KindRefactor, Confidence: 0.6, Match: keywordRule("refactor", "refactors", "refactored", "cleanup", "restructure", "simplify", "rename", "extract")},
		{Name: "keyword-test", Kind: models.KindTest, Confidence: 0.6, Match: keywordRule("test", "tests", "testing", "coverage", "spec")},
		{Name: "keyword-chore", Kind: models.KindChore, Confidence: 0.6, Match: keywordRule("bump", "bumps", "upgrade", "dependency", "dependencies", "deps", "version", "merge", "lint", "format")},

		// File-path heuristics when the message says nothing useful
		{Name: "files-docs-only", Kind: models.KindDocs, Confidence: 0.5, Match: filesOnlyRule(isDocPath)},
		{Name: "files-tests-only", Kind: models.KindTest, Confidence: 0.5, Match: filesOnlyRule(isTestPath)},
	}
}
