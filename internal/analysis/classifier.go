package analysis

import (
	"strings"

	"github.com/prdraft/prdraft/internal/models"
)

// Complexity weights. Complexity grows with file count and churn, with an
// extra penalty when a commit spans more than one top-level module.
const (
	fileWeight    = 1.0
	lineWeight    = 0.1
	modulePenalty = 2.0
)

// minConfidence is the threshold below which a matched classification is
// reported as unknown rather than a low-confidence best guess.
const minConfidence = 0.4

// Classifier labels commits by change kind and scores their complexity.
// Classification is a pure function of the commit message and file list:
// no external calls, same input yields the same output.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier with the default rule set.
func NewClassifier() *Classifier {
	return &Classifier{rules: DefaultRules()}
}

// NewClassifierWithRules creates a classifier with a custom ordered rule
// set. Earlier rules win ties.
func NewClassifierWithRules(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify derives the classification for a single commit.
func (c *Classifier) Classify(commit *models.Commit) models.ChangeClassification {
	cls := models.ChangeClassification{
		CommitSHA:  commit.SHA,
		Kind:       models.KindUnknown,
		Complexity: complexity(commit.Files),
	}

	if strings.TrimSpace(commit.Message) == "" {
		// Empty message: unknown with zero confidence, by contract.
		return cls
	}

	msg := parseMessage(commit.Message)
	for _, rule := range c.rules {
		if !rule.Match(msg, commit.Files) {
			continue
		}
		if rule.Confidence < minConfidence {
			break
		}
		cls.Kind = rule.Kind
		cls.Confidence = rule.Confidence
		cls.Rule = rule.Name
		break
	}

	return cls
}

// complexity computes the weighted complexity score for a file set.
func complexity(files []models.FileChange) float64 {
	if len(files) == 0 {
		return 0
	}

	lines := 0
	modules := make(map[string]struct{})
	for _, f := range files {
		lines += f.Additions + f.Deletions
		modules[topLevelDir(f.Path)] = struct{}{}
	}

	score := fileWeight*float64(len(files)) + lineWeight*float64(lines)
	if len(modules) > 1 {
		score += modulePenalty * float64(len(modules)-1)
	}
	return score
}

// topLevelDir returns the first path segment, or "." for root-level files.
func topLevelDir(path string) string {
	if i := strings.IndexByte(path, '/'); i > 0 {
		return path[:i]
	}
	return "."
}
