package analysis

import (
	"sort"
	"strings"

	"github.com/prdraft/prdraft/internal/errors"
	"github.com/prdraft/prdraft/internal/models"
)

// Aggregate merges per-commit classifications into one repository-level
// change summary. The dominant kind is the kind with the highest
// complexity-weighted count (weight of a commit = 1 + its complexity), so
// a single large refactor outweighs several trivial fixes. Ties are broken
// by the fixed kind priority order.
func Aggregate(commits []*models.Commit, classes []models.ChangeClassification) (*models.ChangeSummary, error) {
	if len(commits) == 0 {
		return nil, errors.InvalidRequest("at least one commit is required")
	}
	if len(commits) != len(classes) {
		return nil, errors.InternalErrorf("commit/classification count mismatch: %d vs %d",
			len(commits), len(classes))
	}

	summary := &models.ChangeSummary{
		KindCounts:  make(map[models.ChangeKind]int),
		CommitCount: len(commits),
	}

	weights := make(map[models.ChangeKind]float64)
	paths := make(map[string]struct{})
	types := make(map[string]struct{})

	for i, cls := range classes {
		summary.KindCounts[cls.Kind]++
		summary.TotalComplexity += cls.Complexity
		weights[cls.Kind] += 1 + cls.Complexity

		if subj := commits[i].Subject(); subj != "" {
			summary.Subjects = append(summary.Subjects, subj)
		}
		for _, f := range commits[i].Files {
			paths[f.Path] = struct{}{}
			if ext := fileType(f.Path); ext != "" {
				types[ext] = struct{}{}
			}
		}
	}

	summary.DominantKind = dominantKind(weights)
	summary.FileCount = len(paths)
	summary.Files = sortedKeys(paths)
	summary.FileTypes = sortedKeys(types)

	return summary, nil
}

// dominantKind picks the kind with the highest weight; ties go to the kind
// earliest in the fixed priority order.
func dominantKind(weights map[models.ChangeKind]float64) models.ChangeKind {
	best := models.KindUnknown
	bestWeight := -1.0
	for _, kind := range models.KindsByPriority() {
		w, ok := weights[kind]
		if !ok {
			continue
		}
		if w > bestWeight {
			best = kind
			bestWeight = w
		}
	}
	return best
}

// fileType returns the lowercased file extension without the dot.
func fileType(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return strings.ToLower(base[i+1:])
	}
	return ""
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
