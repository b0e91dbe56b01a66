package patchgate

import (
	"fmt"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/anthropics/foreman/internal/domain"
)

// SimilarityValidator catches wholesale content replacement disguised as
// an edit: a modified file whose new content is too dissimilar from the
// old is flagged structural_divergence.
type SimilarityValidator struct {
	Minimum float64
}

func (v *SimilarityValidator) Name() string { return "similarity" }

func (v *SimilarityValidator) Check(patch domain.Patch) []domain.PatchViolation {
	var violations []domain.PatchViolation

	for _, f := range patch.Files {
		if f.Op != domain.OpModify || f.OldContent == "" {
			continue
		}
		sim := similarityRatio(f.OldContent, f.NewContent)
		if sim >= v.Minimum {
			continue
		}
		violations = append(violations, domain.PatchViolation{
			Kind:     domain.ViolationStructuralDivergence,
			Detail:   fmt.Sprintf("similarity %.2f below minimum %.2f", sim, v.Minimum),
			FilePath: f.Path,
		})
	}
	return violations
}

// similarityRatio returns a normalized edit-distance similarity in
// [0, 1]: 1 means identical content, 0 means nothing survived.
func similarityRatio(before, after string) float64 {
	if before == after {
		return 1
	}
	longest := utf8.RuneCountInString(before)
	if n := utf8.RuneCountInString(after); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	lev := dmp.DiffLevenshtein(diffs)
	return 1 - float64(lev)/float64(longest)
}
