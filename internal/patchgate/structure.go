package patchgate

import (
	"strings"

	"github.com/gitleaks/go-gitdiff/gitdiff"

	"github.com/anthropics/foreman/internal/domain"
)

// StructureValidator checks that the raw unified diff is structurally
// complete: every file section and hunk header parses, and the diff does
// not end mid-hunk. Patches built without a raw diff skip this stage.
type StructureValidator struct {
	MaxDetailLen int
}

func (v *StructureValidator) Name() string { return "structure" }

func (v *StructureValidator) Check(patch domain.Patch) []domain.PatchViolation {
	raw := strings.TrimSpace(patch.RawDiff)
	if raw == "" {
		return nil
	}

	files, _, err := gitdiff.Parse(strings.NewReader(patch.RawDiff))
	if err != nil {
		return []domain.PatchViolation{{
			Kind:   classifyParseError(err),
			Detail: truncateDetail(err.Error(), v.MaxDetailLen),
		}}
	}
	if len(files) == 0 {
		return []domain.PatchViolation{{
			Kind:   domain.ViolationIncompleteDiff,
			Detail: "diff contains no file sections",
		}}
	}

	var violations []domain.PatchViolation
	for _, f := range files {
		if f.IsBinary {
			continue
		}
		if !f.IsNew && !f.IsDelete && len(f.TextFragments) == 0 {
			violations = append(violations, domain.PatchViolation{
				Kind:     domain.ViolationIncompleteDiff,
				Detail:   "file section has no hunks",
				FilePath: diffFilePath(f),
			})
		}
	}
	return violations
}

// classifyParseError separates a diff cut off mid-hunk from one whose
// hunk structure is wrong.
func classifyParseError(err error) domain.ViolationKind {
	msg := err.Error()
	if strings.Contains(msg, "EOF") || strings.Contains(msg, "unexpected end") {
		return domain.ViolationIncompleteDiff
	}
	return domain.ViolationMalformedHunk
}

// diffFilePath picks the post-patch name of a diff file section, falling
// back to the pre-patch name for deletions.
func diffFilePath(f *gitdiff.File) string {
	if f.NewName != "" {
		return f.NewName
	}
	return f.OldName
}
