package patchgate

import (
	"fmt"
	"strings"

	"github.com/anthropics/foreman/internal/domain"
)

// ConflictValidator rejects post-patch content carrying merge-conflict
// residue. Only "<<<<<<<" and ">>>>>>>" at line start count; a lone
// "=======" separator is exempt because that pattern occurs legitimately
// in comment banners and markdown headings.
type ConflictValidator struct{}

func (v *ConflictValidator) Name() string { return "conflict" }

func (v *ConflictValidator) Check(patch domain.Patch) []domain.PatchViolation {
	var violations []domain.PatchViolation

	for _, f := range changedContents(patch) {
		for i, line := range strings.Split(f.NewContent, "\n") {
			if !strings.HasPrefix(line, "<<<<<<<") && !strings.HasPrefix(line, ">>>>>>>") {
				continue
			}
			violations = append(violations, domain.PatchViolation{
				Kind:     domain.ViolationConflictMarker,
				Detail:   fmt.Sprintf("merge conflict marker at line %d: %q", i+1, strings.TrimSpace(line)),
				FilePath: f.Path,
			})
			break
		}
	}
	return violations
}
