package patchgate

import (
	"fmt"
	"strings"

	"github.com/anthropics/foreman/internal/domain"
)

// TruncationValidator looks for the artifacts token-limited model output
// leaves behind: elided-content ellipsis markers on lines the patch
// introduces, files ending inside a string literal, and files ending
// mid-statement.
type TruncationValidator struct{}

func (v *TruncationValidator) Name() string { return "truncation" }

func (v *TruncationValidator) Check(patch domain.Patch) []domain.PatchViolation {
	var violations []domain.PatchViolation

	for _, f := range changedContents(patch) {
		if line, no, found := firstEllipsisMarker(f); found {
			violations = append(violations, domain.PatchViolation{
				Kind:     domain.ViolationTruncation,
				Detail:   fmt.Sprintf("elided content marker at line %d: %q", no, line),
				FilePath: f.Path,
			})
		}

		if !codeExts[fileExt(f.Path)] {
			continue
		}
		if endsMidQuote(f.NewContent) {
			violations = append(violations, domain.PatchViolation{
				Kind:     domain.ViolationUnclosedQuote,
				Detail:   fmt.Sprintf("file ends inside a string literal: %q", lastNonBlankLine(f.NewContent)),
				FilePath: f.Path,
			})
			// The dangling-tail check would re-report the same abrupt EOF.
			continue
		}
		if endsMidStatement(f.NewContent, fileExt(f.Path)) {
			violations = append(violations, domain.PatchViolation{
				Kind:     domain.ViolationTruncation,
				Detail:   fmt.Sprintf("file ends mid-statement: %q", lastNonBlankLine(f.NewContent)),
				FilePath: f.Path,
			})
		}
	}
	return violations
}

// firstEllipsisMarker scans the lines a change introduces and returns the
// first elided-content marker. For modified files only lines absent from
// the old content count; pre-existing ellipses are not the patch's fault.
func firstEllipsisMarker(f domain.FileChange) (line string, no int, found bool) {
	var oldLines map[string]bool
	if f.Op == domain.OpModify && f.OldContent != "" {
		oldLines = make(map[string]bool)
		for _, l := range strings.Split(f.OldContent, "\n") {
			oldLines[l] = true
		}
	}

	for i, l := range strings.Split(f.NewContent, "\n") {
		if oldLines != nil && oldLines[l] {
			continue
		}
		if hasEllipsisMarker(l) {
			return strings.TrimSpace(l), i + 1, true
		}
	}
	return "", 0, false
}
