package patchgate

import (
	"fmt"
	"strings"

	"github.com/gitleaks/go-gitdiff/gitdiff"

	"github.com/anthropics/foreman/internal/domain"
)

// FromUnifiedDiff resolves a raw unified diff into a Patch with per-file
// pre- and post-patch content, using oldContents (keyed by repo-relative
// path) as the pre-patch state. Problems with the diff itself come back
// as violations, not errors, so the caller can feed them straight into a
// retry prompt.
func FromUnifiedDiff(raw string, oldContents map[string]string) (domain.Patch, []domain.PatchViolation) {
	patch := domain.Patch{RawDiff: raw}

	files, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return patch, []domain.PatchViolation{{
			Kind:   classifyParseError(err),
			Detail: truncateDetail(err.Error(), DefaultConfig().MaxDetailLen),
		}}
	}
	if len(files) == 0 {
		return patch, []domain.PatchViolation{{
			Kind:   domain.ViolationIncompleteDiff,
			Detail: "diff contains no file sections",
		}}
	}

	var violations []domain.PatchViolation
	for _, f := range files {
		if f.IsBinary {
			continue
		}
		switch {
		case f.IsDelete:
			patch.Files = append(patch.Files, domain.FileChange{
				Path:       f.OldName,
				Op:         domain.OpDelete,
				OldContent: oldContents[f.OldName],
			})
		case f.IsNew:
			content, err := applyFragments("", f.TextFragments)
			if err != nil {
				violations = append(violations, domain.PatchViolation{
					Kind:     domain.ViolationMalformedHunk,
					Detail:   err.Error(),
					FilePath: diffFilePath(f),
				})
				continue
			}
			patch.Files = append(patch.Files, domain.FileChange{
				Path:       f.NewName,
				Op:         domain.OpCreate,
				NewContent: content,
			})
		default:
			old := oldContents[f.OldName]
			content, err := applyFragments(old, f.TextFragments)
			if err != nil {
				violations = append(violations, domain.PatchViolation{
					Kind:     domain.ViolationMalformedHunk,
					Detail:   err.Error(),
					FilePath: diffFilePath(f),
				})
				continue
			}
			patch.Files = append(patch.Files, domain.FileChange{
				Path:       diffFilePath(f),
				Op:         domain.OpModify,
				OldContent: old,
				NewContent: content,
			})
		}
	}
	return patch, violations
}

// applyFragments replays a file's hunks over its old content. Context
// and deleted lines must match the old content exactly; any drift means
// the diff was generated against different content than we hold.
func applyFragments(old string, frags []*gitdiff.TextFragment) (string, error) {
	oldLines := splitLines(old)

	var b strings.Builder
	pos := 0
	for _, frag := range frags {
		start := int(frag.OldPosition) - 1
		if frag.OldLines == 0 {
			// A pure-insert hunk names the line it inserts after.
			start = int(frag.OldPosition)
		}
		if start < pos || start > len(oldLines) {
			return "", fmt.Errorf("hunk at old line %d is out of order or beyond end of file", frag.OldPosition)
		}
		for pos < start {
			b.WriteString(oldLines[pos])
			pos++
		}

		for _, ln := range frag.Lines {
			switch ln.Op {
			case gitdiff.OpContext:
				if pos >= len(oldLines) || !lineEqual(oldLines[pos], ln.Line) {
					return "", fmt.Errorf("context mismatch at old line %d", pos+1)
				}
				b.WriteString(ln.Line)
				pos++
			case gitdiff.OpDelete:
				if pos >= len(oldLines) || !lineEqual(oldLines[pos], ln.Line) {
					return "", fmt.Errorf("deleted line mismatch at old line %d", pos+1)
				}
				pos++
			case gitdiff.OpAdd:
				b.WriteString(ln.Line)
			}
		}
	}
	for pos < len(oldLines) {
		b.WriteString(oldLines[pos])
		pos++
	}
	return b.String(), nil
}

// splitLines splits content into lines that keep their trailing newline,
// so reassembly preserves the file byte for byte.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// lineEqual compares two lines ignoring a trailing-newline difference,
// which absorbs the "no newline at end of file" marker.
func lineEqual(a, b string) bool {
	return strings.TrimSuffix(a, "\n") == strings.TrimSuffix(b, "\n")
}
