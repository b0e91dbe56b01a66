package patchgate

import (
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"
	"strings"

	"github.com/anthropics/foreman/internal/domain"
)

// SyntaxValidator parses post-patch file content where a parser is
// available. Go files go through the real parser; JSON must be valid;
// markdown must have balanced code fences. Unrecognized file types are
// skipped rather than guessed at.
type SyntaxValidator struct {
	MaxDetailLen int
}

func (v *SyntaxValidator) Name() string { return "syntax" }

func (v *SyntaxValidator) Check(patch domain.Patch) []domain.PatchViolation {
	var violations []domain.PatchViolation

	for _, f := range changedContents(patch) {
		if strings.TrimSpace(f.NewContent) == "" {
			continue
		}
		// A file cut off inside a string literal is the truncation
		// check's finding; a second parse-failure report for the same
		// abrupt EOF would double-count it.
		if endsMidQuote(f.NewContent) {
			continue
		}

		switch fileExt(f.Path) {
		case ".go":
			fset := token.NewFileSet()
			if _, err := parser.ParseFile(fset, f.Path, f.NewContent, 0); err != nil {
				violations = append(violations, domain.PatchViolation{
					Kind:     domain.ViolationSyntaxError,
					Detail:   truncateDetail(err.Error(), v.MaxDetailLen),
					FilePath: f.Path,
				})
			}
		case ".json":
			if !json.Valid([]byte(f.NewContent)) {
				violations = append(violations, domain.PatchViolation{
					Kind:     domain.ViolationSyntaxError,
					Detail:   "invalid JSON",
					FilePath: f.Path,
				})
			}
		case ".md", ".markdown":
			if n := strings.Count(f.NewContent, "```"); n%2 != 0 {
				violations = append(violations, domain.PatchViolation{
					Kind:     domain.ViolationSyntaxError,
					Detail:   fmt.Sprintf("unbalanced code fences (%d markers)", n),
					FilePath: f.Path,
				})
			}
		}
	}
	return violations
}
