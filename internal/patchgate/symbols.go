package patchgate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/anthropics/foreman/internal/domain"
)

// SymbolValidator guards against patches that silently drop top-level
// declarations from a modified file. Losing more than LossRatio of the
// pre-existing symbols flags symbol_loss with a bounded list of names.
type SymbolValidator struct {
	LossRatio float64
	MaxListed int
}

func (v *SymbolValidator) Name() string { return "symbols" }

func (v *SymbolValidator) Check(patch domain.Patch) []domain.PatchViolation {
	var violations []domain.PatchViolation

	for _, f := range patch.Files {
		if f.Op != domain.OpModify || f.OldContent == "" {
			continue
		}
		before := extractSymbols(f.OldContent, fileExt(f.Path))
		if len(before) == 0 {
			continue
		}
		after := make(map[string]bool)
		for _, s := range extractSymbols(f.NewContent, fileExt(f.Path)) {
			after[s] = true
		}

		var missing []string
		for _, s := range before {
			if !after[s] {
				missing = append(missing, s)
			}
		}
		if float64(len(missing))/float64(len(before)) <= v.LossRatio {
			continue
		}

		violations = append(violations, domain.PatchViolation{
			Kind: domain.ViolationSymbolLoss,
			Detail: fmt.Sprintf("lost %d of %d top-level symbols: %s",
				len(missing), len(before), boundedList(missing, v.MaxListed)),
			FilePath: f.Path,
		})
	}
	return violations
}

var symbolPatterns = map[string][]*regexp.Regexp{
	".go": {
		regexp.MustCompile(`(?m)^func\s+(?:\([^)]+\)\s+)?([A-Za-z_]\w*)`),
		regexp.MustCompile(`(?m)^type\s+([A-Za-z_]\w*)`),
		regexp.MustCompile(`(?m)^(?:var|const)\s+([A-Za-z_]\w*)`),
	},
	".py": {
		regexp.MustCompile(`(?m)^(?:async\s+)?def\s+([A-Za-z_]\w*)`),
		regexp.MustCompile(`(?m)^class\s+([A-Za-z_]\w*)`),
		regexp.MustCompile(`(?m)^([A-Z][A-Z0-9_]*)\s*=`),
	},
}

var jsSymbolPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)`),
	regexp.MustCompile(`(?m)^(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)`),
	regexp.MustCompile(`(?m)^(?:export\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`),
	regexp.MustCompile(`(?m)^(?:export\s+)?(?:interface|type|enum)\s+([A-Za-z_$][\w$]*)`),
}

func init() {
	for _, ext := range []string{".js", ".jsx", ".ts", ".tsx"} {
		symbolPatterns[ext] = jsSymbolPatterns
	}
}

// extractSymbols pulls top-level callable, type, and constant names from
// source content. Patterns are anchored at column zero so nested
// declarations do not count. Unsupported extensions yield nil, which
// skips the file.
func extractSymbols(content, ext string) []string {
	patterns, ok := symbolPatterns[ext]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var symbols []string
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			if name := m[1]; !seen[name] {
				seen[name] = true
				symbols = append(symbols, name)
			}
		}
	}
	return symbols
}

// boundedList joins up to max names, noting how many were elided.
func boundedList(names []string, max int) string {
	if max <= 0 || len(names) <= max {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(names[:max], ", "), len(names)-max)
}
