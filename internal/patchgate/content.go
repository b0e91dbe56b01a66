package patchgate

import (
	"path/filepath"
	"strings"

	"github.com/anthropics/foreman/internal/domain"
)

// codeExts lists the extensions the tail-truncation heuristics apply to.
// Other file types either have a dedicated syntax check or are skipped.
var codeExts = map[string]bool{
	".go":  true,
	".js":  true,
	".jsx": true,
	".ts":  true,
	".tsx": true,
	".py":  true,
}

func fileExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// changedContents returns the files whose post-patch content the gate
// inspects. Deleted files have no post-patch content to check.
func changedContents(patch domain.Patch) []domain.FileChange {
	out := make([]domain.FileChange, 0, len(patch.Files))
	for _, f := range patch.Files {
		if f.Op == domain.OpDelete {
			continue
		}
		out = append(out, f)
	}
	return out
}

// lastNonBlankLine returns the final line of content that holds any
// non-whitespace text, trimmed, or "" when the content is blank.
func lastNonBlankLine(content string) string {
	lines := strings.Split(content, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if t := strings.TrimSpace(lines[i]); t != "" {
			return t
		}
	}
	return ""
}

// countBoundaryQuotes counts quote characters of the given kind on a
// line, ignoring escaped quotes and apostrophes embedded between word
// characters (as in "don't"), which are prose rather than delimiters.
func countBoundaryQuotes(line string, quote byte) int {
	isWord := func(b byte) bool {
		return b == '_' ||
			(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
	}
	count := 0
	for i := 0; i < len(line); i++ {
		if line[i] != quote {
			continue
		}
		if i > 0 && line[i-1] == '\\' {
			continue
		}
		if i > 0 && i < len(line)-1 && isWord(line[i-1]) && isWord(line[i+1]) {
			continue
		}
		count++
	}
	return count
}

// endsMidQuote reports whether the final non-blank line of content has
// an unterminated string literal, the classic signature of model output
// cut off by a token limit.
func endsMidQuote(content string) bool {
	last := lastNonBlankLine(content)
	if last == "" {
		return false
	}
	for _, q := range []byte{'"', '\'', '`'} {
		if countBoundaryQuotes(last, q)%2 != 0 {
			return true
		}
	}
	return false
}

// danglingTailSuffixes are line endings that cannot legally terminate a
// file in the languages the gate recognizes. A trailing "{" is excluded
// because brace-on-line-end is normal style in Go and JavaScript.
var danglingTailSuffixes = []string{"=>", "=", ",", "(", "[", "&&", "||"}

// danglingKeywords are statement openers that mean nothing as a file's
// final line.
var danglingKeywords = map[string]bool{
	"const": true, "let": true, "var": true, "import": true, "export": true,
	"return": true, "await": true, "throw": true, "new": true,
	"func": true, "def": true, "class": true, "type": true, "from": true,
}

// endsMidStatement reports whether the final non-blank line of a code
// file looks like an abrupt EOF: a dangling operator, an unclosed call,
// or a bare keyword.
func endsMidStatement(content, ext string) bool {
	last := lastNonBlankLine(content)
	if last == "" {
		return false
	}
	for _, suffix := range danglingTailSuffixes {
		if strings.HasSuffix(last, suffix) {
			return true
		}
	}
	// A trailing colon legitimately ends Python block headers.
	if ext != ".py" && strings.HasSuffix(last, ":") {
		return true
	}
	if strings.HasSuffix(last, ".") && !strings.HasSuffix(last, "...") {
		return true
	}
	return danglingKeywords[last]
}

// stripStrings blanks out quoted regions of a line so markers inside
// string literals are not mistaken for structural artifacts.
func stripStrings(line string) string {
	var (
		out     []byte
		inQuote byte
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		if inQuote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		if c == '"' || c == '\'' || c == '`' {
			inQuote = c
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

// hasEllipsisMarker reports whether a line carries a literal ellipsis
// outside string literals in a position that signals elided content:
// at the start of the line or immediately after a comment leader.
// Mid-line ellipses (variadics, slice bounds, prose in strings) pass.
func hasEllipsisMarker(line string) bool {
	stripped := strings.TrimSpace(stripStrings(line))
	if stripped == "" {
		return false
	}
	for _, leader := range []string{"//", "#", "/*", "*", "--", "<!--"} {
		if rest, ok := strings.CutPrefix(stripped, leader); ok {
			stripped = strings.TrimSpace(rest)
			break
		}
	}
	return strings.HasPrefix(stripped, "...") || strings.HasPrefix(stripped, "…")
}
