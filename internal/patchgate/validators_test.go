package patchgate

import (
	"strings"
	"testing"

	"github.com/anthropics/foreman/internal/domain"
)

func singleFile(path string, op domain.ChangeOp, oldContent, newContent string) domain.Patch {
	return domain.Patch{Files: []domain.FileChange{{
		Path:       path,
		Op:         op,
		OldContent: oldContent,
		NewContent: newContent,
	}}}
}

func TestTruncationValidator(t *testing.T) {
	v := &TruncationValidator{}

	tests := []struct {
		name     string
		patch    domain.Patch
		wantKind domain.ViolationKind
		wantNone bool
	}{
		{
			name:     "elision comment in created file",
			patch:    singleFile("svc.go", domain.OpCreate, "", "package svc\n\n// ... rest of implementation\n"),
			wantKind: domain.ViolationTruncation,
		},
		{
			name:     "bare ellipsis line",
			patch:    singleFile("svc.py", domain.OpCreate, "", "def run():\n    pass\n...\n"),
			wantKind: domain.ViolationTruncation,
		},
		{
			name:     "variadic ellipsis is not elision",
			patch:    singleFile("svc.go", domain.OpCreate, "", "package svc\n\nfunc Sum(ns ...int) int { return 0 }\n"),
			wantNone: true,
		},
		{
			name:     "ellipsis inside string literal is not elision",
			patch:    singleFile("svc.go", domain.OpCreate, "", "package svc\n\nvar sep = \"...\"\n"),
			wantNone: true,
		},
		{
			name: "pre-existing ellipsis in modified file is not the patch's fault",
			patch: singleFile("svc.go", domain.OpModify,
				"package svc\n\n// ... legacy note\nvar a = 1\n",
				"package svc\n\n// ... legacy note\nvar a = 2\n"),
			wantNone: true,
		},
		{
			name:     "file ends mid-statement",
			patch:    singleFile("app.ts", domain.OpCreate, "", "const items = [\n  1,\n  2,\nconst total =\n"),
			wantKind: domain.ViolationTruncation,
		},
		{
			name:     "file ends inside string literal",
			patch:    singleFile("app.js", domain.OpCreate, "", "const msg = 'incomplete"),
			wantKind: domain.ViolationUnclosedQuote,
		},
		{
			name:     "python block header colon is legal",
			patch:    singleFile("job.py", domain.OpCreate, "", "def run():\n    pass\n\nclass Job:\n"),
			wantNone: true,
		},
		{
			name:     "unrecognized extension skips tail checks",
			patch:    singleFile("notes.txt", domain.OpCreate, "", "draft sentence ends with =\n"),
			wantNone: true,
		},
		{
			name:     "deleted file content is not checked",
			patch:    singleFile("gone.go", domain.OpDelete, "package gone\nvar x = \"dangling", ""),
			wantNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := v.Check(tt.patch)
			if tt.wantNone {
				if len(violations) != 0 {
					t.Fatalf("want no violations, got %v", violations)
				}
				return
			}
			if len(violations) != 1 {
				t.Fatalf("want 1 violation, got %d: %v", len(violations), violations)
			}
			if violations[0].Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", violations[0].Kind, tt.wantKind)
			}
			if violations[0].FilePath == "" {
				t.Error("violation must name the file")
			}
		})
	}
}

func TestConflictValidator(t *testing.T) {
	v := &ConflictValidator{}

	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"ours marker at line start", "package a\n<<<<<<< HEAD\nvar x = 1\n", 1},
		{"theirs marker at line start", "package a\n>>>>>>> feature/x\nvar x = 1\n", 1},
		{"lone separator banner is legitimate", "# Title\n=======\n\nbody\n", 0},
		{"separator in comment", "package a\n// =======\nvar x = 1\n", 0},
		{"marker mid-line is not residue", "package a\nvar arrow = \"x <<<<<<< y\"\n", 0},
		{"clean content", "package a\n\nvar x = 1\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := v.Check(singleFile("a.go", domain.OpModify, "package a\n", tt.content))
			if len(violations) != tt.want {
				t.Fatalf("want %d violations, got %d: %v", tt.want, len(violations), violations)
			}
			if tt.want > 0 && violations[0].Kind != domain.ViolationConflictMarker {
				t.Errorf("Kind = %s, want %s", violations[0].Kind, domain.ViolationConflictMarker)
			}
		})
	}
}

func TestSyntaxValidator(t *testing.T) {
	v := &SyntaxValidator{MaxDetailLen: 200}

	tests := []struct {
		name    string
		path    string
		content string
		want    int
	}{
		{"valid go", "ok.go", "package ok\n\nfunc F() {}\n", 0},
		{"go missing brace", "bad.go", "package bad\n\nfunc F() {\n", 1},
		{"valid json", "cfg.json", "{\"a\": 1}\n", 0},
		{"invalid json", "cfg.json", "{\"a\": }\n", 1},
		{"balanced fences", "doc.md", "intro\n```go\ncode\n```\n", 0},
		{"unbalanced fences", "doc.md", "intro\n```go\ncode\n", 1},
		{"unrecognized extension skipped", "data.csv", "a,b,c\n1,2\n", 0},
		{"empty content skipped", "empty.go", "   \n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := v.Check(singleFile(tt.path, domain.OpCreate, "", tt.content))
			if len(violations) != tt.want {
				t.Fatalf("want %d violations, got %d: %v", tt.want, len(violations), violations)
			}
			if tt.want > 0 && violations[0].Kind != domain.ViolationSyntaxError {
				t.Errorf("Kind = %s, want %s", violations[0].Kind, domain.ViolationSyntaxError)
			}
		})
	}
}

func TestSyntaxValidator_BoundsParserErrorText(t *testing.T) {
	v := &SyntaxValidator{MaxDetailLen: 20}

	violations := v.Check(singleFile("bad.go", domain.OpCreate, "", "package bad\n\nfunc F( {\n"))
	if len(violations) != 1 {
		t.Fatalf("want 1 violation, got %v", violations)
	}
	if len(violations[0].Detail) > 20+len("...") {
		t.Errorf("detail not bounded: %d chars", len(violations[0].Detail))
	}
}

func TestSymbolValidator(t *testing.T) {
	old := strings.Join([]string{
		"package api",
		"",
		"type Client struct{}",
		"",
		"func Dial() *Client { return nil }",
		"",
		"func (c *Client) Close() error { return nil }",
		"",
		"const DefaultTimeout = 30",
		"",
	}, "\n")

	v := &SymbolValidator{LossRatio: 0.3, MaxListed: 8}

	t.Run("heavy loss is flagged with names", func(t *testing.T) {
		kept := "package api\n\ntype Client struct{}\n"
		violations := v.Check(singleFile("api.go", domain.OpModify, old, kept))
		if len(violations) != 1 {
			t.Fatalf("want 1 violation, got %v", violations)
		}
		got := violations[0]
		if got.Kind != domain.ViolationSymbolLoss {
			t.Errorf("Kind = %s, want %s", got.Kind, domain.ViolationSymbolLoss)
		}
		for _, name := range []string{"Dial", "Close", "DefaultTimeout"} {
			if !strings.Contains(got.Detail, name) {
				t.Errorf("detail should name lost symbol %s: %q", name, got.Detail)
			}
		}
	})

	t.Run("loss at the ratio is tolerated", func(t *testing.T) {
		// One of four symbols gone: 0.25 <= 0.3.
		kept := strings.Join([]string{
			"package api",
			"",
			"type Client struct{}",
			"",
			"func Dial() *Client { return nil }",
			"",
			"func (c *Client) Close() error { return nil }",
			"",
		}, "\n")
		if violations := v.Check(singleFile("api.go", domain.OpModify, old, kept)); len(violations) != 0 {
			t.Fatalf("want no violations, got %v", violations)
		}
	})

	t.Run("renamed symbols still count as loss", func(t *testing.T) {
		renamed := strings.Replace(old, "Dial", "Connect", 1)
		renamed = strings.Replace(renamed, "Close", "Shutdown", 1)
		renamed = strings.Replace(renamed, "DefaultTimeout", "MaxTimeout", 1)
		violations := v.Check(singleFile("api.go", domain.OpModify, old, renamed))
		if len(violations) != 1 {
			t.Fatalf("want 1 violation, got %v", violations)
		}
	})

	t.Run("created files are skipped", func(t *testing.T) {
		if violations := v.Check(singleFile("api.go", domain.OpCreate, "", "package api\n")); len(violations) != 0 {
			t.Fatalf("want no violations, got %v", violations)
		}
	})

	t.Run("bounded name list", func(t *testing.T) {
		tight := &SymbolValidator{LossRatio: 0.3, MaxListed: 2}
		violations := tight.Check(singleFile("api.go", domain.OpModify, old, "package api\n"))
		if len(violations) != 1 {
			t.Fatalf("want 1 violation, got %v", violations)
		}
		if !strings.Contains(violations[0].Detail, "more)") {
			t.Errorf("detail should note elided names: %q", violations[0].Detail)
		}
	})
}

func TestSymbolExtraction(t *testing.T) {
	tests := []struct {
		name    string
		ext     string
		content string
		want    []string
	}{
		{
			"go declarations",
			".go",
			"package a\n\nfunc Top() {}\n\ntype Shape struct{}\n\nvar count = 0\nconst Limit = 5\n",
			[]string{"Top", "Shape", "count", "Limit"},
		},
		{
			"go nested funcs excluded",
			".go",
			"package a\n\nfunc Outer() {\n\tinner := func() {}\n\t_ = inner\n}\n",
			[]string{"Outer"},
		},
		{
			"typescript declarations",
			".ts",
			"export function render() {}\nexport const VERSION = '1'\nclass Widget {}\ninterface Props {}\n",
			[]string{"render", "VERSION", "Widget", "Props"},
		},
		{
			"python declarations",
			".py",
			"def main():\n    pass\n\nclass Runner:\n    def step(self):\n        pass\n\nMAX_RETRIES = 3\n",
			[]string{"main", "Runner", "MAX_RETRIES"},
		},
		{
			"unsupported extension",
			".rb",
			"def hello\nend\n",
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractSymbols(tt.content, tt.ext)
			if len(got) != len(tt.want) {
				t.Fatalf("extractSymbols = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("symbol[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSimilarityValidator(t *testing.T) {
	v := &SimilarityValidator{Minimum: 0.6}

	base := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 8)

	t.Run("small edit passes", func(t *testing.T) {
		edited := strings.Replace(base, "lazy", "sleepy", 1)
		if violations := v.Check(singleFile("story.txt", domain.OpModify, base, edited)); len(violations) != 0 {
			t.Fatalf("want no violations, got %v", violations)
		}
	})

	t.Run("wholesale replacement is flagged", func(t *testing.T) {
		replaced := strings.Repeat("zq\n", 4)
		violations := v.Check(singleFile("story.txt", domain.OpModify, base, replaced))
		if len(violations) != 1 {
			t.Fatalf("want 1 violation, got %v", violations)
		}
		if violations[0].Kind != domain.ViolationStructuralDivergence {
			t.Errorf("Kind = %s, want %s", violations[0].Kind, domain.ViolationStructuralDivergence)
		}
	})

	t.Run("created files are skipped", func(t *testing.T) {
		if violations := v.Check(singleFile("story.txt", domain.OpCreate, "", "anything at all\n")); len(violations) != 0 {
			t.Fatalf("want no violations, got %v", violations)
		}
	})
}

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		atLeast float64
		below   float64
	}{
		{"identical", "abc\n", "abc\n", 1.0, 1.01},
		{"both empty", "", "", 1.0, 1.01},
		{"disjoint", "aaaa", "zzzz", 0.0, 0.1},
		{"half overlap", "aabb", "aacc", 0.4, 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := similarityRatio(tt.a, tt.b)
			if got < tt.atLeast || got >= tt.below {
				t.Errorf("similarityRatio = %v, want in [%v, %v)", got, tt.atLeast, tt.below)
			}
		})
	}
}

func TestStructureValidator(t *testing.T) {
	v := &StructureValidator{MaxDetailLen: 200}

	t.Run("no raw diff is skipped", func(t *testing.T) {
		patch := singleFile("a.go", domain.OpCreate, "", "package a\n")
		if violations := v.Check(patch); len(violations) != 0 {
			t.Fatalf("want no violations, got %v", violations)
		}
	})

	t.Run("well-formed diff passes", func(t *testing.T) {
		raw := "diff --git a/a.go b/a.go\n" +
			"--- a/a.go\n" +
			"+++ b/a.go\n" +
			"@@ -1,1 +1,1 @@\n" +
			"-package a\n" +
			"+package b\n"
		if violations := v.Check(domain.Patch{RawDiff: raw}); len(violations) != 0 {
			t.Fatalf("want no violations, got %v", violations)
		}
	})

	t.Run("prose is not a diff", func(t *testing.T) {
		violations := v.Check(domain.Patch{RawDiff: "I could not produce a diff, sorry.\n"})
		if len(violations) != 1 {
			t.Fatalf("want 1 violation, got %v", violations)
		}
		if violations[0].Kind != domain.ViolationIncompleteDiff {
			t.Errorf("Kind = %s, want %s", violations[0].Kind, domain.ViolationIncompleteDiff)
		}
	})

	t.Run("diff cut off mid-hunk", func(t *testing.T) {
		raw := "diff --git a/a.go b/a.go\n" +
			"--- a/a.go\n" +
			"+++ b/a.go\n" +
			"@@ -1,3 +1,4 @@\n" +
			" package a\n"
		violations := v.Check(domain.Patch{RawDiff: raw})
		if len(violations) != 1 {
			t.Fatalf("want 1 violation, got %v", violations)
		}
		k := violations[0].Kind
		if k != domain.ViolationIncompleteDiff && k != domain.ViolationMalformedHunk {
			t.Errorf("Kind = %s, want a diff-structure kind", k)
		}
	})

	t.Run("file section without hunks", func(t *testing.T) {
		raw := "diff --git a/a.go b/a.go\n" +
			"--- a/a.go\n" +
			"+++ b/a.go\n"
		violations := v.Check(domain.Patch{RawDiff: raw})
		if len(violations) != 1 {
			t.Fatalf("want 1 violation, got %v", violations)
		}
		if violations[0].Kind != domain.ViolationIncompleteDiff {
			t.Errorf("Kind = %s, want %s", violations[0].Kind, domain.ViolationIncompleteDiff)
		}
	})
}
