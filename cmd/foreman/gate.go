package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gitleaks/go-gitdiff/gitdiff"
	"github.com/spf13/cobra"

	"github.com/anthropics/foreman/internal/patchgate"
)

var gateBaseDir string

func init() {
	rootCmd.AddCommand(gateCmd)
	gateCmd.AddCommand(gateCheckCmd)

	gateCheckCmd.Flags().StringVar(&gateBaseDir, "base", "",
		"directory holding the pre-patch files the diff applies to")
}

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Run the patch quality gate",
	Long: `Run the patch quality gate over a unified diff without touching any
run state. Useful for checking agent output by hand or from scripts.

Examples:
  # Check a diff that only creates files
  foreman gate check fix.patch

  # Check a diff against the tree it was generated from
  foreman gate check fix.patch --base ./worktree

  # Read the diff from stdin
  git diff | foreman gate check -`,
}

var gateCheckCmd = &cobra.Command{
	Use:   "check <diff-file>",
	Short: "Validate a unified diff, exiting non-zero on violations",
	Args:  cobra.ExactArgs(1),
	RunE:  runGateCheck,
}

func runGateCheck(cmd *cobra.Command, args []string) error {
	var raw []byte
	var err error
	if args[0] == "-" {
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	} else {
		raw, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read diff: %w", err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	patch, violations := patchgate.FromUnifiedDiff(string(raw), baseContents(string(raw), gateBaseDir))
	gate := patchgate.New(patchgate.Config{
		SymbolLossRatio: cfg.Gate.SymbolLossRatio,
		SimilarityMin:   cfg.Gate.SimilarityMin,
	})
	violations = append(violations, gate.Validate(patch)...)

	if len(violations) == 0 {
		fmt.Printf("gate passed: %d file(s), no violations\n", len(patch.Files))
		return nil
	}
	for _, v := range violations {
		fmt.Println(v.String())
	}
	return fmt.Errorf("%d violation(s)", len(violations))
}

// baseContents reads the pre-patch content of every file the diff
// touches from dir. Files the diff creates, or that dir does not hold,
// are simply absent; the gate reports the resulting mismatches itself.
func baseContents(raw, dir string) map[string]string {
	contents := map[string]string{}
	if dir == "" {
		return contents
	}
	files, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return contents
	}
	for _, f := range files {
		if f.IsNew || f.OldName == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.OldName))
		if err != nil {
			continue
		}
		contents[f.OldName] = string(data)
	}
	return contents
}
