package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/anthropics/foreman/internal/store"
)

var (
	proofRunID   string
	proofPhaseID string
	proofJSON    bool
)

func init() {
	rootCmd.AddCommand(proofsCmd)
	proofsCmd.AddCommand(proofsListCmd)
	proofsCmd.AddCommand(proofsShowCmd)

	proofsCmd.PersistentFlags().StringVar(&proofRunID, "run", "", "run identifier (required)")
	proofsCmd.PersistentFlags().BoolVar(&proofJSON, "json", false, "output as JSON")
	_ = proofsCmd.MarkPersistentFlagRequired("run")

	proofsShowCmd.Flags().StringVar(&proofPhaseID, "phase", "", "phase identifier (required)")
	_ = proofsShowCmd.MarkFlagRequired("phase")
}

var proofsCmd = &cobra.Command{
	Use:   "proofs",
	Short: "Inspect phase proofs",
	Long: `Inspect the proofs a run's completed phases left behind.

Examples:
  # List proven phases for a run
  foreman proofs list --run build-42

  # Show one phase's proof
  foreman proofs show --run build-42 --phase implement-auth

  # Same, as JSON
  foreman proofs show --run build-42 --phase implement-auth --json`,
}

var proofsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the phases with a stored proof",
	RunE:  runProofsList,
}

var proofsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show one phase's proof",
	RunE:  runProofsShow,
}

func runProofsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	files, err := openFiles(cfg)
	if err != nil {
		return err
	}
	repo := store.NewProofRepo(files)

	ctx := context.Background()
	phases, err := repo.List(ctx, proofRunID)
	if err != nil {
		return err
	}
	if len(phases) == 0 {
		fmt.Printf("No proofs stored for run %s\n", proofRunID)
		return nil
	}

	if proofJSON {
		return outputJSON(phases)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHASE\tSUCCESS\tDURATION\tTESTS\tCOMPLETED")
	for _, phaseID := range phases {
		p, ok, err := repo.Load(ctx, proofRunID, phaseID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		successStr := "no"
		if p.Success {
			successStr = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%.0fs\t%d/%d\t%s\n",
			phaseID, successStr, p.DurationSeconds,
			p.Verification.TestsPassed,
			p.Verification.TestsPassed+p.Verification.TestsFailed,
			time.Unix(p.CompletedAtUnix, 0).UTC().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runProofsShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	files, err := openFiles(cfg)
	if err != nil {
		return err
	}

	p, ok, err := store.NewProofRepo(files).Load(context.Background(), proofRunID, proofPhaseID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no proof stored for run %s phase %s", proofRunID, proofPhaseID)
	}

	if proofJSON {
		return outputJSON(p)
	}

	fmt.Printf("Proof: %s\n", p.ProofID)
	fmt.Printf("Phase: %s\n", p.PhaseID)
	fmt.Printf("Success: %t\n", p.Success)
	fmt.Printf("Started: %s\n", time.Unix(p.CreatedAtUnix, 0).UTC().Format("2006-01-02 15:04:05"))
	fmt.Printf("Completed: %s\n", time.Unix(p.CompletedAtUnix, 0).UTC().Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration: %.0fs\n", p.DurationSeconds)
	fmt.Printf("Changes: +%d ~%d -%d files\n",
		p.Changes.FilesCreated, p.Changes.FilesModified, p.Changes.FilesDeleted)
	if len(p.Changes.KeyChanges) > 0 {
		fmt.Printf("Key changes:\n  %s\n", strings.Join(p.Changes.KeyChanges, "\n  "))
	}
	if p.Changes.Summary != "" {
		fmt.Printf("Change summary: %s\n", p.Changes.Summary)
	}
	fmt.Printf("Tests: %d passed, %d failed\n",
		p.Verification.TestsPassed, p.Verification.TestsFailed)
	if p.Verification.Summary != "" {
		fmt.Printf("Verification summary: %s\n", p.Verification.Summary)
	}
	if p.ErrorSummary != "" {
		fmt.Printf("Error: %s\n", p.ErrorSummary)
	}
	return nil
}
