package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/anthropics/foreman/internal/store"
)

var (
	decRunID string
	decJSON  bool
)

func init() {
	rootCmd.AddCommand(decisionsCmd)

	decisionsCmd.Flags().StringVar(&decRunID, "run", "", "run identifier (required)")
	decisionsCmd.Flags().BoolVar(&decJSON, "json", false, "output as JSON")
	_ = decisionsCmd.MarkFlagRequired("run")
}

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Show a run's stuck-handling decision trail",
	Long: `Show every stuck-handling decision recorded for a run, oldest first.

Examples:
  # Audit why a run escalated or stopped
  foreman decisions --run build-42

  # Same, as JSON
  foreman decisions --run build-42 --json`,
	RunE: runDecisions,
}

func runDecisions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := &store.DecisionRepo{}
	records, err := repo.ListByRun(context.Background(), db, decRunID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No decisions recorded for run %s\n", decRunID)
		return nil
	}

	if decJSON {
		return outputJSON(records)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tPHASE\tREASON\tDECISION\tBUDGET\tFAILS\tESC")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f%%\t%d\t%d\n",
			time.Unix(r.CreatedAtUnix, 0).UTC().Format("2006-01-02 15:04:05"),
			r.PhaseID, r.Reason, r.Decision,
			r.BudgetRemaining*100,
			r.ConsecutiveFailures, r.EscalationsUsed)
	}
	return w.Flush()
}
