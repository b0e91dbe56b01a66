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

var runsJSON bool

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "output as JSON")
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List registered runs, newest first",
	Long: `List every run in the registry with its current status.

Examples:
  # See which runs are still running or waiting on a human
  foreman runs

  # Same, as JSON
  foreman runs --json`,
	RunE: runRuns,
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := &store.RunRepo{}
	runs, err := repo.List(context.Background(), db)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs registered")
		return nil
	}

	if runsJSON {
		return outputJSON(runs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tPROFILE\tCREATED\tUPDATED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.RunID, r.Status, r.SafetyProfile,
			time.Unix(r.CreatedAtUnix, 0).UTC().Format("2006-01-02 15:04"),
			time.Unix(r.UpdatedAtUnix, 0).UTC().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
