package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/anthropics/foreman/internal/domain"
	"github.com/anthropics/foreman/internal/routing"
	"github.com/anthropics/foreman/internal/store"
)

var (
	snapRunID string
	snapForce bool
	snapJSON  bool
)

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotRefreshCmd)

	snapshotCmd.PersistentFlags().StringVar(&snapRunID, "run", "", "run identifier (required)")
	snapshotCmd.PersistentFlags().BoolVar(&snapJSON, "json", false, "output as JSON")
	_ = snapshotCmd.MarkPersistentFlagRequired("run")

	snapshotRefreshCmd.Flags().BoolVar(&snapForce, "force", false,
		"rebuild even when the stored snapshot is still fresh")
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect and refresh per-run routing snapshots",
	Long: `Inspect the routing snapshot a run's tier escalations resolve against.

Examples:
  # Show the tier table for a run
  foreman snapshot show --run build-42

  # Rebuild a stale snapshot from the configured catalog
  foreman snapshot refresh --run build-42

  # Force a rebuild even when the stored snapshot is fresh
  foreman snapshot refresh --run build-42 --force`,
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a run's routing snapshot",
	RunE:  runSnapshotShow,
}

var snapshotRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Load the run's snapshot, rebuilding it when stale or forced",
	RunE:  runSnapshotRefresh,
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	files, err := openFiles(cfg)
	if err != nil {
		return err
	}

	snap, ok, err := store.NewSnapshotRepo(files).LoadSnapshot(context.Background(), snapRunID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no snapshot stored for run %s", snapRunID)
	}

	if snapJSON {
		return outputJSON(snap)
	}
	return printSnapshot(snap)
}

func runSnapshotRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	files, err := openFiles(cfg)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var catalog routing.Catalog
	if entries := cfg.RoutingEntries(); len(entries) > 0 {
		static, err := routing.NewStaticCatalog(entries)
		if err != nil {
			return err
		}
		catalog = static
	}

	mgr := routing.NewManager(store.NewSnapshotRepo(files), catalog, cfg.Staleness(), logger)
	snap, err := mgr.RefreshOrLoad(context.Background(), snapRunID, snapForce)
	if err != nil {
		return err
	}

	if snapJSON {
		return outputJSON(snap)
	}
	return printSnapshot(snap)
}

func printSnapshot(snap *domain.RoutingSnapshot) error {
	fmt.Printf("Snapshot: %s\n", snap.SnapshotID)
	fmt.Printf("Run: %s\n", snap.RunID)
	fmt.Printf("Created: %s\n", time.Unix(snap.CreatedAtUnix, 0).UTC().Format("2006-01-02 15:04:05"))
	if snap.ExpiresAtUnix > 0 {
		fmt.Printf("Expires: %s\n", time.Unix(snap.ExpiresAtUnix, 0).UTC().Format("2006-01-02 15:04:05"))
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIER\tMODEL\tPROVIDER\tMAX_OUT\tCONTEXT\tCOST_IN\tCOST_OUT\tSTRICT_OK")
	for _, e := range snap.Entries {
		strictStr := ""
		if e.SafetyCompatible {
			strictStr = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2f\t%.2f\t%s\n",
			e.Tier, e.ModelID, e.Provider,
			e.MaxOutputTokens, e.MaxContextChars,
			e.CostPerUnitInput, e.CostPerUnitOutput,
			strictStr)
	}
	return w.Flush()
}
