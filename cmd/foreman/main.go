// Package main implements the foreman CLI for inspecting governor state:
// routing snapshots, phase proofs, decision trails, and the patch gate.
package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anthropics/foreman/internal/config"
	"github.com/anthropics/foreman/internal/logging"
	"github.com/anthropics/foreman/internal/store"
)

var (
	// configPath is the --config flag shared by every subcommand.
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "Inspect execution governor state",
	Long: `foreman inspects the durable state an execution governor keeps for its
runs: routing snapshots, phase proofs, the decision audit trail, and the
run registry. It also checks unified diffs against the patch quality gate.

It does not start or drive runs; it reads, and selectively refreshes,
what a governor has persisted.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to YAML config file (FOREMAN_* environment variables override)")
}

// loadConfig resolves the effective configuration from the --config file,
// defaults, and FOREMAN_* environment variables.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openFiles opens the file-backed store under the configured data dir.
func openFiles(cfg *config.Config) (*store.FileStore, error) {
	files, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open data dir %s: %w", cfg.DataDir, err)
	}
	return files, nil
}

// openDB opens the SQLite database, running migrations if needed.
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	return db, nil
}

// newLogger builds the configured zap logger for commands that mutate
// state. Read-only commands stay quiet and do not need one.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
