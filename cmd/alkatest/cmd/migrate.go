package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/alkatest/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending pack store migrations",
	RunE:  runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("--db-url required")
	}
	database, err := db.Open(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	applied, err := db.MigrateUp(database)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", "count", len(applied))
	for _, id := range applied {
		fmt.Fprintln(cmd.OutOrStdout(), "applied", id)
	}
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("--db-url required")
	}
	database, err := db.Open(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	statuses, err := db.MigrateStatus(database)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, s := range statuses {
		if !s.Applied {
			fmt.Fprintf(out, "%s\tpending\n", s.ID)
			continue
		}
		at := "-"
		if s.AppliedAt != nil {
			at = s.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(out, "%s\tapplied %s (%dms)\n", s.ID, at, s.ExecutionMs)
	}
	return nil
}
