package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JM200322/proyecto-ocr-odoo/internal/logger"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old scans from the history",
	Long: `Delete scans older than the retention window from the history database,
together with their recorded Odoo pushes.

Without --days the configured retention (HISTORY_RETENTION_DAYS,
default 90) applies.

Required environment variables:
  DATABASE_URL - Postgres connection string for the scan history`,
	Example: `  # Apply the configured retention
  ocr-odoo cleanup

  # Keep only the last month
  ocr-odoo cleanup --days 30`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().Int("days", 0, "Delete scans older than this many days (default: configured retention)")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("cleanup")

	days, _ := cmd.Flags().GetInt("days")

	ctx := context.Background()

	db, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if days <= 0 {
		days = cfg.RetentionDays
	}
	if days <= 0 {
		return fmt.Errorf("retention must be positive, got %d days", days)
	}

	deleted, err := db.DeleteOlderThan(ctx, days)
	if err != nil {
		log.Error().Err(err).Int("days", days).Msg("Cleanup failed")
		return fmt.Errorf("failed to delete old scans: %w", err)
	}

	log.Info().
		Int("days", days).
		Int64("deleted", deleted).
		Msg("History cleanup completed")
	fmt.Printf("%d escaneos con más de %d días eliminados\n", deleted, days)

	return nil
}
