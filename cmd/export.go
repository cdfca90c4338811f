package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JM200322/proyecto-ocr-odoo/internal/logger"
	"github.com/JM200322/proyecto-ocr-odoo/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the scan history to CSV or JSON",
	Long: `Dump the full scan history in a machine-readable format.

The CSV layout matches the /api/export endpoint, so files produced here
and downloads from the frontend can be processed the same way.

Required environment variables:
  DATABASE_URL - Postgres connection string for the scan history`,
	Example: `  # Print the history as JSON to stdout
  ocr-odoo export

  # Write a CSV file
  ocr-odoo export --format csv -o historial.csv`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("format", "json", "Export format (json, csv)")
	exportCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export")

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	ctx := context.Background()

	db, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	jobs, err := db.AllJobs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Export query failed")
		return fmt.Errorf("failed to read history: %w", err)
	}

	out, err := store.Export(jobs, format)
	if err != nil {
		return err
	}

	if outputPath == "" {
		_, err = os.Stdout.Write(out)
		return err
	}

	if err := os.WriteFile(outputPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Str("format", format).
		Int("jobs", len(jobs)).
		Msg("History exported")
	fmt.Printf("%d escaneos exportados a %s\n", len(jobs), outputPath)

	return nil
}
