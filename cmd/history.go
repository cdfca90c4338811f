package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JM200322/proyecto-ocr-odoo/internal/config"
	"github.com/JM200322/proyecto-ocr-odoo/internal/logger"
	"github.com/JM200322/proyecto-ocr-odoo/internal/store"
	"github.com/JM200322/proyecto-ocr-odoo/pkg/models"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse the scan history",
	Long: `List recent scans from the history database or show aggregate statistics.

Each listed row shows when the scan happened, which engine produced the
text, the blended confidence, and the first line of the recognized text.

Required environment variables:
  DATABASE_URL - Postgres connection string for the scan history`,
	Example: `  # Show the last 20 scans
  ocr-odoo history

  # Page through older scans
  ocr-odoo history --limit 50 --offset 100

  # Aggregate statistics for the last 7 days
  ocr-odoo history --stats --days 7

  # Raw JSON for scripting
  ocr-odoo history --json`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", 20, "Maximum number of scans to list")
	historyCmd.Flags().Int("offset", 0, "Number of scans to skip")
	historyCmd.Flags().Bool("stats", false, "Show aggregate statistics instead of the list")
	historyCmd.Flags().Int("days", 30, "Statistics window in days (with --stats)")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("history")

	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	showStats, _ := cmd.Flags().GetBool("stats")
	days, _ := cmd.Flags().GetInt("days")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx := context.Background()

	db, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if showStats {
		stats, err := db.Stats(ctx, days)
		if err != nil {
			log.Error().Err(err).Msg("Stats query failed")
			return fmt.Errorf("failed to compute statistics: %w", err)
		}
		if jsonOutput {
			return printJSON(stats)
		}
		printStats(stats, days)
		return nil
	}

	jobs, err := db.RecentJobs(ctx, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("History query failed")
		return fmt.Errorf("failed to read history: %w", err)
	}

	if jsonOutput {
		return printJSON(jobs)
	}
	printJobs(jobs)
	return nil
}

// openStore connects to the scan history database using the configuration
// from the environment.
func openStore(ctx context.Context) (*store.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL environment variable is required for history commands")
	}

	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to the database: %w", err)
	}
	return db, cfg, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printJobs(jobs []models.ScanJob) {
	if len(jobs) == 0 {
		fmt.Println("No hay escaneos en el historial.")
		return
	}

	fmt.Printf("%-6s %-17s %-3s %-12s %-7s %-10s %s\n",
		"ID", "FECHA", "", "MOTOR", "CONF", "TIPO", "TEXTO")
	fmt.Println(strings.Repeat("-", 100))
	for _, job := range jobs {
		status := "✅"
		if !job.Success {
			status = "❌"
		}
		fmt.Printf("%-6d %-17s %-3s %-12s %5.1f%% %-10s %s\n",
			job.ID,
			job.CreatedAt.Format("2006-01-02 15:04"),
			status,
			job.Engine,
			job.Confidence,
			job.DocType,
			firstLine(job.Text, 40))
	}
	fmt.Printf("\n%d escaneos\n", len(jobs))
}

func printStats(stats *models.Stats, days int) {
	fmt.Printf("=== ESTADÍSTICAS (últimos %d días) ===\n", days)
	fmt.Printf("Escaneos totales: %d\n", stats.TotalJobs)
	fmt.Printf("Exitosos: %d (%.1f%%)\n", stats.SuccessJobs, stats.SuccessRate)
	fmt.Printf("Confianza media: %.1f%%\n", stats.AvgConfidence)
	if stats.TopEngine != "" {
		fmt.Printf("Motor más usado: %s\n", stats.TopEngine)
	}
	fmt.Printf("Aciertos de caché: %d\n", stats.CacheHits)

	if len(stats.DailyCounts) > 0 {
		fmt.Println("Por día:")
		dates := make([]string, 0, len(stats.DailyCounts))
		for date := range stats.DailyCounts {
			dates = append(dates, date)
		}
		sort.Strings(dates)
		for _, date := range dates {
			fmt.Printf("  %s: %d\n", date, stats.DailyCounts[date])
		}
	}
}

// firstLine returns the first line of text truncated to max runes, for
// single-row console output.
func firstLine(text string, max int) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	runes := []rune(text)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return text
}
