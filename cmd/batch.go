package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/JM200322/proyecto-ocr-odoo/internal/config"
	"github.com/JM200322/proyecto-ocr-odoo/internal/logger"
	"github.com/JM200322/proyecto-ocr-odoo/internal/ocr"
	"github.com/JM200322/proyecto-ocr-odoo/internal/scan"
	"github.com/JM200322/proyecto-ocr-odoo/internal/store"
	"github.com/JM200322/proyecto-ocr-odoo/pkg/models"
)

var batchCmd = &cobra.Command{
	Use:   "batch [folder-path]",
	Short: "Scan all images in a folder",
	Long: `Scan every image in a folder through the OCR engine chain.

Images are processed in parallel by a small worker pool, one scan per
file, and a summary is printed at the end. Failed files do not stop
the batch. The collected results can be written to a CSV or JSON file
for further processing.

Required environment variables:
  OCR_SPACE_API_KEY - OCR.space API key

Optional environment variables:
  SCAN_WORKERS - Number of parallel workers (default: 4)`,
	Example: `  # Scan all images in a folder
  ocr-odoo batch ./fotos

  # Scan as invoices and write the results to a CSV file
  ocr-odoo batch ./facturas --type invoice -o resultados.csv --format csv

  # Verbose output with more workers
  SCAN_WORKERS=8 ocr-odoo batch ./fotos --verbose`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

// BatchResult represents the result of scanning a single image
type BatchResult struct {
	Filename string
	Job      *models.ScanJob
	Error    error
	Status   string // "success", "warning", "error"
	Index    int    // Original order index
}

// WorkerJob represents an image scanning job
type WorkerJob struct {
	FilePath string
	Index    int
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("type", "general", "Document type for all images (general, invoice, contact, digits_only)")
	batchCmd.Flags().String("lang", "", "OCR language code (default: from OCR_LANGUAGE, spa)")
	batchCmd.Flags().StringP("output", "o", "", "Write collected results to this file")
	batchCmd.Flags().String("format", "json", "Output file format (json, csv)")
	batchCmd.Flags().Bool("verbose", false, "Show detailed processing information")
}

func runBatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("batch")

	folderPath := args[0]
	docType, _ := cmd.Flags().GetString("type")
	lang, _ := cmd.Flags().GetString("lang")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	verbose, _ := cmd.Flags().GetBool("verbose")

	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		return fmt.Errorf("folder not found: %s", folderPath)
	}
	if !folderInfo.IsDir() {
		return fmt.Errorf("path is not a directory: %s", folderPath)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if lang == "" {
		lang = cfg.OCRLanguage
	}

	log.Info().
		Str("folder", folderPath).
		Str("doc_type", docType).
		Str("lang", lang).
		Bool("verbose", verbose).
		Msg("Starting batch scan")

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("                         ESCANEO POR LOTES")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Carpeta: %s\n", folderPath)
	fmt.Printf("Tipo de documento: %s\n", docType)
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	service, cleanup, err := buildScanService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	imageFiles, err := findImageFiles(folderPath)
	if err != nil {
		return fmt.Errorf("failed to find image files: %w", err)
	}

	if len(imageFiles) == 0 {
		fmt.Println("No se encontraron imágenes en la carpeta.")
		return nil
	}

	numWorkers := getNumWorkers()
	fmt.Printf("Procesando %d imágenes con %d workers en paralelo...\n", len(imageFiles), numWorkers)
	fmt.Println()

	results := processImagesInParallel(ctx, imageFiles, docType, lang, service, numWorkers, log, verbose)

	fmt.Println()

	successCount := 0
	warningCount := 0
	errorCount := 0
	for _, result := range results {
		switch result.Status {
		case "success":
			successCount++
		case "warning":
			warningCount++
		case "error":
			errorCount++
		}
	}

	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("                 RESULTADO")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Exitosos: %d\n", successCount)
	if warningCount > 0 {
		fmt.Printf("Con avisos: %d\n", warningCount)
	}
	if errorCount > 0 {
		fmt.Printf("Errores: %d\n", errorCount)
	}
	fmt.Println()

	if outputPath != "" {
		if err := writeBatchResults(results, outputPath, format); err != nil {
			return err
		}
		fmt.Printf("Resultados guardados en: %s\n", outputPath)
	}

	fmt.Println(strings.Repeat("=", 80))

	log.Info().
		Int("total", len(imageFiles)).
		Int("success", successCount).
		Int("warnings", warningCount).
		Int("errors", errorCount).
		Msg("Batch scan completed")

	return nil
}

// findImageFiles finds all supported image files in the specified folder
func findImageFiles(folderPath string) ([]string, error) {
	var imageFiles []string

	err := filepath.Walk(folderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(info.Name())) {
		case ".png", ".jpg", ".jpeg":
			imageFiles = append(imageFiles, path)
		}

		return nil
	})

	return imageFiles, err
}

// processSingleImage scans a single image file and returns the result
func processSingleImage(ctx context.Context, imagePath, docType, lang string, service *scan.Service, log zerolog.Logger, verbose bool) BatchResult {
	result := BatchResult{
		Status: "error",
	}

	image, err := os.ReadFile(imagePath)
	if err != nil {
		result.Error = fmt.Errorf("failed to read image file: %w", err)
		return result
	}

	job, err := service.Process(ctx, scan.Request{
		Image:    image,
		Language: lang,
		DocType:  docType,
	})
	if err != nil {
		result.Error = err
		// Keep a row for the failure so exports show the whole batch.
		failed := &models.ScanJob{
			ImageHash:    scan.HashImage(image),
			Language:     lang,
			DocType:      docType,
			ErrorMessage: err.Error(),
			CreatedAt:    time.Now(),
		}
		var unavailable *ocr.UnavailableError
		if errors.As(err, &unavailable) {
			failed.Attempts = unavailable.Attempts
		}
		result.Job = failed
		return result
	}

	result.Job = job
	result.Status = "success"

	if job.Text == "" || job.Confidence < 40 {
		result.Status = "warning"
	}

	if verbose {
		log.Info().
			Str("file", filepath.Base(imagePath)).
			Str("engine", job.Engine).
			Int("attempts", job.Attempts).
			Float64("confidence", job.Confidence).
			Int("text_length", len(job.Text)).
			Msg("Image scanned successfully")
	}

	return result
}

// getNumWorkers returns the number of workers from environment or default
func getNumWorkers() int {
	if workersStr := os.Getenv("SCAN_WORKERS"); workersStr != "" {
		if workers, err := strconv.Atoi(workersStr); err == nil && workers > 0 {
			return workers
		}
	}
	return 4 // Default number of workers
}

// processImagesInParallel scans images using a worker pool pattern
func processImagesInParallel(ctx context.Context, imageFiles []string, docType, lang string, service *scan.Service, numWorkers int, log zerolog.Logger, verbose bool) []BatchResult {
	jobs := make(chan WorkerJob, len(imageFiles))
	results := make([]BatchResult, len(imageFiles))

	var processedCount int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for job := range jobs {
				log.Debug().
					Int("worker", workerID).
					Str("file", job.FilePath).
					Int("index", job.Index+1).
					Msg("Worker scanning image")

				result := processSingleImage(ctx, job.FilePath, docType, lang, service, log, verbose)
				result.Index = job.Index
				result.Filename = filepath.Base(job.FilePath)

				results[job.Index] = result

				mu.Lock()
				processedCount++
				currentCount := processedCount
				mu.Unlock()

				status := getStatusEmoji(result.Status)
				mu.Lock()
				fmt.Printf("[%d/%d] %s - %s", currentCount, len(imageFiles), filepath.Base(job.FilePath), status)

				if result.Error != nil {
					fmt.Printf(" (%s)", result.Error.Error())
				} else if result.Job != nil {
					fmt.Printf(" (%.1f%%, %s)", result.Job.Confidence, result.Job.Engine)
				}
				fmt.Println()
				mu.Unlock()
			}
		}(w)
	}

	for i, imageFile := range imageFiles {
		jobs <- WorkerJob{
			FilePath: imageFile,
			Index:    i,
		}
	}
	close(jobs)

	wg.Wait()

	return results
}

// writeBatchResults exports the scanned jobs to a CSV or JSON file
func writeBatchResults(results []BatchResult, outputPath, format string) error {
	jobs := make([]models.ScanJob, 0, len(results))
	for _, result := range results {
		if result.Job != nil {
			jobs = append(jobs, *result.Job)
		}
	}

	out, err := store.Export(jobs, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}
	return nil
}

// getStatusEmoji returns an emoji for the processing status
func getStatusEmoji(status string) string {
	switch status {
	case "success":
		return "✅"
	case "warning":
		return "⚠️"
	case "error":
		return "❌"
	default:
		return "❓"
	}
}
