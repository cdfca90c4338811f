package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/JM200322/proyecto-ocr-odoo/internal/config"
	"github.com/JM200322/proyecto-ocr-odoo/internal/imageprep"
	"github.com/JM200322/proyecto-ocr-odoo/internal/logger"
	"github.com/JM200322/proyecto-ocr-odoo/internal/ocr"
	"github.com/JM200322/proyecto-ocr-odoo/internal/scan"
	"github.com/JM200322/proyecto-ocr-odoo/pkg/models"
)

var scanCmd = &cobra.Command{
	Use:   "scan [image-file]",
	Short: "Extract text from a document photo",
	Long: `Recognize the text in a single image through the OCR engine chain.

The image is preprocessed (grayscale, contrast, optional sharpening),
sent through OCR.space engine 2 and engine 3 with retries, and then
through Google Vision and local Tesseract when those are configured.
The recognized text is normalized and mined for structured fields
matching the chosen document type.

Required environment variables:
  OCR_SPACE_API_KEY - OCR.space API key ("helloworld" works for testing)

Optional environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Enables the Google Vision fallback
  TESSERACT_ENABLED - Set to true to enable the local Tesseract fallback`,
	Example: `  # Extract text from a photo to stdout
  ocr-odoo scan factura.jpg

  # Treat the image as an invoice and save the result to a file
  ocr-odoo scan factura.jpg --type invoice -o factura.txt

  # Digits-only mode for meter readings and amounts
  ocr-odoo scan contador.png --digits

  # Include metadata and output as JSON
  ocr-odoo scan factura.jpg --metadata --json -o result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

// ScanOutput represents the JSON output structure when --json flag is used
type ScanOutput struct {
	Text         string              `json:"text"`
	Confidence   float64             `json:"confidence"`
	Engine       string              `json:"engine"`
	Attempts     int                 `json:"attempts"`
	DocType      string              `json:"doc_type"`
	Language     string              `json:"language"`
	Fields       map[string][]string `json:"fields,omitempty"`
	FileName     string              `json:"file_name"`
	FileSize     int64               `json:"file_size"`
	ProcessingMS int64               `json:"processing_ms"`
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().String("type", "general", "Document type (general, invoice, contact, digits_only)")
	scanCmd.Flags().String("lang", "", "OCR language code (default: from OCR_LANGUAGE, spa)")
	scanCmd.Flags().Bool("digits", false, "Shortcut for --type digits_only")
	scanCmd.Flags().BoolP("metadata", "m", false, "Include metadata in output")
	scanCmd.Flags().Bool("json", false, "Output as JSON")
	scanCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan-cmd")

	outputPath, _ := cmd.Flags().GetString("output")
	docType, _ := cmd.Flags().GetString("type")
	lang, _ := cmd.Flags().GetString("lang")
	digits, _ := cmd.Flags().GetBool("digits")
	includeMetadata, _ := cmd.Flags().GetBool("metadata")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	imagePath := args[0]
	if digits {
		docType = "digits_only"
	}

	log.Info().
		Str("file", imagePath).
		Str("doc_type", docType).
		Str("output", outputPath).
		Bool("json", jsonOutput).
		Int("timeout", timeoutSecs).
		Msg("Starting scan")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if lang == "" {
		lang = cfg.OCRLanguage
	}

	fileInfo, err := validateImageFile(imagePath, cfg.MaxUploadBytes, log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	service, cleanup, err := buildScanService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	image, err := os.ReadFile(imagePath)
	if err != nil {
		log.Error().
			Err(err).
			Str("file", imagePath).
			Msg("Failed to read image file")
		return fmt.Errorf("failed to read image file: %w", err)
	}

	log.Info().
		Str("file", imagePath).
		Int64("size", fileInfo.Size()).
		Msg("Processing image")

	job, err := service.Process(ctx, scan.Request{
		Image:    image,
		Language: lang,
		DocType:  docType,
	})
	if err != nil {
		return handleScanError(err, log)
	}

	log.Info().
		Str("engine", job.Engine).
		Int("attempts", job.Attempts).
		Float64("confidence", job.Confidence).
		Int("text_length", len(job.Text)).
		Msg("Scan completed successfully")

	return outputScanResults(job, fileInfo, outputPath, jsonOutput, includeMetadata, log)
}

// validateImageFile checks that the file exists, is readable, and looks like
// a supported image.
func validateImageFile(imagePath string, maxBytes int64, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(imagePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().
				Str("file", imagePath).
				Msg("Image file not found")
			return nil, fmt.Errorf("image file not found: %s", imagePath)
		}
		if os.IsPermission(err) {
			log.Error().
				Str("file", imagePath).
				Msg("Permission denied accessing image file")
			return nil, fmt.Errorf("permission denied accessing image file: %s", imagePath)
		}
		return nil, fmt.Errorf("error accessing image file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().
			Str("file", imagePath).
			Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", imagePath)
	}

	switch strings.ToLower(filepath.Ext(imagePath)) {
	case ".png", ".jpg", ".jpeg":
	default:
		log.Warn().
			Str("file", imagePath).
			Msg("File does not have a known image extension")
	}

	if fileInfo.Size() == 0 {
		log.Error().
			Str("file", imagePath).
			Msg("Image file is empty")
		return nil, fmt.Errorf("image file is empty: %s", imagePath)
	}

	if maxBytes > 0 && fileInfo.Size() > maxBytes {
		log.Error().
			Str("file", imagePath).
			Int64("size", fileInfo.Size()).
			Int64("max_size", maxBytes).
			Msg("Image file exceeds maximum size limit")
		return nil, fmt.Errorf("image file too large (%d bytes). Maximum size is %d bytes",
			fileInfo.Size(), maxBytes)
	}

	return fileInfo, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling scan")
			cancel()
		case <-ctx.Done():
			// Context completed normally
		}
	}()

	return ctx, cancel
}

// buildScanService assembles the recognition chain and wraps it in a scan
// service without cache or database, the setup the one-shot commands use.
func buildScanService(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*scan.Service, func(), error) {
	engine, cleanup, err := scan.BuildOCRService(ctx, cfg, nil)
	if err != nil {
		log.Error().
			Err(err).
			Msg("Failed to build the recognition chain")
		return nil, nil, fmt.Errorf("failed to build the recognition chain: %w", err)
	}

	return scan.NewService(engine, scan.Options{}), cleanup, nil
}

// handleScanError provides user-friendly error messages for scan failures
func handleScanError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Scan failed")

	var unavailable *ocr.UnavailableError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("scan timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("scan was canceled")
	case errors.Is(err, imageprep.ErrInvalidImage):
		return fmt.Errorf("the file is not a decodable image. Supported formats are PNG and JPEG")
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("the image is too large for the OCR engines. Try scaling it down first")
	case errors.Is(err, ocr.ErrRateLimited):
		return fmt.Errorf("the OCR services are rate limiting. Wait a moment and try again")
	case errors.As(err, &unavailable):
		return fmt.Errorf("no OCR engine could read the image after %d attempts. Last error: %v",
			unavailable.Attempts, unavailable.LastErr)
	default:
		return fmt.Errorf("scan failed: %w", err)
	}
}

// outputScanResults formats and outputs the scan results
func outputScanResults(job *models.ScanJob, fileInfo os.FileInfo, outputPath string, jsonOutput, includeMetadata bool, log zerolog.Logger) error {
	var output strings.Builder
	var outputData []byte
	var err error

	if jsonOutput {
		scanOutput := ScanOutput{
			Text:         job.Text,
			Confidence:   job.Confidence,
			Engine:       job.Engine,
			Attempts:     job.Attempts,
			DocType:      job.DocType,
			Language:     job.Language,
			Fields:       job.Fields,
			FileName:     filepath.Base(fileInfo.Name()),
			FileSize:     fileInfo.Size(),
			ProcessingMS: job.ProcessingMS,
		}

		outputData, err = json.MarshalIndent(scanOutput, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
	} else {
		if includeMetadata {
			output.WriteString(fmt.Sprintf("=== Scan results for %s ===\n", filepath.Base(fileInfo.Name())))
			output.WriteString(fmt.Sprintf("File size: %d bytes\n", fileInfo.Size()))
			output.WriteString(fmt.Sprintf("Engine: %s (attempts: %d)\n", job.Engine, job.Attempts))
			output.WriteString(fmt.Sprintf("Confidence: %.1f%%\n", job.Confidence))
			output.WriteString(fmt.Sprintf("Document type: %s\n", job.DocType))
			if len(job.Fields) > 0 {
				output.WriteString("Fields:\n")
				for name, values := range job.Fields {
					output.WriteString(fmt.Sprintf("  %s: %s\n", name, strings.Join(values, ", ")))
				}
			}
			output.WriteString(fmt.Sprintf("Processing time: %dms\n", job.ProcessingMS))
			output.WriteString("\n=== Extracted text ===\n\n")
		}

		output.WriteString(job.Text)
		outputData = []byte(output.String())
	}

	if outputPath != "" {
		err = os.WriteFile(outputPath, outputData, 0644)
		if err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}

		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(outputData)).
			Msg("Scan results written to file")
	} else {
		_, err = os.Stdout.Write(outputData)
		if err != nil {
			log.Error().Err(err).Msg("Failed to write to stdout")
			return fmt.Errorf("failed to write output: %w", err)
		}

		if !jsonOutput {
			fmt.Println()
		}
	}

	return nil
}
