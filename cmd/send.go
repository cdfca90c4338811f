package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/JM200322/proyecto-ocr-odoo/internal/config"
	"github.com/JM200322/proyecto-ocr-odoo/internal/logger"
	"github.com/JM200322/proyecto-ocr-odoo/internal/odoo"
	"github.com/JM200322/proyecto-ocr-odoo/internal/scan"
	"github.com/JM200322/proyecto-ocr-odoo/pkg/models"
)

var sendCmd = &cobra.Command{
	Use:   "send [image-file]",
	Short: "Scan a document photo and create an Odoo record from it",
	Long: `Recognize the text in an image and push it into an Odoo instance.

The image runs through the full OCR chain, the recognized text is
normalized, and a record is created in Odoo through XML-RPC. The
target model and field depend on the mapping type:

  contacts -> res.partner (comment)
  invoices -> account.move (narration)
  tasks    -> project.task (description)

Required environment variables:
  OCR_SPACE_API_KEY - OCR.space API key
  ODOO_URL          - Odoo server URL
  ODOO_DB           - Odoo database name
  ODOO_USERNAME     - Odoo login
  ODOO_PASSWORD     - Odoo password or API key`,
	Example: `  # Scan a business card into a contact
  ocr-odoo send tarjeta.jpg --type contacts

  # Scan an invoice into a draft vendor bill
  ocr-odoo send factura.jpg --type invoices

  # Test without creating anything
  ocr-odoo send factura.jpg --type invoices --dry-run

  # Push to the staging instance with JSON output
  ocr-odoo send nota.png --instance staging --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

// SendOutput represents the JSON output structure when --json flag is used
type SendOutput struct {
	Text       string              `json:"text"`
	Confidence float64             `json:"confidence"`
	Engine     string              `json:"engine"`
	Fields     map[string][]string `json:"fields,omitempty"`
	Record     *odoo.PushResult    `json:"record,omitempty"`
	DryRun     bool                `json:"dry_run,omitempty"`
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().String("type", "contacts", "Mapping type (contacts, invoices, tasks)")
	sendCmd.Flags().String("instance", "production", "Odoo instance name")
	sendCmd.Flags().String("lang", "", "OCR language code (default: from OCR_LANGUAGE, spa)")
	sendCmd.Flags().Bool("dry-run", false, "Scan the image but don't create the Odoo record")
	sendCmd.Flags().Bool("json", false, "Output as JSON")
	sendCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runSend(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("send")

	mappingType, _ := cmd.Flags().GetString("type")
	instance, _ := cmd.Flags().GetString("instance")
	lang, _ := cmd.Flags().GetString("lang")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	imagePath := args[0]

	if _, ok := odoo.MappingFor(mappingType); !ok {
		return fmt.Errorf("invalid mapping type: %s (must be one of: %s)",
			mappingType, strings.Join(odoo.MappingTypes(), ", "))
	}

	log.Info().
		Str("file", imagePath).
		Str("mapping_type", mappingType).
		Str("instance", instance).
		Bool("dry_run", dryRun).
		Msg("Starting scan and send")

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

	var erp *odoo.Client
	if !dryRun {
		erp, err = buildOdooClient(cfg, log)
		if err != nil {
			return err
		}
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
		return fmt.Errorf("failed to read image file: %w", err)
	}

	log.Info().
		Str("file", imagePath).
		Int64("size", fileInfo.Size()).
		Msg("Processing image")

	job, err := service.Process(ctx, scan.Request{
		Image:    image,
		Language: lang,
		DocType:  docTypeForMapping(mappingType),
	})
	if err != nil {
		return handleScanError(err, log)
	}
	if strings.TrimSpace(job.Text) == "" {
		return fmt.Errorf("no text was recognized in the image, nothing to send")
	}

	var record *odoo.PushResult
	if !dryRun {
		record, err = erp.SendText(ctx, instance, mappingType, job.Text)
		if err != nil {
			return handleOdooError(err, cfg, log)
		}

		log.Info().
			Str("instance", record.Instance).
			Str("model", record.Model).
			Int64("record_id", record.RecordID).
			Msg("Record created in Odoo")
	}

	if jsonOutput {
		return outputSendJSON(job, record, dryRun)
	}
	return outputSendConsole(job, record, dryRun)
}

// docTypeForMapping picks the scan document type that matches an Odoo
// mapping, so invoices get invoice field extraction and contacts get
// contact extraction.
func docTypeForMapping(mappingType string) string {
	switch mappingType {
	case "invoices":
		return "invoice"
	case "contacts":
		return "contact"
	default:
		return "general"
	}
}

// buildOdooClient creates the XML-RPC client from the configured instances
func buildOdooClient(cfg *config.Config, log zerolog.Logger) (*odoo.Client, error) {
	if len(cfg.OdooInstances) == 0 {
		log.Error().Msg("No Odoo instances configured")
		return nil, fmt.Errorf("no Odoo instance configured. Please set:\n" +
			"  ODOO_URL=https://your-instance.odoo.com\n" +
			"  ODOO_DB=your-database\n" +
			"  ODOO_USERNAME=user@example.com\n" +
			"  ODOO_PASSWORD=your-password-or-api-key")
	}

	instances := make(map[string]odoo.Instance, len(cfg.OdooInstances))
	for name, inst := range cfg.OdooInstances {
		instances[name] = odoo.Instance{
			URL:      inst.URL,
			Database: inst.Database,
			Username: inst.Username,
			Password: inst.Password,
		}
	}

	return odoo.NewClient(instances, cfg.OdooTimeout), nil
}

// handleOdooError provides user-friendly error messages for Odoo failures
func handleOdooError(err error, cfg *config.Config, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Odoo push failed")

	switch {
	case errors.Is(err, odoo.ErrAuthFailed):
		return fmt.Errorf("Odoo rejected the credentials. Check ODOO_USERNAME and ODOO_PASSWORD " +
			"(for odoo.com instances use an API key, not the login password)")
	case errors.Is(err, odoo.ErrUnknownInstance):
		names := make([]string, 0, len(cfg.OdooInstances))
		for name := range cfg.OdooInstances {
			names = append(names, name)
		}
		return fmt.Errorf("unknown Odoo instance. Configured instances: %s", strings.Join(names, ", "))
	case errors.Is(err, odoo.ErrUnknownMapping):
		return fmt.Errorf("unknown mapping type. Valid types: %s", strings.Join(odoo.MappingTypes(), ", "))
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("Odoo did not answer in time. Check the instance URL and your network")
	default:
		return fmt.Errorf("failed to create the record in Odoo: %w", err)
	}
}

// outputSendJSON outputs the scan and push results as JSON
func outputSendJSON(job *models.ScanJob, record *odoo.PushResult, dryRun bool) error {
	output := SendOutput{
		Text:       job.Text,
		Confidence: job.Confidence,
		Engine:     job.Engine,
		Fields:     job.Fields,
		Record:     record,
		DryRun:     dryRun,
	}

	jsonData, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}

	fmt.Println(string(jsonData))
	return nil
}

// outputSendConsole outputs the results in a formatted console display
func outputSendConsole(job *models.ScanJob, record *odoo.PushResult, dryRun bool) error {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("                           ENVÍO A ODOO")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Println("=== TEXTO RECONOCIDO ===")
	fmt.Println(job.Text)
	fmt.Println()

	if len(job.Fields) > 0 {
		fmt.Println("=== CAMPOS DETECTADOS ===")
		for name, values := range job.Fields {
			fmt.Printf("%s: %s\n", name, strings.Join(values, ", "))
		}
		fmt.Println()
	}

	fmt.Printf("Motor: %s (intentos: %d)\n", job.Engine, job.Attempts)
	fmt.Printf("Confianza: %.1f%%\n", job.Confidence)
	fmt.Println()

	if dryRun {
		fmt.Println("Modo: Dry Run (no se ha creado ningún registro)")
	} else if record != nil {
		fmt.Println("=== REGISTRO CREADO ===")
		fmt.Printf("Instancia: %s\n", record.Instance)
		fmt.Printf("Modelo: %s\n", record.Model)
		fmt.Printf("Campo: %s\n", record.Field)
		fmt.Printf("ID del registro: %d\n", record.RecordID)
	}

	fmt.Println(strings.Repeat("=", 80))

	return nil
}
