package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JM200322/proyecto-ocr-odoo/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "ocr-odoo",
	Short: "OCR scan backend for pushing document text into Odoo",
	Long: `ocr-odoo turns photographed documents into text and Odoo records.

Images are recognized through a chain of OCR engines (OCR.space, Google
Vision, local Tesseract), the text is cleaned up and mined for fields
like emails, phone numbers, and amounts, and the result can be pushed
into an Odoo instance or browsed from the scan history.

Run "serve" for the HTTP backend the capture frontend talks to, or use
the one-shot commands to work with files directly.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("ocr-odoo executed")

		fmt.Println("ocr-odoo - document scanning for Odoo")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
