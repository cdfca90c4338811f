package store

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/JM200322/proyecto-ocr-odoo/pkg/models"
)

// Export formats supported by the history endpoint and the CLI.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

func csvHeader() []string {
	return []string{
		"id", "created_at", "image_hash", "session_id", "language", "doc_type",
		"engine", "confidence", "attempts", "processing_ms", "cached",
		"success", "error_message", "fields", "text",
	}
}

func csvRecord(job models.ScanJob) []string {
	fields := ""
	if len(job.Fields) > 0 {
		if raw, err := json.Marshal(job.Fields); err == nil {
			fields = string(raw)
		}
	}
	return []string{
		strconv.FormatInt(job.ID, 10),
		job.CreatedAt.Format(time.RFC3339),
		job.ImageHash,
		job.SessionID,
		job.Language,
		job.DocType,
		job.Engine,
		strconv.FormatFloat(job.Confidence, 'f', 1, 64),
		strconv.Itoa(job.Attempts),
		strconv.FormatInt(job.ProcessingMS, 10),
		strconv.FormatBool(job.Cached),
		strconv.FormatBool(job.Success),
		job.ErrorMessage,
		fields,
		job.Text,
	}
}

// ExportCSV renders jobs as CSV with a header row.
func ExportCSV(jobs []models.ScanJob) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader()); err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}
	for _, job := range jobs {
		if err := w.Write(csvRecord(job)); err != nil {
			return nil, fmt.Errorf("writing CSV record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportJSON renders jobs as indented JSON.
func ExportJSON(jobs []models.ScanJob) ([]byte, error) {
	return json.MarshalIndent(jobs, "", "  ")
}

// Export renders jobs in the requested format.
func Export(jobs []models.ScanJob, format string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportCSV(jobs)
	case FormatJSON, "":
		return ExportJSON(jobs)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
