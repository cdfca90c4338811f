package store

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/JM200322/proyecto-ocr-odoo/pkg/models"
)

func exportJobs() []models.ScanJob {
	created := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	return []models.ScanJob{
		{
			ID:           2,
			ImageHash:    "feed",
			Language:     "spa",
			DocType:      "invoice",
			Engine:       "ocrspace-2",
			Confidence:   91.5,
			Attempts:     1,
			ProcessingMS: 850,
			Text:         "FACTURA 2024-001\nTotal: 1.234,56 €",
			Fields:       map[string][]string{"amount": {"1.234,56 €"}},
			Success:      true,
			CreatedAt:    created.Add(time.Hour),
		},
		{
			ID:           1,
			ImageHash:    "dead",
			Language:     "spa",
			DocType:      "general",
			Attempts:     6,
			ErrorMessage: "ocr: unavailable after 6 attempts",
			CreatedAt:    created,
		},
	}
}

func TestExportCSV(t *testing.T) {
	out, err := ExportCSV(exportJobs())
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("reading generated CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d records", len(records))
	}

	header := records[0]
	if header[0] != "id" || header[len(header)-1] != "text" {
		t.Errorf("unexpected header: %v", header)
	}
	for i, row := range records[1:] {
		if len(row) != len(header) {
			t.Errorf("row %d has %d columns, header has %d", i, len(row), len(header))
		}
	}

	first := records[1]
	if first[0] != "2" || first[1] != "2024-03-15T11:30:00Z" {
		t.Errorf("unexpected first row: %v", first)
	}
	if !strings.Contains(first[13], `"amount"`) {
		t.Errorf("fields column should hold JSON, got %q", first[13])
	}
	// Multi-line text must survive CSV quoting.
	if !strings.Contains(first[14], "\n") {
		t.Errorf("text column lost its newline: %q", first[14])
	}

	second := records[2]
	if second[11] != "false" || second[12] != "ocr: unavailable after 6 attempts" {
		t.Errorf("unexpected failure row: %v", second)
	}
}

func TestExportJSON(t *testing.T) {
	out, err := ExportJSON(exportJobs())
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	var decoded []models.ScanJob
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decoding generated JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(decoded))
	}
	if decoded[0].Engine != "ocrspace-2" || decoded[0].Fields["amount"][0] != "1.234,56 €" {
		t.Errorf("unexpected job: %+v", decoded[0])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	if _, err := Export(nil, "xml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if _, err := Export(nil, ""); err != nil {
		t.Fatalf("empty format should default to JSON: %v", err)
	}
}
