package models

import "time"

// ScanJob is one processed document photo as stored in history.
type ScanJob struct {
	// Core identifiers
	ID        int64  `json:"id"`
	ImageHash string `json:"image_hash"` // SHA-256 of the raw upload, used for deduplication

	// Request context
	SessionID string `json:"session_id,omitempty"` // Browser session that submitted the capture
	Language  string `json:"language"`             // OCR language code (spa, eng, ...)
	DocType   string `json:"doc_type"`             // general, invoice, contact, digits_only

	// Image metadata (after preparation)
	ImageSize   int `json:"image_size"` // Prepared JPEG size in bytes
	ImageWidth  int `json:"image_width"`
	ImageHeight int `json:"image_height"`

	// Recognition outcome
	Text         string  `json:"text"`          // Normalized text
	Confidence   float64 `json:"confidence"`    // Blended score 0-100
	Engine       string  `json:"engine"`        // Winning engine (ocrspace-2, google-vision, ...)
	Attempts     int     `json:"attempts"`      // Total recognition attempts across engines
	ProcessingMS int64   `json:"processing_ms"` // Wall time of the recognition chain
	Cached       bool    `json:"cached"`        // True when served from the dedupe cache

	// Extracted structured fields by kind
	Fields map[string][]string `json:"fields,omitempty"`

	// Status
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"` // Failure detail when Success is false

	CreatedAt time.Time `json:"created_at"` // Record creation timestamp
}

// ERPRecord tracks one push of scan text into an Odoo instance.
type ERPRecord struct {
	ID       int64  `json:"id"`
	JobID    int64  `json:"job_id,omitempty"` // Scan job the text came from (0 when pushed ad hoc)
	Instance string `json:"instance"`         // Named Odoo instance (production, staging)
	Model    string `json:"model"`            // Odoo model the record was created in (res.partner, ...)
	RecordID int64  `json:"record_id"`        // Identifier assigned by Odoo
	Field    string `json:"field"`            // Text field the scan landed in (comment, narration, ...)
	Success  bool   `json:"success"`

	CreatedAt time.Time `json:"created_at"`
}

// Stats summarizes the scan history for the dashboard.
type Stats struct {
	TotalJobs     int64            `json:"total_jobs"`
	SuccessJobs   int64            `json:"success_jobs"`
	SuccessRate   float64          `json:"success_rate"`
	AvgConfidence float64          `json:"avg_confidence"`
	TopEngine     string           `json:"top_engine"`
	CacheHits     int64            `json:"cache_hits"`
	DailyCounts   map[string]int64 `json:"daily_counts"`
}
