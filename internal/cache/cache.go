// Package cache provides short-lived storage for completed scan results,
// keyed by the SHA-256 hash of the uploaded image. A cache hit lets the
// API answer a repeated upload without calling any OCR engine.
package cache

import (
	"context"
	"fmt"

	"github.com/JM200322/proyecto-ocr-odoo/pkg/models"
)

// Cache stores scan results for a bounded time.
type Cache interface {
	// GetScan returns the cached result for an image hash, or ok=false on a miss.
	GetScan(ctx context.Context, imageHash string) (*models.ScanJob, bool, error)

	// PutScan stores a result under an image hash for the configured TTL.
	PutScan(ctx context.Context, imageHash string, job *models.ScanJob) error

	Close() error
}

func scanKey(imageHash string) string {
	return fmt.Sprintf("scan:%s", imageHash)
}

// cloneJob copies a job so callers and the cache never share the Fields map.
func cloneJob(job *models.ScanJob) *models.ScanJob {
	if job == nil {
		return nil
	}
	clone := *job
	if job.Fields != nil {
		clone.Fields = make(map[string][]string, len(job.Fields))
		for kind, values := range job.Fields {
			clone.Fields[kind] = append([]string(nil), values...)
		}
	}
	return &clone
}
