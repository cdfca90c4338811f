package cache

import (
	"context"
	"testing"
	"time"

	"github.com/JM200322/proyecto-ocr-odoo/pkg/models"
)

func testJob() *models.ScanJob {
	return &models.ScanJob{
		ImageHash:  "abc123",
		Text:       "FACTURA 2024-001",
		Confidence: 91.5,
		Engine:     "ocrspace-2",
		Attempts:   1,
		Fields:     map[string][]string{"date": {"15/03/2024"}},
		Success:    true,
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	ctx := context.Background()

	if _, ok, _ := c.GetScan(ctx, "abc123"); ok {
		t.Fatal("expected miss on empty cache")
	}

	if err := c.PutScan(ctx, "abc123", testJob()); err != nil {
		t.Fatalf("PutScan: %v", err)
	}

	got, ok, err := c.GetScan(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetScan: %v", err)
	}
	if !ok {
		t.Fatal("expected hit after PutScan")
	}
	if got.Text != "FACTURA 2024-001" || got.Engine != "ocrspace-2" {
		t.Errorf("unexpected job: %+v", got)
	}
	if got.Fields["date"][0] != "15/03/2024" {
		t.Errorf("fields not preserved: %v", got.Fields)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(10 * time.Minute)
	ctx := context.Background()

	current := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	if err := c.PutScan(ctx, "abc123", testJob()); err != nil {
		t.Fatalf("PutScan: %v", err)
	}

	current = current.Add(9 * time.Minute)
	if _, ok, _ := c.GetScan(ctx, "abc123"); !ok {
		t.Fatal("entry expired too early")
	}

	current = current.Add(2 * time.Minute)
	if _, ok, _ := c.GetScan(ctx, "abc123"); ok {
		t.Fatal("entry should have expired")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not evicted, len=%d", c.Len())
	}
}

func TestMemoryCacheCopiesFields(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	ctx := context.Background()

	job := testJob()
	if err := c.PutScan(ctx, "abc123", job); err != nil {
		t.Fatalf("PutScan: %v", err)
	}

	// Mutating the caller's map must not leak into the cached copy.
	job.Fields["date"][0] = "mutated"

	got, _, _ := c.GetScan(ctx, "abc123")
	if got.Fields["date"][0] != "15/03/2024" {
		t.Errorf("cache shares Fields with caller: %v", got.Fields)
	}

	// Mutating a returned copy must not affect later reads either.
	got.Fields["date"][0] = "mutated"
	again, _, _ := c.GetScan(ctx, "abc123")
	if again.Fields["date"][0] != "15/03/2024" {
		t.Errorf("cache shares Fields with reader: %v", again.Fields)
	}
}
