package scan

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/JM200322/proyecto-ocr-odoo/internal/cache"
	"github.com/JM200322/proyecto-ocr-odoo/internal/imageprep"
	"github.com/JM200322/proyecto-ocr-odoo/internal/ocr"
	"github.com/JM200322/proyecto-ocr-odoo/internal/store"
	"github.com/JM200322/proyecto-ocr-odoo/pkg/models"
)

// fakeEngine stands in for the recognition chain.
type fakeEngine struct {
	result *ocr.OCRResult
	err    error
	calls  int
}

func (f *fakeEngine) Recognize(_ context.Context, _ ocr.OCRRequest) (*ocr.OCRResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	return &res, nil
}

// fakeStore keeps jobs in memory and honors the store.ErrNotFound contract.
type fakeStore struct {
	saved  []*models.ScanJob
	byHash map[string]*models.ScanJob
	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{byHash: make(map[string]*models.ScanJob)}
}

func (f *fakeStore) SaveJob(_ context.Context, job *models.ScanJob) (int64, error) {
	f.nextID++
	job.ID = f.nextID
	f.saved = append(f.saved, job)
	if job.Success {
		f.byHash[job.ImageHash] = job
	}
	return job.ID, nil
}

func (f *fakeStore) FindByImageHash(_ context.Context, imageHash string, _ time.Duration) (*models.ScanJob, error) {
	job, ok := f.byHash[imageHash]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func testUpload(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 800; x++ {
			c := color.RGBA{R: 240, G: 238, B: 232, A: 255}
			if (y/25)%3 == 0 && x%40 < 28 {
				c = color.RGBA{R: 20, G: 20, B: 20, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestProcessRunsFullPipeline(t *testing.T) {
	engine := &fakeEngine{result: &ocr.OCRResult{
		Text:       "  FACTURA   2024-001  \n\n\n  juan@example.com  ",
		Confidence: 90,
		Engine:     "ocrspace-2",
		Attempts:   1,
	}}
	db := newFakeStore()
	mem := cache.NewMemoryCache(time.Hour)
	svc := NewService(engine, Options{Cache: mem, Store: db})

	upload := testUpload(t)
	job, err := svc.Process(context.Background(), Request{Image: upload, DocType: "invoice", Language: "spa"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if job.Text != "FACTURA 2024-001\n\njuan@example.com" {
		t.Errorf("text not normalized: %q", job.Text)
	}
	if !job.Success || job.Cached {
		t.Errorf("unexpected status: success=%v cached=%v", job.Success, job.Cached)
	}
	if job.Engine != "ocrspace-2" || job.Attempts != 1 {
		t.Errorf("engine metadata lost: %+v", job)
	}
	if job.Fields["email"][0] != "juan@example.com" {
		t.Errorf("fields not extracted: %v", job.Fields)
	}
	if job.Confidence <= 0 || job.Confidence > 100 {
		t.Errorf("confidence out of range: %v", job.Confidence)
	}
	if job.ImageWidth == 0 || job.ImageHeight == 0 || job.ImageSize == 0 {
		t.Errorf("image metadata missing: %+v", job)
	}

	if len(db.saved) != 1 {
		t.Fatalf("expected 1 saved job, got %d", len(db.saved))
	}
	if _, ok, _ := mem.GetScan(context.Background(), job.ImageHash); !ok {
		t.Error("job not cached after processing")
	}
}

func TestProcessServesFromCache(t *testing.T) {
	engine := &fakeEngine{err: errors.New("engine must not be called")}
	mem := cache.NewMemoryCache(time.Hour)
	svc := NewService(engine, Options{Cache: mem})

	upload := testUpload(t)
	hash := HashImage(upload)
	cached := &models.ScanJob{
		ImageHash:  hash,
		DocType:    "general",
		Text:       "FACTURA 2024-001",
		Confidence: 88,
		Engine:     "ocrspace-3",
		Success:    true,
	}
	if err := mem.PutScan(context.Background(), hash, cached); err != nil {
		t.Fatalf("PutScan: %v", err)
	}

	job, err := svc.Process(context.Background(), Request{Image: upload, DocType: "general"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !job.Cached {
		t.Error("job should be marked cached")
	}
	if job.Engine != "ocrspace-3" || job.Text != "FACTURA 2024-001" {
		t.Errorf("cached payload lost: %+v", job)
	}
	if engine.calls != 0 {
		t.Errorf("engine called %d times for a cache hit", engine.calls)
	}
}

func TestProcessFallsBackToHistoryAndBackfillsCache(t *testing.T) {
	engine := &fakeEngine{err: errors.New("engine must not be called")}
	db := newFakeStore()
	mem := cache.NewMemoryCache(time.Hour)
	svc := NewService(engine, Options{Cache: mem, Store: db, LookupMaxAge: time.Hour})

	upload := testUpload(t)
	hash := HashImage(upload)
	db.byHash[hash] = &models.ScanJob{
		ImageHash: hash,
		DocType:   "general",
		Text:      "Texto recuperado",
		Engine:    "google-vision",
		Success:   true,
		CreatedAt: time.Now(),
	}

	job, err := svc.Process(context.Background(), Request{Image: upload, DocType: "general"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !job.Cached || job.Engine != "google-vision" {
		t.Errorf("history hit not served: %+v", job)
	}
	if engine.calls != 0 {
		t.Error("engine called despite history hit")
	}
	if _, ok, _ := mem.GetScan(context.Background(), hash); !ok {
		t.Error("cache not backfilled from history")
	}
}

func TestProcessRecomputesFieldsForNewDocType(t *testing.T) {
	engine := &fakeEngine{err: errors.New("engine must not be called")}
	mem := cache.NewMemoryCache(time.Hour)
	svc := NewService(engine, Options{Cache: mem})

	upload := testUpload(t)
	hash := HashImage(upload)
	if err := mem.PutScan(context.Background(), hash, &models.ScanJob{
		ImageHash: hash,
		DocType:   "general",
		Text:      "juan@example.com llama al 612 345 678",
		Success:   true,
	}); err != nil {
		t.Fatalf("PutScan: %v", err)
	}

	job, err := svc.Process(context.Background(), Request{Image: upload, DocType: "contact"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if job.DocType != "contact" {
		t.Errorf("doc type not updated: %q", job.DocType)
	}
	if job.Fields["email"][0] != "juan@example.com" {
		t.Errorf("fields not recomputed for contact: %v", job.Fields)
	}
	if len(job.Fields["phone"]) == 0 {
		t.Errorf("phone not extracted: %v", job.Fields)
	}
}

func TestProcessRecordsFailure(t *testing.T) {
	engine := &fakeEngine{err: &ocr.UnavailableError{Attempts: 6, LastErr: ocr.ErrTransient}}
	db := newFakeStore()
	svc := NewService(engine, Options{Store: db})

	_, err := svc.Process(context.Background(), Request{Image: testUpload(t), DocType: "general"})
	if !errors.Is(err, ocr.ErrOCRUnavailable) {
		t.Fatalf("expected ErrOCRUnavailable, got %v", err)
	}

	if len(db.saved) != 1 {
		t.Fatalf("failure not recorded, saved=%d", len(db.saved))
	}
	failed := db.saved[0]
	if failed.Success || failed.Attempts != 6 || failed.ErrorMessage == "" {
		t.Errorf("bad failure record: %+v", failed)
	}
}

func TestProcessRejectsEmptyImage(t *testing.T) {
	svc := NewService(&fakeEngine{}, Options{})
	if _, err := svc.Process(context.Background(), Request{}); !errors.Is(err, ocr.ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
}

func TestProcessRejectsUndecodableImage(t *testing.T) {
	db := newFakeStore()
	svc := NewService(&fakeEngine{}, Options{Store: db})

	_, err := svc.Process(context.Background(), Request{Image: []byte("not an image at all")})
	if !errors.Is(err, imageprep.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
	if len(db.saved) != 1 || db.saved[0].Success {
		t.Errorf("decode failure should be recorded: %+v", db.saved)
	}
}
