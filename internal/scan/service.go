// Package scan runs the full document scan pipeline: deduplicate by image
// hash, prepare the image, recognize text through the engine chain,
// normalize and extract fields, then persist the outcome.
//
// Every stage past deduplication is best-effort observable: cache and
// database failures are logged and skipped so a broken Redis or Postgres
// never blocks a scan.
package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/JM200322/proyecto-ocr-odoo/internal/cache"
	"github.com/JM200322/proyecto-ocr-odoo/internal/imageprep"
	"github.com/JM200322/proyecto-ocr-odoo/internal/logger"
	"github.com/JM200322/proyecto-ocr-odoo/internal/monitoring"
	"github.com/JM200322/proyecto-ocr-odoo/internal/ocr"
	"github.com/JM200322/proyecto-ocr-odoo/internal/store"
	"github.com/JM200322/proyecto-ocr-odoo/internal/textproc"
	"github.com/JM200322/proyecto-ocr-odoo/pkg/models"
)

// Request describes one scan submission.
type Request struct {
	Image     []byte // Raw upload, any format the image decoder knows
	SessionID string
	Language  string // OCR language code, empty means Spanish
	DocType   string // general, invoice, contact, digits_only
	Prep      imageprep.Options
}

// JobStore is the slice of the database layer the pipeline needs.
type JobStore interface {
	SaveJob(ctx context.Context, job *models.ScanJob) (int64, error)
	FindByImageHash(ctx context.Context, imageHash string, maxAge time.Duration) (*models.ScanJob, error)
}

// Options wires the optional collaborators. Any of them may be left nil;
// the pipeline then runs without that stage.
type Options struct {
	Cache        cache.Cache
	Store        JobStore
	Metrics      *monitoring.Metrics
	LookupMaxAge time.Duration // how old a stored scan may be to count as a duplicate
}

// Service executes scans.
type Service struct {
	engine       ocr.OCRService
	cache        cache.Cache
	store        JobStore
	metrics      *monitoring.Metrics
	lookupMaxAge time.Duration
	log          zerolog.Logger
}

func NewService(engine ocr.OCRService, opts Options) *Service {
	return &Service{
		engine:       engine,
		cache:        opts.Cache,
		store:        opts.Store,
		metrics:      opts.Metrics,
		lookupMaxAge: opts.LookupMaxAge,
		log:          logger.WithComponent("scan"),
	}
}

// HashImage returns the hex SHA-256 of an upload, the key used for
// deduplication everywhere in the system.
func HashImage(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Process runs one scan end to end and returns the persisted job.
func (s *Service) Process(ctx context.Context, req Request) (*models.ScanJob, error) {
	const op = "Process"

	if len(req.Image) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ocr.ErrEmptyImage)
	}
	if req.DocType == "" {
		req.DocType = string(textproc.DocGeneral)
	}

	start := time.Now()
	imageHash := HashImage(req.Image)

	if job := s.lookupDuplicate(ctx, imageHash, req); job != nil {
		if s.metrics != nil {
			s.metrics.IncScan("cached", job.Engine)
		}
		return job, nil
	}

	prepared, meta, err := imageprep.Prepare(req.Image, s.prepOptions(req))
	if err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		s.recordFailure(ctx, imageHash, req, 0, err)
		return nil, err
	}

	result, err := s.engine.Recognize(ctx, ocr.OCRRequest{
		Image:    prepared,
		Mode:     modeFor(req.DocType),
		Language: req.Language,
	})
	if err != nil {
		attempts := 0
		var unavailable *ocr.UnavailableError
		if errors.As(err, &unavailable) {
			attempts = unavailable.Attempts
		}
		err = fmt.Errorf("%s: %w", op, err)
		s.recordFailure(ctx, imageHash, req, attempts, err)
		return nil, err
	}

	clean, fields := textproc.Normalize(result.Text, req.Language, textproc.DocType(req.DocType))
	confidence := textproc.BlendConfidence(result.Confidence, textproc.ScoreText(clean, fields))

	job := &models.ScanJob{
		ImageHash:    imageHash,
		SessionID:    req.SessionID,
		Language:     req.Language,
		DocType:      req.DocType,
		ImageSize:    meta.Size,
		ImageWidth:   meta.Width,
		ImageHeight:  meta.Height,
		Text:         clean,
		Confidence:   confidence,
		Engine:       result.Engine,
		Attempts:     result.Attempts,
		ProcessingMS: time.Since(start).Milliseconds(),
		Fields:       fields,
		Success:      true,
		CreatedAt:    time.Now(),
	}

	s.persist(ctx, imageHash, job)

	if s.metrics != nil {
		s.metrics.IncScan("success", job.Engine)
		s.metrics.ObserveScanDuration(time.Since(start))
	}

	s.log.Info().
		Str("image_hash", shortHash(imageHash)).
		Str("engine", job.Engine).
		Int("attempts", job.Attempts).
		Float64("confidence", job.Confidence).
		Int("text_length", len(job.Text)).
		Int("fields", fields.Count()).
		Msg("Scan completed")

	return job, nil
}

// lookupDuplicate checks the cache and then the database for a previous
// successful scan of the same image. The returned job is marked as cached
// and its fields are recomputed when the requested document type differs,
// which is safe because normalization is idempotent.
func (s *Service) lookupDuplicate(ctx context.Context, imageHash string, req Request) *models.ScanJob {
	if s.cache != nil {
		job, ok, err := s.cache.GetScan(ctx, imageHash)
		if err != nil {
			s.log.Warn().Err(err).Msg("Cache lookup failed, continuing without it")
		}
		if s.metrics != nil {
			s.metrics.IncCacheLookup(ok)
		}
		if ok {
			s.log.Info().Str("image_hash", shortHash(imageHash)).Msg("Serving scan from cache")
			return s.asDuplicate(job, req)
		}
	}

	if s.store != nil {
		job, err := s.store.FindByImageHash(ctx, imageHash, s.lookupMaxAge)
		if err == nil {
			s.log.Info().Str("image_hash", shortHash(imageHash)).Msg("Serving scan from history")
			dup := s.asDuplicate(job, req)
			if s.cache != nil {
				if err := s.cache.PutScan(ctx, imageHash, dup); err != nil {
					s.log.Warn().Err(err).Msg("Cache backfill failed")
				}
			}
			return dup
		}
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn().Err(err).Msg("History lookup failed, continuing without it")
		}
	}

	return nil
}

func (s *Service) asDuplicate(job *models.ScanJob, req Request) *models.ScanJob {
	dup := *job
	dup.Cached = true
	dup.SessionID = req.SessionID
	if dup.DocType != req.DocType {
		_, dup.Fields = textproc.Normalize(dup.Text, req.Language, textproc.DocType(req.DocType))
		dup.DocType = req.DocType
	}
	return &dup
}

func (s *Service) prepOptions(req Request) imageprep.Options {
	opts := req.Prep
	if opts.Brightness == 0 {
		opts.Brightness = 1
	}
	if opts.Contrast == 0 {
		opts.Contrast = 1
	}
	if opts.Sharpness == 0 {
		opts.Sharpness = 1
	}
	if req.DocType == string(textproc.DocDigits) {
		opts.DigitsOnly = true
	}
	return opts
}

// recordFailure keeps failed scans in the history so operators can see
// what went wrong. Persistence errors here are only logged.
func (s *Service) recordFailure(ctx context.Context, imageHash string, req Request, attempts int, cause error) {
	if s.metrics != nil {
		s.metrics.IncScan("failure", "")
	}
	s.log.Error().
		Err(cause).
		Str("image_hash", shortHash(imageHash)).
		Int("attempts", attempts).
		Msg("Scan failed")

	if s.store == nil {
		return
	}
	job := &models.ScanJob{
		ImageHash:    imageHash,
		SessionID:    req.SessionID,
		Language:     req.Language,
		DocType:      req.DocType,
		Attempts:     attempts,
		ErrorMessage: cause.Error(),
		CreatedAt:    time.Now(),
	}
	if _, err := s.store.SaveJob(ctx, job); err != nil {
		s.log.Warn().Err(err).Msg("Could not record failed scan")
	}
}

func (s *Service) persist(ctx context.Context, imageHash string, job *models.ScanJob) {
	if s.store != nil {
		if _, err := s.store.SaveJob(ctx, job); err != nil {
			s.log.Warn().Err(err).Msg("Could not save scan job")
		}
	}
	if s.cache != nil {
		if err := s.cache.PutScan(ctx, imageHash, job); err != nil {
			s.log.Warn().Err(err).Msg("Could not cache scan job")
		}
	}
}

func modeFor(docType string) ocr.Mode {
	switch textproc.DocType(docType) {
	case textproc.DocInvoice:
		return ocr.ModeInvoice
	case textproc.DocContact:
		return ocr.ModeContact
	case textproc.DocDigits:
		return ocr.ModeDigitsOnly
	default:
		return ocr.ModeGeneral
	}
}

func shortHash(imageHash string) string {
	if len(imageHash) > 12 {
		return imageHash[:12]
	}
	return imageHash
}
