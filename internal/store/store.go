// Package store persists scan jobs and ERP push records in PostgreSQL.
//
// The scan_jobs table doubles as a durable deduplication index: before
// calling any OCR engine the pipeline asks FindByImageHash whether the
// same image was already recognized recently.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/JM200322/proyecto-ocr-odoo/internal/logger"
	"github.com/JM200322/proyecto-ocr-odoo/pkg/models"
)

// ErrNotFound is returned when a lookup matches no row or only stale rows.
var ErrNotFound = errors.New("store: not found")

// Store handles interactions with the PostgreSQL database.
type Store struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

func New(ctx context.Context, connStr string) (*Store, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &Store{
		db:  db,
		log: logger.WithComponent("store"),
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() {
	s.db.Close()
}

// Migrate creates the schema. All statements are idempotent, so it runs
// unconditionally at startup.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS scan_jobs (
			id            BIGSERIAL PRIMARY KEY,
			image_hash    TEXT NOT NULL,
			session_id    TEXT NOT NULL DEFAULT '',
			language      TEXT NOT NULL DEFAULT '',
			doc_type      TEXT NOT NULL DEFAULT '',
			image_size    INTEGER NOT NULL DEFAULT 0,
			image_width   INTEGER NOT NULL DEFAULT 0,
			image_height  INTEGER NOT NULL DEFAULT 0,
			extracted_text TEXT NOT NULL DEFAULT '',
			confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
			engine        TEXT NOT NULL DEFAULT '',
			attempts      INTEGER NOT NULL DEFAULT 0,
			processing_ms BIGINT NOT NULL DEFAULT 0,
			cached        BOOLEAN NOT NULL DEFAULT FALSE,
			fields        JSONB NOT NULL DEFAULT '{}',
			success       BOOLEAN NOT NULL DEFAULT FALSE,
			error_message TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS erp_records (
			id         BIGSERIAL PRIMARY KEY,
			job_id     BIGINT NOT NULL DEFAULT 0,
			instance   TEXT NOT NULL DEFAULT '',
			model      TEXT NOT NULL DEFAULT '',
			record_id  BIGINT NOT NULL DEFAULT 0,
			field      TEXT NOT NULL DEFAULT '',
			success    BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_jobs_image_hash ON scan_jobs (image_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_jobs_created_at ON scan_jobs (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_erp_records_job_id ON erp_records (job_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	s.log.Info().Msg("Database schema ready")
	return nil
}

const jobColumns = `id, image_hash, session_id, language, doc_type,
	image_size, image_width, image_height,
	extracted_text, confidence, engine, attempts, processing_ms, cached,
	fields, success, error_message, created_at`

// SaveJob inserts a finished scan and returns its database identifier.
func (s *Store) SaveJob(ctx context.Context, job *models.ScanJob) (int64, error) {
	fieldsJSON, err := json.Marshal(job.Fields)
	if err != nil {
		return 0, fmt.Errorf("save job: %w", err)
	}
	if job.Fields == nil {
		fieldsJSON = []byte(`{}`)
	}

	var id int64
	err = s.db.QueryRow(ctx,
		`INSERT INTO scan_jobs (image_hash, session_id, language, doc_type,
			image_size, image_width, image_height,
			extracted_text, confidence, engine, attempts, processing_ms, cached,
			fields, success, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING id`,
		job.ImageHash, job.SessionID, job.Language, job.DocType,
		job.ImageSize, job.ImageWidth, job.ImageHeight,
		job.Text, job.Confidence, job.Engine, job.Attempts, job.ProcessingMS, job.Cached,
		fieldsJSON, job.Success, job.ErrorMessage,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save job: %w", err)
	}

	job.ID = id
	return id, nil
}

// FindByImageHash returns the newest successful scan of an image. Rows older
// than maxAge are ignored; maxAge <= 0 disables the age check.
func (s *Store) FindByImageHash(ctx context.Context, imageHash string, maxAge time.Duration) (*models.ScanJob, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM scan_jobs
		 WHERE image_hash = $1 AND success
		 ORDER BY created_at DESC LIMIT 1`,
		imageHash,
	)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	if maxAge > 0 && time.Since(job.CreatedAt) > maxAge {
		return nil, ErrNotFound
	}
	return job, nil
}

// RecentJobs lists the scan history, newest first.
func (s *Store) RecentJobs(ctx context.Context, limit, offset int) ([]models.ScanJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM scan_jobs
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("recent jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// AllJobs returns the full scan history, newest first. Used by the exporter.
func (s *Store) AllJobs(ctx context.Context) ([]models.ScanJob, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM scan_jobs ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("all jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// Stats aggregates activity for the last N days.
func (s *Store) Stats(ctx context.Context, days int) (*models.Stats, error) {
	if days <= 0 {
		days = 30
	}

	var stats models.Stats
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE success),
		        COALESCE(AVG(confidence) FILTER (WHERE success), 0),
		        COUNT(*) FILTER (WHERE cached)
		 FROM scan_jobs
		 WHERE created_at >= NOW() - make_interval(days => $1)`,
		days,
	).Scan(&stats.TotalJobs, &stats.SuccessJobs, &stats.AvgConfidence, &stats.CacheHits)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if stats.TotalJobs > 0 {
		stats.SuccessRate = float64(stats.SuccessJobs) / float64(stats.TotalJobs) * 100
	}

	err = s.db.QueryRow(ctx,
		`SELECT engine FROM scan_jobs
		 WHERE created_at >= NOW() - make_interval(days => $1) AND engine <> ''
		 GROUP BY engine ORDER BY COUNT(*) DESC LIMIT 1`,
		days,
	).Scan(&stats.TopEngine)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("stats: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT TO_CHAR(created_at, 'YYYY-MM-DD'), COUNT(*)
		 FROM scan_jobs
		 WHERE created_at >= NOW() - make_interval(days => $1)
		 GROUP BY 1 ORDER BY 1 DESC`,
		days,
	)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	stats.DailyCounts = make(map[string]int64)
	for rows.Next() {
		var day string
		var count int64
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		stats.DailyCounts[day] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	return &stats, nil
}

// DeleteOlderThan removes scans past the retention window along with their
// ERP push records. Returns the number of jobs deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM erp_records WHERE job_id IN (
			SELECT id FROM scan_jobs WHERE created_at < NOW() - make_interval(days => $1)
		 )`,
		days,
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM scan_jobs WHERE created_at < NOW() - make_interval(days => $1)`,
		days,
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}

	deleted := tag.RowsAffected()
	s.log.Info().
		Int64("deleted", deleted).
		Int("retention_days", days).
		Msg("Old scan records removed")
	return deleted, nil
}

// SaveERPRecord records the outcome of an Odoo push.
func (s *Store) SaveERPRecord(ctx context.Context, rec *models.ERPRecord) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO erp_records (job_id, instance, model, record_id, field, success)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		rec.JobID, rec.Instance, rec.Model, rec.RecordID, rec.Field, rec.Success,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save erp record: %w", err)
	}

	rec.ID = id
	return id, nil
}

func scanJob(row pgx.Row) (*models.ScanJob, error) {
	var job models.ScanJob
	var fieldsJSON []byte
	err := row.Scan(
		&job.ID, &job.ImageHash, &job.SessionID, &job.Language, &job.DocType,
		&job.ImageSize, &job.ImageWidth, &job.ImageHeight,
		&job.Text, &job.Confidence, &job.Engine, &job.Attempts, &job.ProcessingMS, &job.Cached,
		&fieldsJSON, &job.Success, &job.ErrorMessage, &job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(fieldsJSON) > 0 {
		// A corrupt fields blob should not sink the whole row.
		_ = json.Unmarshal(fieldsJSON, &job.Fields)
	}
	if len(job.Fields) == 0 {
		job.Fields = nil
	}
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]models.ScanJob, error) {
	var jobs []models.ScanJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan rows: %w", err)
	}
	return jobs, nil
}
