package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JM200322/proyecto-ocr-odoo/internal/imageprep"
	"github.com/JM200322/proyecto-ocr-odoo/internal/ocr"
	"github.com/JM200322/proyecto-ocr-odoo/internal/odoo"
	"github.com/JM200322/proyecto-ocr-odoo/internal/scan"
	"github.com/JM200322/proyecto-ocr-odoo/internal/store"
	"github.com/JM200322/proyecto-ocr-odoo/internal/textproc"
	"github.com/JM200322/proyecto-ocr-odoo/pkg/models"
)

type processOCRRequest struct {
	ImageData  string  `json:"image_data"` // Base64, with or without a data URL prefix
	SessionID  string  `json:"session_id"`
	Language   string  `json:"language"`
	DocType    string  `json:"doc_type"`
	DigitsOnly bool    `json:"digits_only"`
	Brightness float64 `json:"brightness"` // 1.0 is neutral
	Contrast   float64 `json:"contrast"`
	Sharpness  float64 `json:"sharpness"`
}

func (s *Server) handleProcessOCR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req processOCRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.respondWithError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
			return
		}
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	image, err := decodeImageData(req.ImageData)
	if err != nil || len(image) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "image_data must be a base64-encoded image")
		return
	}

	docType := req.DocType
	if req.DigitsOnly {
		docType = string(textproc.DocDigits)
	}

	job, err := s.scans.Process(r.Context(), scan.Request{
		Image:     image,
		SessionID: req.SessionID,
		Language:  normalizeLanguage(req.Language, s.cfg.OCRLanguage),
		DocType:   docType,
		Prep: imageprep.Options{
			Brightness: req.Brightness,
			Contrast:   req.Contrast,
			Sharpness:  req.Sharpness,
			DigitsOnly: req.DigitsOnly,
		},
	})
	if err != nil {
		s.respondScanError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, job)
}

func (s *Server) respondScanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ocr.ErrEmptyImage), errors.Is(err, imageprep.ErrInvalidImage):
		s.respondWithError(w, http.StatusBadRequest, "Image could not be decoded")
	case errors.Is(err, ocr.ErrRateLimited):
		s.respondWithError(w, http.StatusTooManyRequests, "OCR providers are rate limiting, retry later")
	case errors.Is(err, ocr.ErrOCRUnavailable):
		payload := map[string]any{"success": false, "error": "Text recognition is unavailable"}
		var unavailable *ocr.UnavailableError
		if errors.As(err, &unavailable) {
			payload["attempts"] = unavailable.Attempts
			if unavailable.LastErr != nil {
				payload["detail"] = unavailable.LastErr.Error()
			}
		}
		s.respondWithJSON(w, http.StatusServiceUnavailable, payload)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.respondWithError(w, http.StatusServiceUnavailable, "Scan timed out")
	default:
		s.log.Error().Err(err).Msg("Scan failed")
		s.respondWithError(w, http.StatusInternalServerError, "Internal error")
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "History requires a configured database")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	jobs, err := s.history.RecentJobs(r.Context(), limit, offset)
	if err != nil {
		s.log.Error().Err(err).Msg("History query failed")
		s.respondWithError(w, http.StatusInternalServerError, "Could not read history")
		return
	}
	if jobs == nil {
		jobs = []models.ScanJob{}
	}

	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "History requires a configured database")
		return
	}

	days := queryInt(r, "days", s.cfg.RetentionDays)
	if days <= 0 {
		s.respondWithError(w, http.StatusBadRequest, "days must be positive")
		return
	}

	deleted, err := s.history.DeleteOlderThan(r.Context(), days)
	if err != nil {
		s.log.Error().Err(err).Msg("Cleanup failed")
		s.respondWithError(w, http.StatusInternalServerError, "Could not delete old records")
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"deleted": deleted,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "History requires a configured database")
		return
	}

	stats, err := s.history.Stats(r.Context(), queryInt(r, "days", 30))
	if err != nil {
		s.log.Error().Err(err).Msg("Stats query failed")
		s.respondWithError(w, http.StatusInternalServerError, "Could not compute statistics")
		return
	}

	s.respondWithJSON(w, http.StatusOK, stats)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "History requires a configured database")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = store.FormatJSON
	}

	jobs, err := s.history.AllJobs(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Export query failed")
		s.respondWithError(w, http.StatusInternalServerError, "Could not read history")
		return
	}

	out, err := store.Export(jobs, format)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := "application/json"
	if format == store.FormatCSV {
		contentType = "text/csv; charset=utf-8"
	}
	filename := "scan-history-" + time.Now().Format("20060102") + "." + format
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

type sendTextRequest struct {
	Text     string `json:"text"`
	Type     string `json:"type"`     // Mapping type: contacts, invoices, tasks
	Instance string `json:"instance"` // Odoo instance name
	JobID    int64  `json:"job_id"`   // Originating scan, optional
}

func (s *Server) handleSendText(w http.ResponseWriter, r *http.Request) {
	if s.odoo == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "Odoo is not configured")
		return
	}

	var req sendTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		s.respondWithError(w, http.StatusBadRequest, "No text to send")
		return
	}
	mappingType := req.Type
	if mappingType == "" {
		mappingType = "contacts"
	}
	instance := req.Instance
	if instance == "" {
		instance = "production"
	}

	result, err := s.odoo.SendText(r.Context(), instance, mappingType, text)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncERPPush(instance, false)
		}
		s.respondOdooError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.IncERPPush(instance, true)
	}
	if s.history != nil {
		rec := &models.ERPRecord{
			JobID:    req.JobID,
			Instance: result.Instance,
			Model:    result.Model,
			RecordID: result.RecordID,
			Field:    result.Field,
			Success:  true,
		}
		if _, err := s.history.SaveERPRecord(r.Context(), rec); err != nil {
			s.log.Warn().Err(err).Msg("Could not record ERP push")
		}
	}

	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Record created in " + result.Model,
		"record_id": result.RecordID,
		"instance":  result.Instance,
	})
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if s.odoo == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "Odoo is not configured")
		return
	}

	var req struct {
		Instance string `json:"instance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Instance == "" {
		req.Instance = "production"
	}

	uid, err := s.odoo.Authenticate(r.Context(), req.Instance)
	if err != nil {
		s.respondOdooError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Connection established with instance " + req.Instance,
		"user_id": uid,
	})
}

func (s *Server) handleMappings(w http.ResponseWriter, r *http.Request) {
	instances := []string{}
	if s.odoo != nil {
		instances = s.odoo.Instances()
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"mappings":  odoo.MappingTypes(),
		"instances": instances,
	})
}

func (s *Server) respondOdooError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, odoo.ErrUnknownInstance), errors.Is(err, odoo.ErrUnknownMapping), errors.Is(err, odoo.ErrEmptyText):
		s.respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, odoo.ErrAuthFailed):
		s.respondWithError(w, http.StatusUnauthorized, "Odoo rejected the credentials")
	default:
		s.log.Error().Err(err).Msg("Odoo request failed")
		s.respondWithError(w, http.StatusBadGateway, "Odoo is unreachable")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := map[string]string{"status": "ok"}
	healthy := true
	for name, p := range s.pings {
		if err := p.Ping(ctx); err != nil {
			health[name] = "unhealthy"
			healthy = false
			s.log.Error().Err(err).Str("component", name).Msg("Health check failed")
		} else {
			health[name] = "healthy"
		}
	}

	if !healthy {
		health["status"] = "degraded"
		s.respondWithJSON(w, http.StatusServiceUnavailable, health)
		return
	}
	s.respondWithJSON(w, http.StatusOK, health)
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]any{"success": false, "error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// decodeImageData accepts both a raw base64 string and the data URL form
// the camera frontend sends (data:image/jpeg;base64,...).
func decodeImageData(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if idx := strings.Index(data, "base64,"); idx >= 0 {
		data = data[idx+len("base64,"):]
	}
	return base64.StdEncoding.DecodeString(data)
}

// isoLanguages maps the two-letter codes browsers send to the three-letter
// codes the OCR engines expect.
var isoLanguages = map[string]string{
	"es": "spa",
	"en": "eng",
	"fr": "fre",
	"de": "ger",
	"pt": "por",
	"it": "ita",
}

func normalizeLanguage(lang, fallback string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return fallback
	}
	if mapped, ok := isoLanguages[lang]; ok {
		return mapped
	}
	return lang
}
