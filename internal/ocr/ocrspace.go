package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultOCRSpaceURL is the public parse endpoint of the OCR.space API.
	DefaultOCRSpaceURL = "https://api.ocr.space/parse/image"

	// MaxOCRSpaceBytes is the upload limit of the OCR.space free tier (1MB).
	MaxOCRSpaceBytes = 1024 * 1024

	// defaultConfidence is assumed when the engine returns text without a
	// word overlay to average real scores from.
	defaultConfidence = 85.0
)

// OCRSpaceConfig configures one OCR.space engine as a provider. The same
// endpoint is registered twice with different Engine values to build the
// primary/secondary chain.
type OCRSpaceConfig struct {
	APIKey   string
	Endpoint string
	Engine   int
	Timeout  time.Duration
	MaxBytes int
}

// OCRSpaceProvider implements Provider against the OCR.space HTTP API.
type OCRSpaceProvider struct {
	cfg    OCRSpaceConfig
	client *http.Client
}

// NewOCRSpaceProvider creates a provider for one OCR.space engine.
func NewOCRSpaceProvider(cfg OCRSpaceConfig) *OCRSpaceProvider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOCRSpaceURL
	}
	if cfg.Engine == 0 {
		cfg.Engine = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = MaxOCRSpaceBytes
	}
	return &OCRSpaceProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// NewOCRSpaceProviderWithClient creates a provider with an explicit HTTP
// client (for testing).
func NewOCRSpaceProviderWithClient(cfg OCRSpaceConfig, client *http.Client) *OCRSpaceProvider {
	p := NewOCRSpaceProvider(cfg)
	p.client = client
	return p
}

// Name identifies the provider including its engine number.
func (p *OCRSpaceProvider) Name() string {
	return "ocrspace-" + strconv.Itoa(p.cfg.Engine)
}

// Recognize performs a single recognition attempt against the configured
// engine. Failures are classified so the orchestrator can decide whether a
// retry is worthwhile.
func (p *OCRSpaceProvider) Recognize(ctx context.Context, req OCRRequest) (*OCRResult, error) {
	const op = "ocrspace.Recognize"

	if len(req.Image) == 0 {
		return nil, NewOCRError(op, ErrEmptyImage, "")
	}
	if len(req.Image) > p.cfg.MaxBytes {
		return nil, NewOCRError(op, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(req.Image)),
			fmt.Sprintf("limit is %d bytes", p.cfg.MaxBytes))
	}

	body, contentType, err := p.buildForm(req)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to build multipart form")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, body)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Timeouts and connection resets are worth another try.
		return nil, NewOCRError(op, fmt.Errorf("%w: %v", ErrTransient, err), "request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, NewOCRError(op, fmt.Errorf("%w: %v", ErrTransient, err), "failed to read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// Parsed below.
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewOCRError(op, fmt.Errorf("%w: HTTP 429", ErrRateLimited), trimBody(respBody))
	case resp.StatusCode >= 500:
		return nil, NewOCRError(op, fmt.Errorf("%w: HTTP %d", ErrTransient, resp.StatusCode), trimBody(respBody))
	default:
		return nil, NewOCRError(op, fmt.Errorf("%w: HTTP %d", ErrPermanent, resp.StatusCode), trimBody(respBody))
	}

	return p.parseResponse(respBody)
}

// buildForm assembles the multipart body the OCR.space API expects. The file
// field is named "filename" with a fixed image name, matching what the
// service accepts for raw camera uploads.
func (p *OCRSpaceProvider) buildForm(req OCRRequest) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	language := req.Language
	if language == "" {
		language = "spa"
	}

	fields := map[string]string{
		"apikey":            p.cfg.APIKey,
		"language":          language,
		"OCREngine":         strconv.Itoa(p.cfg.Engine),
		"isOverlayRequired": "true",
		"detectOrientation": "true",
		"scale":             "true",
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}

	part, err := writer.CreateFormFile("filename", "image.jpg")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

// parseResponse maps the OCR.space JSON body onto an OCRResult.
func (p *OCRSpaceProvider) parseResponse(respBody []byte) (*OCRResult, error) {
	const op = "ocrspace.parse"

	var parsed ocrSpaceResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, NewOCRError(op, fmt.Errorf("%w: %v", ErrTransient, err), "invalid JSON response")
	}

	if parsed.IsErroredOnProcessing {
		detail := string(parsed.ErrorMessage)
		if detail == "" {
			detail = parsed.ErrorDetails
		}
		return nil, NewOCRError(op, fmt.Errorf("%w: processing error", ErrTransient), detail)
	}

	// An empty result set with no error flag means the service found no
	// text. That is a legitimate empty success, not a failure.
	if len(parsed.ParsedResults) == 0 {
		return &OCRResult{Engine: p.Name()}, nil
	}

	first := parsed.ParsedResults[0]
	result := &OCRResult{
		Text:       first.ParsedText,
		Confidence: overlayConfidence(first.TextOverlay, first.ParsedText),
		Engine:     p.Name(),
	}
	if ms, err := strconv.Atoi(parsed.ProcessingTimeInMilliseconds); err == nil {
		result.ProcessingTime = time.Duration(ms) * time.Millisecond
	}
	return result, nil
}

// overlayConfidence averages the word-level scores from the text overlay.
// Engines that omit the overlay get a fixed default for non-empty text.
func overlayConfidence(overlay *ocrSpaceOverlay, text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	if overlay == nil {
		return defaultConfidence
	}

	var sum float64
	var count int
	for _, line := range overlay.Lines {
		for _, word := range line.Words {
			if word.Confidence > 0 {
				sum += word.Confidence
				count++
			}
		}
	}
	if count == 0 {
		return defaultConfidence
	}
	return sum / float64(count)
}

func trimBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// ocrSpaceResponse mirrors the relevant parts of the OCR.space parse
// response. Numeric timings arrive as strings.
type ocrSpaceResponse struct {
	ParsedResults                []ocrSpaceParsedResult `json:"ParsedResults"`
	OCRExitCode                  int                    `json:"OCRExitCode"`
	IsErroredOnProcessing        bool                   `json:"IsErroredOnProcessing"`
	ErrorMessage                 flexibleMessage        `json:"ErrorMessage"`
	ErrorDetails                 string                 `json:"ErrorDetails"`
	ProcessingTimeInMilliseconds string                 `json:"ProcessingTimeInMilliseconds"`
}

type ocrSpaceParsedResult struct {
	ParsedText        string           `json:"ParsedText"`
	FileParseExitCode int              `json:"FileParseExitCode"`
	TextOverlay       *ocrSpaceOverlay `json:"TextOverlay"`
}

type ocrSpaceOverlay struct {
	Lines []ocrSpaceLine `json:"Lines"`
}

type ocrSpaceLine struct {
	LineText string         `json:"LineText"`
	Words    []ocrSpaceWord `json:"Words"`
}

type ocrSpaceWord struct {
	WordText   string  `json:"WordText"`
	Confidence float64 `json:"Confidence"`
}

// flexibleMessage tolerates the API reporting errors as either a plain
// string or a list of strings.
type flexibleMessage string

func (m *flexibleMessage) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*m = ""
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*m = flexibleMessage(single)
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*m = flexibleMessage(strings.Join(many, "; "))
		return nil
	}

	*m = flexibleMessage(string(data))
	return nil
}
