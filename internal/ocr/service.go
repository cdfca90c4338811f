// Package ocr extracts text from document photos using a chain of
// recognition providers.
//
// The primary provider is the OCR.space HTTP API, tried with two different
// engine identifiers. Google Cloud Vision can be registered as an additional
// remote fallback and a local Tesseract install as the last resort. The
// orchestrator owns the shared retry and backoff loop; providers only perform
// a single recognition attempt.
//
// Required Environment Variables:
//   - OCR_SPACE_API_KEY: OCR.space API key ("helloworld" works for testing)
//
// Optional Environment Variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - TESSERACT_ENABLED: Set to true when a local tesseract install exists
//
// OCR.space API Limitations:
//   - Free tier: 1MB per image, 500 requests per day
//   - Engine 2 handles numbers and mixed scripts best; engine 3 is the
//     fallback with broader language coverage
//   - Rate limiting answers HTTP 429 and is retried with a longer wait
package ocr

import (
	"context"
	"time"
)

// Mode is a caller-supplied hint that influences engine choice and
// post-processing rules downstream.
type Mode string

const (
	ModeGeneral    Mode = "general"
	ModeInvoice    Mode = "invoice"
	ModeContact    Mode = "contact"
	ModeDigitsOnly Mode = "digits_only"
)

// OCRRequest carries one image through the recognition chain. It is created
// per call and discarded after the response.
type OCRRequest struct {
	// Image is the raw encoded image payload (JPEG or PNG).
	Image []byte

	// Mode selects engine preference and downstream cleanup rules.
	Mode Mode

	// Language is the OCR.space language code (e.g. "spa", "eng").
	// Providers translate it to their own dialect when needed.
	Language string
}

// OCRResult contains the outcome of a successful recognition.
type OCRResult struct {
	// Text is the raw text reported by the winning engine.
	Text string `json:"text"`

	// Confidence is the engine-reported score from 0 to 100.
	Confidence float64 `json:"confidence"`

	// Engine identifies the provider that produced the result
	// (e.g. "ocrspace-2", "google-vision", "tesseract").
	Engine string `json:"engine"`

	// Attempts is the total number of recognition attempts made across all
	// engines, including the successful one.
	Attempts int `json:"attempts"`

	// ProcessingTime is the total wall time spent recognizing, including
	// retries and backoff waits.
	ProcessingTime time.Duration `json:"processing_time"`
}

// OCRService defines the interface for document text recognition.
type OCRService interface {
	// Recognize extracts text from an image, retrying and falling back
	// across engines as needed.
	Recognize(ctx context.Context, req OCRRequest) (*OCRResult, error)
}

// Provider performs a single recognition attempt against one engine. Retry
// policy lives in the orchestrator, never in providers.
type Provider interface {
	// Name identifies the provider in results, logs, and metrics.
	Name() string

	// Recognize runs one attempt. Implementations classify failures by
	// wrapping ErrTransient, ErrRateLimited, or ErrPermanent so the
	// orchestrator can decide whether to retry.
	Recognize(ctx context.Context, req OCRRequest) (*OCRResult, error)
}

// visionLanguageHint converts an OCR.space language code to the BCP-47 hint
// the Vision API expects.
func visionLanguageHint(lang string) string {
	switch lang {
	case "spa":
		return "es"
	case "eng":
		return "en"
	case "fre":
		return "fr"
	case "ger":
		return "de"
	case "por":
		return "pt"
	case "ita":
		return "it"
	default:
		return lang
	}
}

// tesseractLanguage converts an OCR.space language code to a Tesseract
// traineddata name. The two mostly agree; unknown codes pass through.
func tesseractLanguage(lang string) string {
	if lang == "" {
		return "spa"
	}
	return lang
}
