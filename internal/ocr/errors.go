package ocr

import (
	"errors"
	"fmt"
)

// Common OCR processing errors
var (
	// ErrTransient is returned for failures worth retrying: HTTP 5xx responses,
	// timeouts, and connection resets.
	ErrTransient = errors.New("transient OCR service error")

	// ErrRateLimited is returned when the remote service answers HTTP 429.
	// The orchestrator retries these with a longer wait.
	ErrRateLimited = errors.New("rate limited by OCR service")

	// ErrPermanent is returned for HTTP 4xx responses other than 429.
	// These are never retried against the same engine.
	ErrPermanent = errors.New("permanent OCR service error")

	// ErrOCRUnavailable is reported when every configured engine and fallback
	// has been exhausted without a successful recognition.
	ErrOCRUnavailable = errors.New("OCR service unavailable: all engines exhausted")

	// ErrEmptyImage is returned when the request carries no image bytes.
	ErrEmptyImage = errors.New("image data is empty")

	// ErrImageTooLarge is returned when the image exceeds the upload limit of
	// the remote service.
	ErrImageTooLarge = errors.New("image exceeds the maximum upload size")

	// ErrNoProviders is returned when an orchestrator is built without any
	// recognition strategy.
	ErrNoProviders = errors.New("no OCR providers configured")

	// ErrMissingCredentials is returned when the Google Vision fallback is
	// requested but neither GOOGLE_APPLICATION_CREDENTIALS nor
	// GOOGLE_CREDENTIALS is configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")
)

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "Recognize", "ocrspace.parse").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError with the specified operation and underlying error.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return NewOCRError(op, err, details)
}

// UnavailableError reports that every attempt strategy failed. It matches
// ErrOCRUnavailable under errors.Is and keeps the last underlying failure
// reachable through Unwrap.
type UnavailableError struct {
	// Attempts is the total number of recognition attempts made across all
	// engines before giving up.
	Attempts int

	// LastErr is the failure produced by the final attempt.
	LastErr error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("ocr: unavailable after %d attempts: %v", e.Attempts, e.LastErr)
}

// Unwrap returns the last attempt's error.
func (e *UnavailableError) Unwrap() error {
	return e.LastErr
}

// Is reports a match for the ErrOCRUnavailable sentinel.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrOCRUnavailable
}
