package ocr_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JM200322/proyecto-ocr-odoo/internal/ocr"
)

const successBody = `{
	"ParsedResults": [{
		"ParsedText": "FACTURA 123\nTotal: 45,60 €",
		"FileParseExitCode": 1,
		"TextOverlay": {
			"Lines": [
				{"LineText": "FACTURA 123", "Words": [
					{"WordText": "FACTURA", "Confidence": 92},
					{"WordText": "123", "Confidence": 88}
				]}
			]
		}
	}],
	"OCRExitCode": 1,
	"IsErroredOnProcessing": false,
	"ProcessingTimeInMilliseconds": "312"
}`

func newOCRSpaceProvider(t *testing.T, server *httptest.Server, engine int) *ocr.OCRSpaceProvider {
	t.Helper()
	return ocr.NewOCRSpaceProviderWithClient(ocr.OCRSpaceConfig{
		APIKey:   "test-key",
		Endpoint: server.URL,
		Engine:   engine,
		Timeout:  5 * time.Second,
	}, server.Client())
}

func TestOCRSpaceProviderSendsMultipartForm(t *testing.T) {
	var gotEngine, gotAPIKey, gotLanguage, gotOverlay string
	var gotFile []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(4 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		gotEngine = r.FormValue("OCREngine")
		gotAPIKey = r.FormValue("apikey")
		gotLanguage = r.FormValue("language")
		gotOverlay = r.FormValue("isOverlayRequired")

		file, header, err := r.FormFile("filename")
		if err != nil {
			t.Errorf("FormFile(filename): %v", err)
		} else {
			defer file.Close()
			if header.Filename != "image.jpg" {
				t.Errorf("filename = %q, want image.jpg", header.Filename)
			}
			gotFile, _ = io.ReadAll(file)
		}

		fmt.Fprint(w, successBody)
	}))
	defer server.Close()

	provider := newOCRSpaceProvider(t, server, 3)
	result, err := provider.Recognize(context.Background(), ocr.OCRRequest{
		Image:    []byte("jpeg-bytes"),
		Language: "spa",
	})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}

	if gotEngine != "3" {
		t.Errorf("OCREngine = %q, want 3", gotEngine)
	}
	if gotAPIKey != "test-key" {
		t.Errorf("apikey = %q, want test-key", gotAPIKey)
	}
	if gotLanguage != "spa" {
		t.Errorf("language = %q, want spa", gotLanguage)
	}
	if gotOverlay != "true" {
		t.Errorf("isOverlayRequired = %q, want true", gotOverlay)
	}
	if string(gotFile) != "jpeg-bytes" {
		t.Errorf("uploaded file = %q, want jpeg-bytes", gotFile)
	}

	if result.Engine != "ocrspace-3" {
		t.Errorf("engine = %q, want ocrspace-3", result.Engine)
	}
	if result.Text == "" {
		t.Error("text is empty, want parsed text")
	}
	if result.Confidence != 90 {
		t.Errorf("confidence = %.1f, want 90 (average of 92 and 88)", result.Confidence)
	}
	if result.ProcessingTime != 312*time.Millisecond {
		t.Errorf("processing time = %v, want 312ms", result.ProcessingTime)
	}
}

func TestOCRSpaceProviderClassifiesHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"server error retries", http.StatusInternalServerError, ocr.ErrTransient},
		{"bad gateway retries", http.StatusBadGateway, ocr.ErrTransient},
		{"rate limit waits", http.StatusTooManyRequests, ocr.ErrRateLimited},
		{"forbidden is permanent", http.StatusForbidden, ocr.ErrPermanent},
		{"bad request is permanent", http.StatusBadRequest, ocr.ErrPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "engine says no", tt.status)
			}))
			defer server.Close()

			provider := newOCRSpaceProvider(t, server, 2)
			_, err := provider.Recognize(context.Background(), ocr.OCRRequest{Image: []byte("img")})
			if err == nil {
				t.Fatal("Recognize: expected error, got nil")
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.sentinel)
			}
		})
	}
}

func TestOCRSpaceProviderProcessingError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			"error message as string",
			`{"IsErroredOnProcessing": true, "ErrorMessage": "Unable to recognize the file type", "OCRExitCode": 99}`,
		},
		{
			"error message as array",
			`{"IsErroredOnProcessing": true, "ErrorMessage": ["Timed out waiting for results", "E101"], "OCRExitCode": 99}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			provider := newOCRSpaceProvider(t, server, 2)
			_, err := provider.Recognize(context.Background(), ocr.OCRRequest{Image: []byte("img")})
			if err == nil {
				t.Fatal("Recognize: expected error, got nil")
			}
			if !errors.Is(err, ocr.ErrTransient) {
				t.Errorf("errors.Is(%v, ErrTransient) = false", err)
			}
		})
	}
}

func TestOCRSpaceProviderNoTextFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ParsedResults": [], "IsErroredOnProcessing": false, "OCRExitCode": 1}`)
	}))
	defer server.Close()

	provider := newOCRSpaceProvider(t, server, 2)
	result, err := provider.Recognize(context.Background(), ocr.OCRRequest{Image: []byte("img")})
	if err != nil {
		t.Fatalf("Recognize: %v (no text must be an empty success, not a failure)", err)
	}
	if result.Text != "" {
		t.Errorf("text = %q, want empty", result.Text)
	}
	if result.Confidence != 0 {
		t.Errorf("confidence = %.1f, want 0", result.Confidence)
	}
}

func TestOCRSpaceProviderMissingOverlayDefaultsConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ParsedResults": [{"ParsedText": "hola", "FileParseExitCode": 1}], "IsErroredOnProcessing": false}`)
	}))
	defer server.Close()

	provider := newOCRSpaceProvider(t, server, 2)
	result, err := provider.Recognize(context.Background(), ocr.OCRRequest{Image: []byte("img")})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if result.Confidence != 85 {
		t.Errorf("confidence = %.1f, want the 85 default without overlay", result.Confidence)
	}
}

func TestOCRSpaceProviderRejectsOversizedImage(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fmt.Fprint(w, successBody)
	}))
	defer server.Close()

	provider := ocr.NewOCRSpaceProviderWithClient(ocr.OCRSpaceConfig{
		APIKey:   "test-key",
		Endpoint: server.URL,
		Engine:   2,
		MaxBytes: 16,
	}, server.Client())

	_, err := provider.Recognize(context.Background(), ocr.OCRRequest{Image: make([]byte, 64)})
	if !errors.Is(err, ocr.ErrImageTooLarge) {
		t.Errorf("errors.Is(err, ErrImageTooLarge) = false for %v", err)
	}
	if requests.Load() != 0 {
		t.Errorf("requests = %d, want 0 (size check is client-side)", requests.Load())
	}
}

// TestOrchestratorWithOCRSpaceEngines runs the full fallback scenario over
// real HTTP: engine 2 answers 500 three times, engine 3 succeeds.
func TestOrchestratorWithOCRSpaceEngines(t *testing.T) {
	var engine2Calls, engine3Calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(4 << 20); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		switch r.FormValue("OCREngine") {
		case "2":
			engine2Calls.Add(1)
			http.Error(w, "engine overloaded", http.StatusInternalServerError)
		case "3":
			engine3Calls.Add(1)
			fmt.Fprint(w, successBody)
		default:
			http.Error(w, "unknown engine", http.StatusBadRequest)
		}
	}))
	defer server.Close()

	primary := newOCRSpaceProvider(t, server, 2)
	secondary := newOCRSpaceProvider(t, server, 3)

	sleeper := &sleepRecorder{}
	orch, err := ocr.NewOrchestrator(ocr.OrchestratorConfig{
		BackoffBase: 2 * time.Second,
		Sleep:       sleeper.sleep,
	},
		ocr.AttemptPlan{Provider: primary, MaxTries: 3},
		ocr.AttemptPlan{Provider: secondary, MaxTries: 3},
	)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	result, err := orch.Recognize(context.Background(), ocr.OCRRequest{
		Image:    []byte("jpeg-bytes"),
		Mode:     ocr.ModeInvoice,
		Language: "spa",
	})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}

	if engine2Calls.Load() != 3 {
		t.Errorf("engine 2 calls = %d, want 3", engine2Calls.Load())
	}
	if engine3Calls.Load() != 1 {
		t.Errorf("engine 3 calls = %d, want 1", engine3Calls.Load())
	}
	if result.Engine != "ocrspace-3" {
		t.Errorf("engine = %q, want ocrspace-3", result.Engine)
	}
	if result.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", result.Attempts)
	}
}
