package ocr_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/JM200322/proyecto-ocr-odoo/internal/ocr"
)

// Example demonstrates basic usage of the recognition orchestrator.
func Example() {
	// Load .env file (using godotenv in main)
	// This should be done in your main() function:
	//
	// if err := godotenv.Load(); err != nil {
	//     log.Printf("Warning: Could not load .env file: %v", err)
	// }

	// Build the engine chain: OCR.space engine 2 first, engine 3 as the
	// secondary, each with three tries and exponential backoff.
	primary := ocr.NewOCRSpaceProvider(ocr.OCRSpaceConfig{
		APIKey: os.Getenv("OCR_SPACE_API_KEY"),
		Engine: 2,
	})
	secondary := ocr.NewOCRSpaceProvider(ocr.OCRSpaceConfig{
		APIKey: os.Getenv("OCR_SPACE_API_KEY"),
		Engine: 3,
	})

	service, err := ocr.NewOrchestrator(ocr.OrchestratorConfig{BackoffBase: 2 * time.Second},
		ocr.AttemptPlan{Provider: primary, MaxTries: 3},
		ocr.AttemptPlan{Provider: secondary, MaxTries: 3},
	)
	if err != nil {
		log.Fatalf("Failed to build orchestrator: %v", err)
	}

	// Create context with timeout for the whole recognition chain
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	image, err := os.ReadFile("ticket.jpg")
	if err != nil {
		log.Fatalf("Failed to read image: %v", err)
	}

	result, err := service.Recognize(ctx, ocr.OCRRequest{
		Image:    image,
		Mode:     ocr.ModeInvoice,
		Language: "spa",
	})
	if err != nil {
		log.Fatalf("Recognition failed: %v", err)
	}

	fmt.Printf("Engine %s succeeded after %d attempts (%.1f%% confidence):\n%s\n",
		result.Engine, result.Attempts, result.Confidence, result.Text)
}

// ExampleErrorHandling demonstrates proper error handling patterns.
func ExampleErrorHandling() {
	service, err := ocr.NewOrchestrator(ocr.OrchestratorConfig{},
		ocr.AttemptPlan{
			Provider: ocr.NewOCRSpaceProvider(ocr.OCRSpaceConfig{APIKey: "helloworld", Engine: 2}),
			MaxTries: 3,
		},
	)
	if err != nil {
		log.Fatalf("Failed to build orchestrator: %v", err)
	}

	image, err := os.ReadFile("ticket.jpg")
	if err != nil {
		log.Fatalf("Failed to read image: %v", err)
	}

	result, err := service.Recognize(context.Background(), ocr.OCRRequest{Image: image})
	if err != nil {
		// Handle specific recognition errors
		switch {
		case errors.Is(err, ocr.ErrOCRUnavailable):
			var unavailable *ocr.UnavailableError
			if errors.As(err, &unavailable) {
				log.Printf("Every engine failed after %d attempts: %v",
					unavailable.Attempts, unavailable.LastErr)
			}
			return
		case errors.Is(err, ocr.ErrRateLimited):
			log.Printf("OCR.space is rate limiting this key. Try again later.")
			return
		case errors.Is(err, ocr.ErrImageTooLarge):
			log.Printf("Image exceeds the upload limit. Recompress before retrying.")
			return
		default:
			log.Fatalf("Recognition failed: %v", err)
		}
	}

	fmt.Printf("Recognized %d characters\n", len(result.Text))
}

// ExampleWithTesting demonstrates how to use the service with dependency injection for testing.
func ExampleWithTesting() {
	// In your tests, inject an HTTP client pointed at an httptest server:
	// provider := ocr.NewOCRSpaceProviderWithClient(cfg, server.Client())
	//
	// and replace the backoff sleeper so retries run without wall-clock
	// waits:
	// cfg := ocr.OrchestratorConfig{
	//     Sleep: func(ctx context.Context, d time.Duration) error { return nil },
	// }

	// In production code, use the environment-based configuration:
	provider := ocr.NewOCRSpaceProvider(ocr.OCRSpaceConfig{
		APIKey: os.Getenv("OCR_SPACE_API_KEY"),
		Engine: 2,
	})

	service, err := ocr.NewOrchestrator(ocr.OrchestratorConfig{},
		ocr.AttemptPlan{Provider: provider, MaxTries: 3})
	if err != nil {
		log.Fatalf("Failed to build orchestrator: %v", err)
	}

	// Use the service normally
	_ = service
}
