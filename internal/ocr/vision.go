package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// VisionProvider implements Provider using the Google Cloud Vision API's
// document text detection. It is registered in the attempt plan only when
// credentials are configured.
type VisionProvider struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionProvider creates a Vision-backed provider with credentials from
// the environment. It expects either GOOGLE_APPLICATION_CREDENTIALS path or
// GOOGLE_CREDENTIALS JSON in env.
func NewVisionProvider(ctx context.Context) (*VisionProvider, error) {
	const op = "NewVisionProvider"

	var client *vision.ImageAnnotatorClient
	var err error

	// Check for inline credentials first
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		// Use credentials file
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Try default credentials as fallback
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &VisionProvider{client: client}, nil
}

// NewVisionProviderWithClient creates a provider with an explicit client (for testing).
func NewVisionProviderWithClient(client *vision.ImageAnnotatorClient) *VisionProvider {
	return &VisionProvider{client: client}
}

// Name identifies the provider in results, logs, and metrics.
func (v *VisionProvider) Name() string {
	return "google-vision"
}

// Recognize runs document text detection on a single image.
func (v *VisionProvider) Recognize(ctx context.Context, req OCRRequest) (*OCRResult, error) {
	const op = "vision.Recognize"

	if len(req.Image) == 0 {
		return nil, NewOCRError(op, ErrEmptyImage, "")
	}

	img := &visionpb.Image{Content: req.Image}
	var imgCtx *visionpb.ImageContext
	if req.Language != "" {
		imgCtx = &visionpb.ImageContext{
			LanguageHints: []string{visionLanguageHint(req.Language)},
		}
	}

	annotation, err := v.client.DetectDocumentText(ctx, img, imgCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewOCRError(op, fmt.Errorf("%w: %v", ErrTransient, err), "Vision API call failed")
	}

	// A nil annotation means the service found no text in the image.
	if annotation == nil || strings.TrimSpace(annotation.Text) == "" {
		return &OCRResult{Engine: v.Name()}, nil
	}

	return &OCRResult{
		Text:       annotation.Text,
		Confidence: annotationConfidence(annotation),
		Engine:     v.Name(),
	}, nil
}

// annotationConfidence averages the block-level scores of the annotation and
// scales them to the 0-100 range shared by all providers.
func annotationConfidence(annotation *visionpb.TextAnnotation) float64 {
	var sum float64
	var count int
	for _, page := range annotation.Pages {
		for _, block := range page.Blocks {
			if block.Confidence > 0 {
				sum += float64(block.Confidence)
				count++
			}
		}
	}
	if count == 0 {
		return defaultConfidence
	}
	return sum / float64(count) * 100
}

// Close closes the underlying Vision client.
func (v *VisionProvider) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
