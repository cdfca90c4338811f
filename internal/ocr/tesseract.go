package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// digitsWhitelist restricts Tesseract to the characters that appear in
// meter readings, amounts, and reference numbers.
const digitsWhitelist = "0123456789.,-/ €$%"

// TesseractProvider implements Provider using a local Tesseract install via
// gosseract. It is the last resort when every remote engine is unreachable.
type TesseractProvider struct {
	clientFactory func() *gosseract.Client
}

// NewTesseractProvider constructs a Tesseract-backed provider. It requires
// the tesseract shared library and traineddata files on the host.
func NewTesseractProvider() *TesseractProvider {
	return &TesseractProvider{clientFactory: gosseract.NewClient}
}

// Name identifies the provider in results, logs, and metrics.
func (t *TesseractProvider) Name() string {
	return "tesseract"
}

// Recognize performs OCR on the image with a fresh client per call. A single
// attempt is enough: local failures do not heal on retry.
func (t *TesseractProvider) Recognize(ctx context.Context, req OCRRequest) (*OCRResult, error) {
	const op = "tesseract.Recognize"

	if len(req.Image) == 0 {
		return nil, NewOCRError(op, ErrEmptyImage, "")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(req.Image); err != nil {
		return nil, WrapOCRError(op, err, "set image")
	}
	if err := c.SetLanguage(tesseractLanguage(req.Language)); err != nil {
		return nil, WrapOCRError(op, err, "set language")
	}
	if req.Mode == ModeDigitsOnly {
		if err := c.SetVariable(gosseract.SettableVariable("tessedit_char_whitelist"), digitsWhitelist); err != nil {
			return nil, WrapOCRError(op, err, "set digits whitelist")
		}
	}

	text, err := c.Text()
	if err != nil {
		return nil, NewOCRError(op, fmt.Errorf("recognize text: %w", err), "")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return &OCRResult{Engine: t.Name()}, nil
	}

	return &OCRResult{
		Text:       text,
		Confidence: boundingBoxConfidence(c),
		Engine:     t.Name(),
	}, nil
}

// boundingBoxConfidence averages the word-level scores Tesseract reports
// alongside its bounding boxes.
func boundingBoxConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return defaultConfidence
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes))
}
