// Package imageprep shrinks and enhances document photos before they are
// sent to a recognition engine. Phone captures arrive as multi-megabyte
// JPEGs; the OCR.space free tier caps uploads at 1MB, so preparation both
// improves recognition and makes the upload fit.
package imageprep

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	// MaxDimension caps the longest side. OCR accuracy plateaus beyond
	// this while upload size keeps growing.
	MaxDimension = 2200

	// MinDimension is the smallest longest-side worth recognizing; tiny
	// captures are upscaled to it.
	MinDimension = 600

	// MaxEncodedBytes is the target output size (the OCR.space limit).
	MaxEncodedBytes = 1024 * 1024

	qualityStart = 90
	qualityFloor = 70
	qualityStep  = 5
)

// ErrInvalidImage is returned when the payload cannot be decoded as an image.
var ErrInvalidImage = errors.New("invalid or unsupported image data")

// Options carries the caller-supplied enhancement hints. The zero value is
// not neutral; use DefaultOptions.
type Options struct {
	// Brightness, Contrast, and Sharpness are multipliers where 1.0 means
	// unchanged, matching the sliders the capture UI exposes.
	Brightness float64
	Contrast   float64
	Sharpness  float64

	// DigitsOnly applies a stronger contrast curve for meter readings and
	// reference numbers.
	DigitsOnly bool
}

// DefaultOptions returns neutral enhancement hints.
func DefaultOptions() Options {
	return Options{Brightness: 1.0, Contrast: 1.0, Sharpness: 1.0}
}

// Meta describes the prepared output for history records.
type Meta struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	Size    int `json:"size"`
	Quality int `json:"quality"`
}

// Prepare decodes, resizes, enhances, and re-encodes an image as JPEG under
// the upload limit. The returned bytes are what should go to the engines.
func Prepare(data []byte, opts Options) ([]byte, Meta, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, Meta{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	img = resizeToBounds(img)
	img = enhance(img, opts)

	return encodeUnderLimit(img)
}

// resizeToBounds scales the image so its longest side lands inside
// [MinDimension, MaxDimension], preserving aspect ratio.
func resizeToBounds(img image.Image) image.Image {
	bounds := img.Bounds()
	longest := bounds.Dx()
	if bounds.Dy() > longest {
		longest = bounds.Dy()
	}

	switch {
	case longest > MaxDimension:
		if bounds.Dx() >= bounds.Dy() {
			return imaging.Resize(img, MaxDimension, 0, imaging.Lanczos)
		}
		return imaging.Resize(img, 0, MaxDimension, imaging.Lanczos)
	case longest < MinDimension:
		if bounds.Dx() >= bounds.Dy() {
			return imaging.Resize(img, MinDimension, 0, imaging.Lanczos)
		}
		return imaging.Resize(img, 0, MinDimension, imaging.Lanczos)
	default:
		return img
	}
}

// enhance applies the grayscale/contrast/sharpen chain with the caller's
// hints folded in.
func enhance(img image.Image, opts Options) image.Image {
	img = imaging.Grayscale(img)

	if opts.Brightness > 0 && opts.Brightness != 1.0 {
		img = imaging.AdjustBrightness(img, clampPercent((opts.Brightness-1)*100))
	}

	contrast := 10.0
	if opts.Contrast > 0 {
		contrast += (opts.Contrast - 1) * 100
	}
	if opts.DigitsOnly {
		contrast += 20
	}
	img = imaging.AdjustContrast(img, clampPercent(contrast))

	sigma := 1.1
	if opts.Sharpness > 0 {
		sigma *= opts.Sharpness
	}
	if sigma > 0 {
		img = imaging.Sharpen(img, sigma)
	}
	return img
}

// encodeUnderLimit steps JPEG quality down until the output fits the upload
// limit. The floor quality is used even when still over the limit; the
// engine will reject it with a clear error in that case.
func encodeUnderLimit(img image.Image) ([]byte, Meta, error) {
	var buf bytes.Buffer
	quality := qualityStart

	for {
		buf.Reset()
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, Meta{}, fmt.Errorf("encode jpeg: %w", err)
		}
		if buf.Len() <= MaxEncodedBytes || quality <= qualityFloor {
			break
		}
		quality -= qualityStep
	}

	bounds := img.Bounds()
	meta := Meta{
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
		Size:    buf.Len(),
		Quality: quality,
	}
	return buf.Bytes(), meta, nil
}

func clampPercent(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < -100 {
		return -100
	}
	return v
}
