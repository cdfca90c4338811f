package imageprep_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"testing"

	"github.com/JM200322/proyecto-ocr-odoo/internal/imageprep"
)

// testImage builds a synthetic document photo: dark text-like bands on a
// light background.
func testImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{R: 235, G: 235, B: 230, A: 255}
			if (y/20)%4 == 0 && x%30 < 22 {
				c = color.RGBA{R: 25, G: 22, B: 20, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestPrepareProducesJPEGUnderLimit(t *testing.T) {
	data := testImage(t, 3000, 4000)

	out, meta, err := imageprep.Prepare(data, imageprep.DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode prepared output: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	if cfg.Width > imageprep.MaxDimension || cfg.Height > imageprep.MaxDimension {
		t.Errorf("dimensions = %dx%d, want longest side <= %d", cfg.Width, cfg.Height, imageprep.MaxDimension)
	}
	if len(out) > imageprep.MaxEncodedBytes {
		t.Errorf("output size = %d, want <= %d", len(out), imageprep.MaxEncodedBytes)
	}
	if meta.Width != cfg.Width || meta.Height != cfg.Height {
		t.Errorf("meta dimensions %dx%d do not match output %dx%d", meta.Width, meta.Height, cfg.Width, cfg.Height)
	}
	if meta.Size != len(out) {
		t.Errorf("meta.Size = %d, want %d", meta.Size, len(out))
	}
}

func TestPrepareUpscalesTinyCaptures(t *testing.T) {
	data := testImage(t, 200, 150)

	out, meta, err := imageprep.Prepare(data, imageprep.DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if meta.Width != imageprep.MinDimension {
		t.Errorf("width = %d, want upscaled to %d", meta.Width, imageprep.MinDimension)
	}
	if len(out) == 0 {
		t.Error("output is empty")
	}
}

func TestPrepareKeepsMidSizeDimensions(t *testing.T) {
	data := testImage(t, 1200, 900)

	_, meta, err := imageprep.Prepare(data, imageprep.DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if meta.Width != 1200 || meta.Height != 900 {
		t.Errorf("dimensions = %dx%d, want unchanged 1200x900", meta.Width, meta.Height)
	}
}

func TestPrepareWithHints(t *testing.T) {
	data := testImage(t, 800, 600)

	opts := imageprep.Options{Brightness: 1.2, Contrast: 1.3, Sharpness: 1.5, DigitsOnly: true}
	out, _, err := imageprep.Prepare(data, opts)
	if err != nil {
		t.Fatalf("Prepare with hints: %v", err)
	}
	if _, _, err := image.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("hinted output does not decode: %v", err)
	}
}

func TestPrepareRejectsGarbage(t *testing.T) {
	_, _, err := imageprep.Prepare([]byte("definitely not an image"), imageprep.DefaultOptions())
	if !errors.Is(err, imageprep.ErrInvalidImage) {
		t.Errorf("errors.Is(err, ErrInvalidImage) = false for %v", err)
	}
}

func TestPrepareDeterministic(t *testing.T) {
	data := testImage(t, 640, 480)

	first, _, err := imageprep.Prepare(data, imageprep.DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	second, _, err := imageprep.Prepare(data, imageprep.DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical input produced different prepared bytes")
	}
}
