package image

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/h2non/bimg"
)

// gradientJPEG encodes a w x h gradient as JPEG.
func gradientJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestSnapWidth(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultWidth},
		{-5, DefaultWidth},
		{1, 160},
		{160, 160},
		{161, 320},
		{700, 1280},
		{1920, 1920},
		{5000, 1920},
	}
	for _, tt := range tests {
		if got := SnapWidth(tt.in); got != tt.want {
			t.Errorf("SnapWidth(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNewProcessor(t *testing.T) {
	if _, err := NewProcessor(ProcessorConfig{OutputFormat: "tiff"}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}

	p, err := NewProcessor(ProcessorConfig{OutputFormat: FormatJPEG, Quality: 500})
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}
	if p.config.Quality != DefaultConfig().Quality {
		t.Errorf("out-of-range quality should fall back to default, got %d", p.config.Quality)
	}
	if p.Extension() != ".jpg" {
		t.Errorf("expected .jpg extension, got %s", p.Extension())
	}
}

// TestDefaultConfig tests that default configuration has sensible values.
func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Quality != 82 {
		t.Errorf("Expected default quality 82, got %d", config.Quality)
	}
	if config.OutputFormat != FormatWebP {
		t.Errorf("Expected default format webp, got %s", config.OutputFormat)
	}
	if !config.StripMetadata {
		t.Error("Expected StripMetadata to be true by default")
	}
}

// TestThumbnail_Resize checks the aspect ratio survives a downscale.
func TestThumbnail_Resize(t *testing.T) {
	p, err := NewProcessor(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	thumb, err := p.Thumbnail(gradientJPEG(t, 400, 200), 160)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	if thumb.Width != 160 || thumb.Height != 80 {
		t.Errorf("expected 160x80, got %dx%d", thumb.Width, thumb.Height)
	}
	if thumb.ContentType != "image/webp" {
		t.Errorf("expected image/webp, got %s", thumb.ContentType)
	}

	meta, err := bimg.NewImage(thumb.Data).Metadata()
	if err != nil {
		t.Fatalf("failed to read thumbnail metadata: %v", err)
	}
	if meta.Type != "webp" {
		t.Errorf("expected webp output, got %s", meta.Type)
	}
}

// TestThumbnail_NoEnlarge checks small originals keep their size.
func TestThumbnail_NoEnlarge(t *testing.T) {
	p, err := NewProcessor(ProcessorConfig{OutputFormat: FormatJPEG, StripMetadata: true})
	if err != nil {
		t.Fatal(err)
	}

	thumb, err := p.Thumbnail(gradientJPEG(t, 100, 100), 640)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	if thumb.Width != 100 || thumb.Height != 100 {
		t.Errorf("Image dimensions changed: expected 100x100, got %dx%d", thumb.Width, thumb.Height)
	}

	noEXIF, err := VerifyNoEXIF(thumb.Data)
	if err != nil {
		t.Fatalf("VerifyNoEXIF failed: %v", err)
	}
	if !noEXIF {
		t.Error("EXIF metadata found in thumbnail")
	}
}

// TestThumbnail_InvalidImage tests error handling for invalid input.
func TestThumbnail_InvalidImage(t *testing.T) {
	p, err := NewProcessor(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Thumbnail([]byte("not an image"), 320); err == nil {
		t.Error("Expected error for invalid image data, got nil")
	}
}
