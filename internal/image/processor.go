// Package image renders web thumbnails of catalog photos with libvips.
// Every output is re-encoded with all metadata stripped, so GPS position and
// camera details never leave the original object.
package image

import (
	"errors"
	"fmt"
	"sort"

	"github.com/h2non/bimg"
)

// Output formats.
const (
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
	FormatPNG  = "png"
)

// ErrUnsupportedFormat is returned for an unknown output format.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Widths are the thumbnail widths the renderer produces. Requests snap to
// one of them so the bucket holds a bounded number of variants per photo.
var Widths = []int{160, 320, 640, 1280, 1920}

// DefaultWidth is used when a request names no width.
const DefaultWidth = 640

// SnapWidth returns the smallest supported width that is at least w, or the
// largest supported width when w exceeds all of them.
func SnapWidth(w int) int {
	if w <= 0 {
		return DefaultWidth
	}
	i := sort.SearchInts(Widths, w)
	if i == len(Widths) {
		return Widths[len(Widths)-1]
	}
	return Widths[i]
}

// ProcessorConfig holds configuration for thumbnail rendering.
type ProcessorConfig struct {
	// Quality for JPEG/WebP encoding (1-100, default: 82)
	Quality int
	// OutputFormat is one of FormatJPEG, FormatWebP or FormatPNG
	OutputFormat string
	// StripMetadata removes all EXIF/metadata (default: true)
	StripMetadata bool
}

// DefaultConfig returns the settings used for catalog thumbnails.
func DefaultConfig() ProcessorConfig {
	return ProcessorConfig{
		Quality:       82,
		OutputFormat:  FormatWebP,
		StripMetadata: true,
	}
}

// Thumbnail is a rendered image.
type Thumbnail struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Processor renders thumbnails.
type Processor struct {
	config ProcessorConfig
}

// NewProcessor creates a processor. An unknown output format is rejected.
func NewProcessor(config ProcessorConfig) (*Processor, error) {
	if _, err := imageType(config.OutputFormat); err != nil {
		return nil, err
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = DefaultConfig().Quality
	}
	return &Processor{config: config}, nil
}

// Extension returns the file extension of rendered thumbnails, with a dot.
func (p *Processor) Extension() string {
	if p.config.OutputFormat == FormatJPEG {
		return ".jpg"
	}
	return "." + p.config.OutputFormat
}

// ContentType returns the media type of rendered thumbnails.
func (p *Processor) ContentType() string {
	return "image/" + p.config.OutputFormat
}

// Thumbnail resizes src to width, keeping the aspect ratio. Images narrower
// than width are re-encoded at their own size, never enlarged. The EXIF
// orientation is applied before metadata is stripped.
func (p *Processor) Thumbnail(src []byte, width int) (Thumbnail, error) {
	img := bimg.NewImage(src)
	metadata, err := img.Metadata()
	if err != nil {
		return Thumbnail{}, fmt.Errorf("failed to read image metadata: %w", err)
	}

	typ, _ := imageType(p.config.OutputFormat)
	options := bimg.Options{
		Quality:       p.config.Quality,
		StripMetadata: p.config.StripMetadata,
		Type:          typ,
	}
	if width > 0 && width < metadata.Size.Width {
		options.Width = width
	}

	out, err := img.Process(options)
	if err != nil {
		return Thumbnail{}, fmt.Errorf("failed to process image: %w", err)
	}
	size, err := bimg.NewImage(out).Size()
	if err != nil {
		return Thumbnail{}, fmt.Errorf("failed to read thumbnail size: %w", err)
	}

	return Thumbnail{
		Data:        out,
		ContentType: p.ContentType(),
		Width:       size.Width,
		Height:      size.Height,
	}, nil
}

func imageType(format string) (bimg.ImageType, error) {
	switch format {
	case FormatJPEG:
		return bimg.JPEG, nil
	case FormatWebP:
		return bimg.WEBP, nil
	case FormatPNG:
		return bimg.PNG, nil
	default:
		return bimg.UNKNOWN, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// VerifyNoEXIF checks if the image has EXIF metadata.
// Returns true if no EXIF data is present, false otherwise.
func VerifyNoEXIF(imageBytes []byte) (bool, error) {
	img := bimg.NewImage(imageBytes)
	metadata, err := img.Metadata()
	if err != nil {
		return false, fmt.Errorf("failed to read image metadata: %w", err)
	}

	exif := metadata.EXIF
	hasEXIF := exif.Make != "" || exif.Model != "" ||
		exif.GPSLatitude != "" || exif.GPSLongitude != "" ||
		exif.DateTimeOriginal != "" || exif.Software != ""

	return !hasEXIF, nil
}
