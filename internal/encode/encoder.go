// Package encode writes rendered frames in the supported image formats.
package encode

import (
	"fmt"
	"image"
	"strings"
)

// DefaultQuality is used by lossy encoders when no quality is set.
const DefaultQuality = 85

// Formats lists the accepted format names.
var Formats = []string{"png", "jpeg", "webp", "tiff"}

// Options configure NewEncoder.
type Options struct {
	Quality  int  // 1-100 for jpeg and lossy webp, default 85
	Lossless bool // webp only
}

// Encoder encodes an image into file bytes.
type Encoder interface {
	// Encode encodes an image to bytes in the output format.
	Encode(img image.Image) ([]byte, error)

	// Format returns the format name (e.g. "jpeg", "png", "webp").
	Format() string

	// FileExtension returns the appropriate file extension.
	FileExtension() string
}

// NewEncoder creates an encoder for the given format.
func NewEncoder(format string, opts Options) (Encoder, error) {
	quality := opts.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}
	if quality > 100 {
		return nil, fmt.Errorf("quality %d out of range [1, 100]", quality)
	}
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return &JPEGEncoder{Quality: quality}, nil
	case "png":
		return &PNGEncoder{}, nil
	case "webp":
		return &WebPEncoder{Quality: quality, Lossless: opts.Lossless}, nil
	case "tiff", "tif":
		return &TIFFEncoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported image format: %q (supported: %s)", format, strings.Join(Formats, ", "))
	}
}
