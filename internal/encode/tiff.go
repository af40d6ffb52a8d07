package encode

import (
	"image"
	"io"

	"golang.org/x/image/tiff"
)

// TIFFEncoder encodes frames as deflate-compressed RGBA TIFF.
type TIFFEncoder struct{}

func (e *TIFFEncoder) Encode(img image.Image) ([]byte, error) {
	opts := &tiff.Options{Compression: tiff.Deflate, Predictor: true}
	return toBytes(func(w io.Writer) error { return tiff.Encode(w, img, opts) })
}

func (e *TIFFEncoder) Format() string        { return "tiff" }
func (e *TIFFEncoder) FileExtension() string { return ".tif" }
