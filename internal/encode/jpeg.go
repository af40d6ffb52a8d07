package encode

import (
	"image"
	"image/jpeg"
	"io"
)

// JPEGEncoder has no alpha channel: masked-out pixels come out black.
type JPEGEncoder struct {
	Quality int // 0 means DefaultQuality
}

func (e *JPEGEncoder) Encode(img image.Image) ([]byte, error) {
	q := e.Quality
	if q <= 0 {
		q = DefaultQuality
	}
	return toBytes(func(w io.Writer) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	})
}

func (e *JPEGEncoder) Format() string        { return "jpeg" }
func (e *JPEGEncoder) FileExtension() string { return ".jpg" }
