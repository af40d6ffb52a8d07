package encode

import (
	"image"
	"io"

	"github.com/gen2brain/webp"
)

// WebPEncoder keeps alpha in both modes. gen2brain/webp loads a system
// libwebp through purego when present and runs a WASM build otherwise.
type WebPEncoder struct {
	Quality  int
	Lossless bool // Quality then sets effort instead of fidelity
}

func (e *WebPEncoder) Encode(img image.Image) ([]byte, error) {
	opts := webp.Options{Lossless: e.Lossless, Quality: e.Quality}
	return toBytes(func(w io.Writer) error { return webp.Encode(w, img, opts) })
}

func (e *WebPEncoder) Format() string        { return "webp" }
func (e *WebPEncoder) FileExtension() string { return ".webp" }
