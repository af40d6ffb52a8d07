package encode

import (
	"image"
	"image/png"
	"io"
	"sync"
)

// pngBuffers is shared by every PNGEncoder; frames of one layer are encoded
// concurrently and have the same size.
type pngBuffers struct{ pool sync.Pool }

func (p *pngBuffers) Get() *png.EncoderBuffer {
	b, _ := p.pool.Get().(*png.EncoderBuffer)
	return b
}

func (p *pngBuffers) Put(b *png.EncoderBuffer) { p.pool.Put(b) }

var sharedPNGBuffers = &pngBuffers{}

// PNGEncoder writes lossless RGBA PNG at the fastest compression level.
type PNGEncoder struct{}

func (e *PNGEncoder) Encode(img image.Image) ([]byte, error) {
	enc := png.Encoder{CompressionLevel: png.BestSpeed, BufferPool: sharedPNGBuffers}
	return toBytes(func(w io.Writer) error { return enc.Encode(w, img) })
}

func (e *PNGEncoder) Format() string        { return "png" }
func (e *PNGEncoder) FileExtension() string { return ".png" }
