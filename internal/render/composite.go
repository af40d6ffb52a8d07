// Package render composites raster bands into RGBA images.
package render

import (
	"fmt"
	"image"
	"math"

	"github.com/pspoerri/solarlayers/internal/palette"
	"github.com/pspoerri/solarlayers/internal/raster"
)

// CompositeRGB renders the first three bands of src as red, green and blue.
//
// The output takes the mask's size when a mask is given, otherwise the
// source size. Source pixels are picked by nearest neighbour: output pixel
// (x, y) reads src at floor(y*dh)*src.Width + floor(x*dw) with
// dw = src.Width/out.Width and dh = src.Height/out.Height. Alpha is
// mask*255, or opaque without a mask.
func CompositeRGB(src raster.Set, mask *raster.Set) (*image.RGBA, error) {
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if len(src.Bands) < 3 {
		return nil, fmt.Errorf("source: %w: need 3 bands for RGB, got %d", raster.ErrMalformed, len(src.Bands))
	}
	w, h := src.Width, src.Height
	var alpha []float64
	if mask != nil {
		if err := mask.Validate(); err != nil {
			return nil, fmt.Errorf("mask: %w", err)
		}
		if len(mask.Bands) < 1 {
			return nil, fmt.Errorf("mask: %w: no bands", raster.ErrMalformed)
		}
		w, h = mask.Width, mask.Height
		alpha = mask.Bands[0]
	}

	dw := float64(src.Width) / float64(w)
	dh := float64(src.Height) / float64(h)
	r, g, b := src.Bands[0], src.Bands[1], src.Bands[2]

	img := GetRGBA(w, h)
	for y := 0; y < h; y++ {
		row := min(int(math.Floor(float64(y)*dh)), src.Height-1) * src.Width
		for x := 0; x < w; x++ {
			si := row + min(int(math.Floor(float64(x)*dw)), src.Width-1)
			off := y*img.Stride + x*4
			img.Pix[off+0] = toByte(r[si])
			img.Pix[off+1] = toByte(g[si])
			img.Pix[off+2] = toByte(b[si])
			if alpha != nil {
				img.Pix[off+3] = toByte(alpha[y*w+x] * 255)
			} else {
				img.Pix[off+3] = 255
			}
		}
	}
	return img, nil
}

// CompositePalette renders one band of data through the palette's lookup
// table and composites the result with CompositeRGB.
func CompositePalette(data raster.Set, band int, mask *raster.Set, p palette.Palette) (*image.RGBA, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	if band < 0 || band >= len(data.Bands) {
		return nil, fmt.Errorf("data: band %d out of range (have %d)", band, len(data.Bands))
	}
	table, err := p.Table()
	if err != nil {
		return nil, err
	}

	indices := palette.Indices(data.Bands[band], p.Min, p.Max, len(table))
	n := len(indices)
	r := make([]float64, n)
	g := make([]float64, n)
	b := make([]float64, n)
	for i, idx := range indices {
		c := table.Lookup(idx)
		r[i], g[i], b[i] = c.R, c.G, c.B
	}

	rgb := raster.Set{
		Width:  data.Width,
		Height: data.Height,
		Bands:  [][]float64{r, g, b},
		Bounds: data.Bounds,
	}
	return CompositeRGB(rgb, mask)
}

// toByte saturates v into [0, 255] and rounds half to even, matching how a
// canvas pixel buffer stores fractional channel values. NaN becomes 0.
func toByte(v float64) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.RoundToEven(v))
}
