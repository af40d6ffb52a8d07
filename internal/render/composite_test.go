package render

import (
	"bytes"
	"errors"
	"image"
	"math"
	"testing"

	"github.com/pspoerri/solarlayers/internal/palette"
	"github.com/pspoerri/solarlayers/internal/raster"
)

func mustSet(t *testing.T, w, h int, bands ...[]float64) raster.Set {
	t.Helper()
	s, err := raster.New(w, h, bands...)
	if err != nil {
		t.Fatalf("raster.New: %v", err)
	}
	return s
}

func pixel(img *image.RGBA, x, y int) [4]uint8 {
	off := img.PixOffset(x, y)
	return [4]uint8{img.Pix[off], img.Pix[off+1], img.Pix[off+2], img.Pix[off+3]}
}

func TestCompositeRGB_NoMaskIsOpaque(t *testing.T) {
	w, h := 5, 3
	n := w * h
	r, g, b := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := range n {
		r[i], g[i], b[i] = float64(i), float64(2*i), float64(3*i)
	}
	img, err := CompositeRGB(mustSet(t, w, h, r, g, b), nil)
	if err != nil {
		t.Fatal(err)
	}
	if img.Rect.Dx() != w || img.Rect.Dy() != h {
		t.Fatalf("size = %dx%d, want %dx%d", img.Rect.Dx(), img.Rect.Dy(), w, h)
	}
	if len(img.Pix) != w*h*4 {
		t.Fatalf("len(Pix) = %d, want %d", len(img.Pix), w*h*4)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			got := pixel(img, x, y)
			want := [4]uint8{uint8(i), uint8(2 * i), uint8(3 * i), 255}
			if got != want {
				t.Errorf("pixel(%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestCompositeRGB_MaskAlpha(t *testing.T) {
	src := mustSet(t, 2, 1, []float64{10, 20}, []float64{30, 40}, []float64{50, 60})
	mask := mustSet(t, 2, 1, []float64{0, 1})
	img, err := CompositeRGB(src, &mask)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := pixel(img, 0, 0), [4]uint8{10, 30, 50, 0}; got != want {
		t.Errorf("pixel 0 = %v, want %v", got, want)
	}
	if got, want := pixel(img, 1, 0), [4]uint8{20, 40, 60, 255}; got != want {
		t.Errorf("pixel 1 = %v, want %v", got, want)
	}
}

func TestCompositeRGB_FractionalMask(t *testing.T) {
	src := mustSet(t, 3, 1, []float64{1, 1, 1}, []float64{1, 1, 1}, []float64{1, 1, 1})
	mask := mustSet(t, 3, 1, []float64{0.5, 0.25, 2})
	img, err := CompositeRGB(src, &mask)
	if err != nil {
		t.Fatal(err)
	}
	// 127.5 rounds half to even, 63.75 rounds up, 510 saturates.
	for i, want := range []uint8{128, 64, 255} {
		if got := pixel(img, i, 0)[3]; got != want {
			t.Errorf("alpha[%d] = %d, want %d", i, got, want)
		}
	}
}

// Quadrant test: a 4x4 source with one solid color per 2x2 quadrant,
// sampled through a 2x2 mask, must pick one pixel from each quadrant.
func TestCompositeRGB_SmallerMaskResamples(t *testing.T) {
	quad := [4][3]float64{
		{255, 0, 0},   // top-left
		{0, 255, 0},   // top-right
		{0, 0, 255},   // bottom-left
		{255, 255, 0}, // bottom-right
	}
	n := 16
	r, g, b := make([]float64, n), make([]float64, n), make([]float64, n)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			q := (y/2)*2 + x/2
			i := y*4 + x
			r[i], g[i], b[i] = quad[q][0], quad[q][1], quad[q][2]
		}
	}
	src := mustSet(t, 4, 4, r, g, b)
	mask := mustSet(t, 2, 2, []float64{1, 1, 1, 1})

	img, err := CompositeRGB(src, &mask)
	if err != nil {
		t.Fatal(err)
	}
	if img.Rect.Dx() != 2 || img.Rect.Dy() != 2 {
		t.Fatalf("size = %dx%d, want 2x2", img.Rect.Dx(), img.Rect.Dy())
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			q := quad[y*2+x]
			want := [4]uint8{uint8(q[0]), uint8(q[1]), uint8(q[2]), 255}
			if got := pixel(img, x, y); got != want {
				t.Errorf("pixel(%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestCompositeRGB_LargerMaskUpsamples(t *testing.T) {
	src := mustSet(t, 2, 1, []float64{10, 200}, []float64{0, 0}, []float64{0, 0})
	mask := mustSet(t, 4, 2, []float64{1, 1, 1, 1, 1, 1, 1, 1})
	img, err := CompositeRGB(src, &mask)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint8{10, 10, 200, 200}
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			if got := pixel(img, x, y)[0]; got != want[x] {
				t.Errorf("pixel(%d,%d).R = %d, want %d", x, y, got, want[x])
			}
		}
	}
}

func TestCompositeRGB_NonIntegerScale(t *testing.T) {
	// 3 source columns into 2 output columns: dw = 1.5, so x=1 reads column 1.
	src := mustSet(t, 3, 1, []float64{1, 2, 3}, []float64{0, 0, 0}, []float64{0, 0, 0})
	mask := mustSet(t, 2, 1, []float64{1, 1})
	img, err := CompositeRGB(src, &mask)
	if err != nil {
		t.Fatal(err)
	}
	if got := pixel(img, 0, 0)[0]; got != 1 {
		t.Errorf("x=0 R = %d, want 1", got)
	}
	if got := pixel(img, 1, 0)[0]; got != 2 {
		t.Errorf("x=1 R = %d, want 2", got)
	}
}

func TestCompositeRGB_Saturates(t *testing.T) {
	src := mustSet(t, 3, 1, []float64{-20, 300, math.NaN()}, []float64{0, 0, 0}, []float64{0, 0, 0})
	img, err := CompositeRGB(src, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []uint8{0, 255, 0} {
		if got := pixel(img, i, 0)[0]; got != want {
			t.Errorf("R[%d] = %d, want %d", i, got, want)
		}
	}
}

func TestCompositeRGB_Malformed(t *testing.T) {
	good := mustSet(t, 2, 1, []float64{1, 2}, []float64{1, 2}, []float64{1, 2})
	tests := []struct {
		name string
		src  raster.Set
		mask *raster.Set
	}{
		{"short band", raster.Set{Width: 2, Height: 1, Bands: [][]float64{{1, 2}, {1}, {1, 2}}}, nil},
		{"two bands", raster.Set{Width: 2, Height: 1, Bands: [][]float64{{1, 2}, {1, 2}}}, nil},
		{"bad mask", good, &raster.Set{Width: 2, Height: 2, Bands: [][]float64{{1, 2}}}},
		{"empty mask", good, &raster.Set{Width: 2, Height: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := CompositeRGB(tt.src, tt.mask)
			if !errors.Is(err, raster.ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
			if img != nil {
				t.Error("expected no image on error")
			}
		})
	}
}

func TestCompositePalette_Grayscale(t *testing.T) {
	data := mustSet(t, 2, 2, []float64{0, 50, 100, 9999})
	p, err := palette.New("gray", []string{"000000", "FFFFFF"}, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	img, err := CompositePalette(data, 0, nil, p)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint8{0, 128, 255, 255}
	for i, v := range want {
		got := pixel(img, i%2, i/2)
		if got != [4]uint8{v, v, v, 255} {
			t.Errorf("pixel %d = %v, want gray %d opaque", i, got, v)
		}
	}
}

func TestCompositePalette_BandSelection(t *testing.T) {
	data := mustSet(t, 1, 1, []float64{0}, []float64{1})
	p, _ := palette.New("bw", []string{"000000", "FFFFFF"}, 0, 1)

	img0, err := CompositePalette(data, 0, nil, p)
	if err != nil {
		t.Fatal(err)
	}
	img1, err := CompositePalette(data, 1, nil, p)
	if err != nil {
		t.Fatal(err)
	}
	if pixel(img0, 0, 0)[0] != 0 || pixel(img1, 0, 0)[0] != 255 {
		t.Errorf("band 0 -> %v, band 1 -> %v", pixel(img0, 0, 0), pixel(img1, 0, 0))
	}
	if _, err := CompositePalette(data, 2, nil, p); err == nil {
		t.Error("expected error for band 2")
	}
}

func TestCompositePalette_Idempotent(t *testing.T) {
	n := 64
	band := make([]float64, n)
	alpha := make([]float64, n)
	for i := range n {
		band[i] = float64(i*37%101) - 10
		alpha[i] = float64(i%2)
	}
	data := mustSet(t, 8, 8, band)
	mask := mustSet(t, 8, 8, alpha)
	p := palette.Iron().WithDomain(0, 90)

	a, err := CompositePalette(data, 0, &mask, p)
	if err != nil {
		t.Fatal(err)
	}
	b, err := CompositePalette(data, 0, &mask, p)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("CompositePalette not byte-identical across calls")
	}
}

func TestCompositePalette_UsesMaskSize(t *testing.T) {
	data := mustSet(t, 4, 4, make([]float64, 16))
	mask := mustSet(t, 2, 2, []float64{1, 0, 0, 1})
	img, err := CompositePalette(data, 0, &mask, palette.Binary())
	if err != nil {
		t.Fatal(err)
	}
	if img.Rect.Dx() != 2 || img.Rect.Dy() != 2 {
		t.Errorf("size = %v, want 2x2", img.Rect)
	}
	if pixel(img, 1, 0)[3] != 0 || pixel(img, 1, 1)[3] != 255 {
		t.Errorf("alpha = %d, %d", pixel(img, 1, 0)[3], pixel(img, 1, 1)[3])
	}
}

func TestCompositePalette_InvalidPalette(t *testing.T) {
	data := mustSet(t, 1, 1, []float64{0})
	p := palette.Palette{Stops: []palette.Color{{}}, Min: 0, Max: 1}
	if _, err := CompositePalette(data, 0, nil, p); err == nil {
		t.Error("expected error for single-stop palette")
	}
}

func TestRGBAPool(t *testing.T) {
	img := GetRGBA(3, 2)
	if img.Rect.Dx() != 3 || img.Rect.Dy() != 2 {
		t.Fatalf("GetRGBA size = %v", img.Rect)
	}
	img.Pix[0] = 99
	PutRGBA(img)
	PutRGBA(nil)

	again := GetRGBA(3, 2)
	for i, v := range again.Pix {
		if v != 0 {
			t.Fatalf("pooled image not cleared at %d: %d", i, v)
		}
	}
}
