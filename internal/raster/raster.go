package raster

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformed is returned when a raster's band lengths do not match its
// declared dimensions.
var ErrMalformed = errors.New("malformed raster")

// Bounds is a WGS84 bounding box in degrees.
type Bounds struct {
	North, South float64
	East, West   float64
}

// IsZero reports whether the bounds are unset.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// Set is one decoded image layer: Width*Height samples per band, row-major.
// A Set is treated as immutable once created.
type Set struct {
	Width  int
	Height int
	Bands  [][]float64
	Bounds Bounds
}

// New creates a Set and validates it.
func New(width, height int, bands ...[]float64) (Set, error) {
	s := Set{Width: width, Height: height, Bands: bands}
	if err := s.Validate(); err != nil {
		return Set{}, err
	}
	return s, nil
}

// Validate checks that every band has exactly Width*Height samples.
func (s Set) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: invalid size %dx%d", ErrMalformed, s.Width, s.Height)
	}
	n := s.Width * s.Height
	for i, b := range s.Bands {
		if len(b) != n {
			return fmt.Errorf("%w: band %d has %d samples, want %d (%dx%d)",
				ErrMalformed, i, len(b), n, s.Width, s.Height)
		}
	}
	return nil
}

// NumBands returns the number of bands.
func (s Set) NumBands() int {
	return len(s.Bands)
}

// Band returns a single-band view of band i. The samples are shared.
func (s Set) Band(i int) (Set, error) {
	if i < 0 || i >= len(s.Bands) {
		return Set{}, fmt.Errorf("band %d out of range (have %d)", i, len(s.Bands))
	}
	return Set{Width: s.Width, Height: s.Height, Bands: [][]float64{s.Bands[i]}, Bounds: s.Bounds}, nil
}

// DayBit reduces packed hourly-shade samples to a single day.
// Bit (day-1) of each sample is set when the sun is visible on that day of
// the month; the result holds 1 for set bits and 0 otherwise.
func DayBit(s Set, day int) (Set, error) {
	if day < 1 || day > 31 {
		return Set{}, fmt.Errorf("day %d out of range [1, 31]", day)
	}
	if err := s.Validate(); err != nil {
		return Set{}, err
	}
	bit := uint32(1) << (day - 1)
	out := Set{Width: s.Width, Height: s.Height, Bounds: s.Bounds, Bands: make([][]float64, len(s.Bands))}
	for i, band := range s.Bands {
		dst := make([]float64, len(band))
		for j, v := range band {
			if math.IsNaN(v) {
				continue
			}
			if uint32(int64(v))&bit != 0 {
				dst[j] = 1
			}
		}
		out.Bands[i] = dst
	}
	return out, nil
}

// MinMax returns the smallest and largest non-NaN sample in band.
// An empty or all-NaN band yields (0, 0).
func MinMax(band []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range band {
		if math.IsNaN(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}
