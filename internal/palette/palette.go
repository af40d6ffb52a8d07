// Package palette builds color lookup tables from hex color stops and maps
// scalar raster samples onto them.
package palette

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultTableSize is the number of entries in a lookup table.
const DefaultTableSize = 256

// Color is an RGB triple with channels in [0, 255]. Interpolated
// table entries keep their fractional part.
type Color struct {
	R, G, B float64
}

// Hex formats the color as RRGGBB, rounding each channel.
func (c Color) Hex() string {
	f := func(v float64) uint8 {
		return uint8(math.Round(math.Min(math.Max(v, 0), 255)))
	}
	return fmt.Sprintf("%02X%02X%02X", f(c.R), f(c.G), f(c.B))
}

// ParseHex parses a color like "0099FF" or "#0099FF".
func ParseHex(s string) (Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid hex color %q (expected 6 hex digits)", s)
	}
	var rgb [3]float64
	for i := range 3 {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
		}
		rgb[i] = float64(v)
	}
	return Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}

// ParseStops parses a list of hex colors.
func ParseStops(hex []string) ([]Color, error) {
	stops := make([]Color, len(hex))
	for i, h := range hex {
		c, err := ParseHex(h)
		if err != nil {
			return nil, fmt.Errorf("stop %d: %w", i, err)
		}
		stops[i] = c
	}
	return stops, nil
}

// Table is a color lookup table.
type Table []Color

// BuildLookupTable spreads size slots evenly over the stop positions
// [0, len(stops)-1] and linearly interpolates each channel between the
// neighbouring stops.
func BuildLookupTable(stops []Color, size int) (Table, error) {
	if len(stops) < 2 {
		return nil, fmt.Errorf("palette needs at least 2 stops, got %d", len(stops))
	}
	if size < 2 {
		return nil, fmt.Errorf("lookup table size must be at least 2, got %d", size)
	}
	last := len(stops) - 1
	table := make(Table, size)
	for i := range table {
		// Integer numerator keeps exact stop positions exact.
		pos := float64(i*last) / float64(size-1)
		lower := min(int(math.Floor(pos)), last)
		upper := min(int(math.Ceil(pos)), last)
		t := pos - float64(lower)
		a, b := stops[lower], stops[upper]
		table[i] = Color{
			R: lerp(a.R, b.R, t),
			G: lerp(a.G, b.G, t),
			B: lerp(a.B, b.B, t),
		}
	}
	return table, nil
}

// Lookup returns entry i, clamping i into the table range.
func (t Table) Lookup(i int) Color {
	if i < 0 {
		i = 0
	}
	if i >= len(t) {
		i = len(t) - 1
	}
	return t[i]
}

// Normalize maps v from [lo, hi] onto [0, 1], saturating outside the domain.
// A degenerate domain (lo == hi) maps every value to 0.5 and NaN maps to 0.
// Sentinel values such as -9999 are not special: they simply clamp.
func Normalize(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if lo == hi {
		return 0.5
	}
	y := (v - lo) / (hi - lo)
	if math.IsNaN(y) {
		return 0
	}
	return clamp(y, 0, 1)
}

// Indices normalizes every sample and scales it to a table index in
// [0, size-1]. Rounding is half away from zero.
func Indices(band []float64, lo, hi float64, size int) []int {
	idx := make([]int, len(band))
	top := size - 1
	for i, v := range band {
		n := int(math.Round(Normalize(v, lo, hi) * float64(top)))
		if n < 0 {
			n = 0
		}
		if n > top {
			n = top
		}
		idx[i] = n
	}
	return idx
}

func lerp(x, y, t float64) float64 {
	return x + t*(y-x)
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}
