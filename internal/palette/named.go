package palette

import (
	"fmt"
	"slices"
	"sort"
)

// Palette is an ordered list of color stops and the data domain they span.
type Palette struct {
	Name  string
	Stops []Color
	Min   float64
	Max   float64
}

// New parses hex stops into a Palette.
func New(name string, hex []string, lo, hi float64) (Palette, error) {
	stops, err := ParseStops(hex)
	if err != nil {
		return Palette{}, fmt.Errorf("palette %s: %w", name, err)
	}
	if len(stops) < 2 {
		return Palette{}, fmt.Errorf("palette %s: needs at least 2 stops, got %d", name, len(stops))
	}
	return Palette{Name: name, Stops: stops, Min: lo, Max: hi}, nil
}

// Table builds the default-size lookup table for p.
func (p Palette) Table() (Table, error) {
	return BuildLookupTable(p.Stops, DefaultTableSize)
}

// WithDomain returns a copy of p spanning [lo, hi].
func (p Palette) WithDomain(lo, hi float64) Palette {
	p.Stops = slices.Clone(p.Stops)
	p.Min, p.Max = lo, hi
	return p
}

// Legend describes a color scale for display next to a rendered image.
type Legend struct {
	Stops    []string `json:"stops"`
	MinLabel string   `json:"min"`
	MaxLabel string   `json:"max"`
}

// Legend returns the legend descriptor for p with the given labels.
func (p Palette) Legend(minLabel, maxLabel string) Legend {
	hex := make([]string, len(p.Stops))
	for i, c := range p.Stops {
		hex[i] = c.Hex()
	}
	return Legend{Stops: hex, MinLabel: minLabel, MaxLabel: maxLabel}
}

// Stop lists of the built-in palettes.
var (
	binaryStops   = []string{"212121", "B3E5FC"}
	rainbowStops  = []string{"3949AB", "81D4FA", "66BB6A", "FFE082", "E53935"}
	ironStops     = []string{"00000A", "91009C", "E64616", "FEB400", "FFFFF6"}
	sunlightStops = []string{"212121", "FFCA28"}
)

var named = map[string][]string{
	"binary":   binaryStops,
	"rainbow":  rainbowStops,
	"iron":     ironStops,
	"sunlight": sunlightStops,
}

// Named returns a fresh copy of a built-in palette spanning [0, 1].
func Named(name string) (Palette, error) {
	hex, ok := named[name]
	if !ok {
		return Palette{}, fmt.Errorf("unknown palette %q (known: %v)", name, Names())
	}
	return New(name, hex, 0, 1)
}

// Names lists the built-in palette names in sorted order.
func Names() []string {
	names := make([]string, 0, len(named))
	for n := range named {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Binary returns the roof mask palette.
func Binary() Palette { return mustNamed("binary") }

// Rainbow returns the elevation palette.
func Rainbow() Palette { return mustNamed("rainbow") }

// Iron returns the sunlight flux palette.
func Iron() Palette { return mustNamed("iron") }

// Sunlight returns the shade/sun palette.
func Sunlight() Palette { return mustNamed("sunlight") }

func mustNamed(name string) Palette {
	p, err := Named(name)
	if err != nil {
		panic(err)
	}
	return p
}
