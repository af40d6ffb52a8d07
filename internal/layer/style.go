package layer

import "github.com/pspoerri/solarlayers/internal/palette"

// Style is the palette and legend text of a layer kind.
type Style struct {
	Palette  palette.Palette
	MinLabel string
	MaxLabel string
	// FixedDomain keeps Palette.Min/Max for layers that otherwise derive
	// their domain from the data (dsm).
	FixedDomain bool
}

func (s Style) legend() palette.Legend {
	return s.Palette.Legend(s.MinLabel, s.MaxLabel)
}

// Styles maps layer kinds to styles. Kinds without an entry use the
// defaults.
type Styles map[Kind]Style

// DefaultStyles returns the built-in styles for every kind.
func DefaultStyles() Styles {
	return Styles{
		Mask:        {Palette: palette.Binary(), MinLabel: "No roof", MaxLabel: "Roof"},
		DSM:         {Palette: palette.Rainbow()},
		RGB:         {},
		AnnualFlux:  {Palette: palette.Iron().WithDomain(0, 1800), MinLabel: "Shady", MaxLabel: "Sunny"},
		MonthlyFlux: {Palette: palette.Iron().WithDomain(0, 200), MinLabel: "Shady", MaxLabel: "Sunny"},
		HourlyShade: {Palette: palette.Sunlight(), MinLabel: "Shade", MaxLabel: "Sun"},
	}
}

// For returns the style of kind, falling back to the default.
func (s Styles) For(kind Kind) Style {
	if st, ok := s[kind]; ok {
		return st
	}
	return DefaultStyles()[kind]
}
