package layer

import "fmt"

// Kind identifies a solar data layer.
type Kind int

const (
	Mask Kind = iota
	DSM
	RGB
	AnnualFlux
	MonthlyFlux
	HourlyShade
)

// Kinds lists every layer kind in declaration order.
var Kinds = []Kind{Mask, DSM, RGB, AnnualFlux, MonthlyFlux, HourlyShade}

var kindNames = [...]string{
	Mask:        "mask",
	DSM:         "dsm",
	RGB:         "rgb",
	AnnualFlux:  "annualFlux",
	MonthlyFlux: "monthlyFlux",
	HourlyShade: "hourlyShade",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind resolves a layer id such as "monthlyFlux".
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown layer %q (supported: mask, dsm, rgb, annualFlux, monthlyFlux, hourlyShade)", s)
}

// DataCount returns how many data rasters (besides the mask) the layer
// needs. The hourly shade layer takes one raster per month.
func (k Kind) DataCount() int {
	switch k {
	case Mask:
		return 0
	case HourlyShade:
		return 12
	default:
		return 1
	}
}
