package coord

import "math"

// Projection defines the interface for converting between a source CRS and WGS84.
type Projection interface {
	// ToWGS84 converts source CRS coordinates to WGS84 longitude/latitude (degrees).
	ToWGS84(x, y float64) (lon, lat float64)

	// FromWGS84 converts WGS84 longitude/latitude (degrees) to source CRS coordinates.
	FromWGS84(lon, lat float64) (x, y float64)

	// EPSG returns the EPSG code for this projection.
	EPSG() int
}

// ForEPSG returns a Projection for the given EPSG code.
// Returns nil if the EPSG code is not supported.
func ForEPSG(epsg int) Projection {
	switch epsg {
	case 2056:
		return &SwissLV95{}
	case 4326:
		return &WGS84Identity{}
	case 3857:
		return &WebMercatorProj{}
	}
	if u := utmForEPSG(epsg); u != nil {
		return u
	}
	return nil
}

// WGS84Identity is a no-op projection for data already in EPSG:4326.
type WGS84Identity struct{}

func (w *WGS84Identity) ToWGS84(x, y float64) (lon, lat float64)   { return x, y }
func (w *WGS84Identity) FromWGS84(lon, lat float64) (x, y float64) { return lon, lat }
func (w *WGS84Identity) EPSG() int                                 { return 4326 }

// BoundsToWGS84 converts a CRS bounding box to WGS84 by projecting its four
// corners and taking their extent.
func BoundsToWGS84(p Projection, minX, minY, maxX, maxY float64) (west, south, east, north float64) {
	west, south = math.Inf(1), math.Inf(1)
	east, north = math.Inf(-1), math.Inf(-1)
	corners := [4][2]float64{
		{minX, minY},
		{minX, maxY},
		{maxX, minY},
		{maxX, maxY},
	}
	for _, c := range corners {
		lon, lat := p.ToWGS84(c[0], c[1])
		west = math.Min(west, lon)
		east = math.Max(east, lon)
		south = math.Min(south, lat)
		north = math.Max(north, lat)
	}
	return
}
