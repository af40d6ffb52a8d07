package coord

import "math"

const (
	// EarthCircumference is the equatorial circumference in meters.
	EarthCircumference = 40075016.685578488
	// OriginShift is half the earth's circumference.
	OriginShift = EarthCircumference / 2.0
)

// WebMercatorProj implements the Projection interface for EPSG:3857.
type WebMercatorProj struct{}

func (w *WebMercatorProj) EPSG() int { return 3857 }

func (w *WebMercatorProj) ToWGS84(x, y float64) (lon, lat float64) {
	lon = (x / OriginShift) * 180.0
	lat = (y / OriginShift) * 180.0
	lat = 180.0 / math.Pi * (2.0*math.Atan(math.Exp(lat*math.Pi/180.0)) - math.Pi/2.0)
	return
}

func (w *WebMercatorProj) FromWGS84(lon, lat float64) (x, y float64) {
	x = lon * OriginShift / 180.0
	y = math.Log(math.Tan((90.0+lat)*math.Pi/360.0)) / (math.Pi / 180.0)
	y = y * OriginShift / 180.0
	return
}

// PixelSizeInGroundMeters converts a pixel size in CRS units to meters on
// the ground at the given latitude. Projected CRSs other than Web Mercator
// are treated as metric.
func PixelSizeInGroundMeters(pixelSize float64, epsg int, lat float64) float64 {
	c := math.Cos(lat * math.Pi / 180.0)
	switch epsg {
	case 4326:
		return pixelSize * EarthCircumference / 360.0 * c
	case 3857:
		return pixelSize * c
	default:
		return pixelSize
	}
}

// MetersToPixelSizeCRS is the inverse of PixelSizeInGroundMeters.
func MetersToPixelSizeCRS(meters float64, epsg int, lat float64) float64 {
	c := math.Cos(lat * math.Pi / 180.0)
	switch epsg {
	case 4326:
		return meters / (EarthCircumference / 360.0 * c)
	case 3857:
		return meters / c
	default:
		return meters
	}
}
