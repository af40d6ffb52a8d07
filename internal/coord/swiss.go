package coord

// Swiss LV95 (EPSG:2056) through swisstopo's approximate polynomials.
// Accuracy is about a metre inside Switzerland.

const (
	lv95FalseEasting  = 2_600_000.0
	lv95FalseNorthing = 1_200_000.0

	// Bern in units of 10000 arc seconds.
	bernLatAux = 169_028.66
	bernLonAux = 26_782.5
)

type SwissLV95 struct{}

func (s *SwissLV95) EPSG() int { return 2056 }

// ToWGS84 converts LV95 easting/northing to longitude/latitude in degrees.
func (s *SwissLV95) ToWGS84(easting, northing float64) (lon, lat float64) {
	y := (easting - lv95FalseEasting) / 1e6
	x := (northing - lv95FalseNorthing) / 1e6
	yy, xx := y*y, x*x

	lonAux := 2.6779094 + y*(4.728982+0.791484*x+0.1306*xx-0.0436*yy)
	latAux := 16.9023892 + 3.238272*x - 0.270978*yy - 0.002528*xx - 0.0447*yy*x - 0.0140*xx*x

	// 10000" to degrees
	return lonAux * 100 / 36, latAux * 100 / 36
}

// FromWGS84 converts longitude/latitude in degrees to LV95 easting/northing.
func (s *SwissLV95) FromWGS84(lon, lat float64) (easting, northing float64) {
	phi := (lat*3600 - bernLatAux) / 1e4
	lam := (lon*3600 - bernLonAux) / 1e4
	pp, ll := phi*phi, lam*lam

	easting = 2_600_072.37 + lam*(211_455.93-10_938.51*phi-0.36*pp-44.54*ll)
	northing = 1_200_147.07 + 308_807.95*phi + 3_745.25*ll + 76.63*pp - 194.56*ll*phi + 119.79*pp*phi
	return easting, northing
}
