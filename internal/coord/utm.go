package coord

import "math"

// WGS84 ellipsoid and UTM constants.
const (
	wgs84A     = 6378137.0
	wgs84F     = 1 / 298.257223563
	utmK0      = 0.9996
	utmFalseE  = 500000.0
	utmFalseNS = 10000000.0
)

// UTM implements the Projection interface for the WGS84 UTM zones
// (EPSG:326xx north, EPSG:327xx south) using the Snyder series.
type UTM struct {
	Zone  int // 1-60
	South bool
}

// utmForEPSG returns the UTM zone encoded in an EPSG code, or nil.
func utmForEPSG(epsg int) *UTM {
	switch {
	case epsg > 32600 && epsg <= 32660:
		return &UTM{Zone: epsg - 32600}
	case epsg > 32700 && epsg <= 32760:
		return &UTM{Zone: epsg - 32700, South: true}
	}
	return nil
}

func (u *UTM) EPSG() int {
	if u.South {
		return 32700 + u.Zone
	}
	return 32600 + u.Zone
}

func (u *UTM) centralMeridian() float64 {
	return float64(u.Zone-1)*6 - 180 + 3
}

func eccentricity() (e2, ep2 float64) {
	e2 = wgs84F * (2 - wgs84F)
	return e2, e2 / (1 - e2)
}

// meridianArc returns the distance along the meridian from the equator to
// latitude phi (radians).
func meridianArc(phi float64) float64 {
	e2, _ := eccentricity()
	e4 := e2 * e2
	e6 := e4 * e2
	return wgs84A * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

func (u *UTM) FromWGS84(lon, lat float64) (x, y float64) {
	e2, ep2 := eccentricity()
	phi := lat * math.Pi / 180
	dl := (lon - u.centralMeridian()) * math.Pi / 180

	sin, cos, tan := math.Sin(phi), math.Cos(phi), math.Tan(phi)
	n := wgs84A / math.Sqrt(1-e2*sin*sin)
	t := tan * tan
	c := ep2 * cos * cos
	a := cos * dl

	x = utmK0*n*(a+(1-t+c)*math.Pow(a, 3)/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120) + utmFalseE
	y = utmK0 * (meridianArc(phi) + n*tan*(a*a/2+
		(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))
	if u.South {
		y += utmFalseNS
	}
	return x, y
}

func (u *UTM) ToWGS84(x, y float64) (lon, lat float64) {
	e2, ep2 := eccentricity()
	x -= utmFalseE
	if u.South {
		y -= utmFalseNS
	}

	e4 := e2 * e2
	mu := (y / utmK0) / (wgs84A * (1 - e2/4 - 3*e4/64 - 5*e4*e2/256))
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin, cos, tan := math.Sin(phi1), math.Cos(phi1), math.Tan(phi1)
	c1 := ep2 * cos * cos
	t1 := tan * tan
	w := 1 - e2*sin*sin
	n1 := wgs84A / math.Sqrt(w)
	r1 := wgs84A * (1 - e2) / math.Pow(w, 1.5)
	d := x / (n1 * utmK0)

	phi := phi1 - (n1*tan/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	dl := (d - (1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120) / cos

	return u.centralMeridian() + dl*180/math.Pi, phi * 180 / math.Pi
}
