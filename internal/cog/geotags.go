package cog

import "slices"

// GeoKey IDs and values read from the GeoKeyDirectory.
const (
	keyGeographicType = 2048
	keyProjectedType  = 3072
	keyUserDefined    = 32767
)

// GeoInfo holds parsed GeoTIFF metadata.
type GeoInfo struct {
	EPSG       int     // 0 when unknown
	OriginX    float64 // CRS x of the upper-left pixel corner
	OriginY    float64 // CRS y of the upper-left pixel corner
	PixelSizeX float64
	PixelSizeY float64 // positive; rows run southwards
}

func parseGeoInfo(ifd *IFD) GeoInfo {
	var g GeoInfo
	if s := ifd.ModelPixelScale; len(s) >= 2 {
		g.PixelSizeX, g.PixelSizeY = s[0], s[1]
	}
	// The tiepoint maps raster (I, J) to model (X, Y).
	if tp := ifd.ModelTiepoint; len(tp) >= 6 {
		g.OriginX = tp[3] - tp[0]*g.PixelSizeX
		g.OriginY = tp[4] + tp[1]*g.PixelSizeY
	}
	g.EPSG = parseEPSG(ifd.GeoKeys)
	return g
}

// parseEPSG returns the CRS code of a GeoKeyDirectory. A projected CRS wins
// over its geographic base. Keys stored in other tags and user-defined
// codes are ignored.
func parseEPSG(dir []uint16) int {
	if len(dir) < 4 {
		return 0
	}
	entries := dir[4:]
	if n := int(dir[3]) * 4; n < len(entries) {
		entries = entries[:n]
	}

	codes := map[uint16]int{}
	for key := range slices.Chunk(entries, 4) {
		if len(key) < 4 {
			break
		}
		id, loc, val := key[0], key[1], key[3]
		if loc == 0 && val != 0 && val != keyUserDefined {
			codes[id] = int(val)
		}
	}
	if c, ok := codes[keyProjectedType]; ok {
		return c
	}
	return codes[keyGeographicType]
}
