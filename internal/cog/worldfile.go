package cog

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// worldFileExts are the sidecar extensions tried next to a GeoTIFF.
var worldFileExts = []string{".tfw", ".TFW", ".tifw", ".TIFW", ".wld", ".WLD"}

// readWorldFile parses an ESRI world file: pixel width, two rotation terms,
// pixel height, then the x and y of the upper-left pixel center. The
// returned georeference is anchored at the pixel corner like the GeoTIFF
// tie points. EPSG is left zero.
func readWorldFile(path string) (GeoInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GeoInfo{}, fmt.Errorf("reading world file: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) < 6 {
		return GeoInfo{}, fmt.Errorf("world file %s: want 6 values, got %d", path, len(fields))
	}

	var v [6]float64
	for i := range v {
		if v[i], err = strconv.ParseFloat(fields[i], 64); err != nil {
			return GeoInfo{}, fmt.Errorf("world file %s value %d: %w", path, i+1, err)
		}
	}
	if v[1] != 0 || v[2] != 0 {
		return GeoInfo{}, fmt.Errorf("world file %s: rotated rasters are not supported", path)
	}

	sx, sy := math.Abs(v[0]), math.Abs(v[3])
	if sx == 0 || sy == 0 {
		return GeoInfo{}, fmt.Errorf("world file %s: zero pixel size", path)
	}
	return GeoInfo{
		PixelSizeX: sx,
		PixelSizeY: sy,
		OriginX:    v[4] - sx/2,
		OriginY:    v[5] + sy/2,
	}, nil
}

// findWorldFile returns the first sidecar world file of tiffPath, or "".
func findWorldFile(tiffPath string) string {
	base := strings.TrimSuffix(tiffPath, filepath.Ext(tiffPath))
	for _, ext := range worldFileExts {
		if _, err := os.Stat(base + ext); err == nil {
			return base + ext
		}
	}
	return ""
}

// guessEPSG recognizes geographic degrees and Swiss LV95 coordinates. UTM
// zones and Web Mercator overlap in range, so anything else stays unknown.
func guessEPSG(g GeoInfo, width, height uint32) int {
	east := g.OriginX + float64(width)*g.PixelSizeX
	south := g.OriginY - float64(height)*g.PixelSizeY

	switch {
	case g.OriginX >= -180 && east <= 180 && south >= -90 && g.OriginY <= 90:
		return 4326
	case g.OriginX >= 2_480_000 && east <= 2_840_000 && south >= 1_070_000 && g.OriginY <= 1_300_000:
		return 2056
	default:
		return 0
	}
}
