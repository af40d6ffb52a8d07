package cog

import (
	"fmt"

	"github.com/pspoerri/solarlayers/internal/raster"
)

// Info summarizes the structure of a GeoTIFF.
type Info struct {
	Width, Height int
	Bands         int
	BitsPerSample int
	SampleFormat  string
	Compression   string
	Predictor     int
	Planar        bool
	Tiled         bool
	BlockWidth    int
	BlockHeight   int
	Overviews     int
	EPSG          int
	PixelSize     float64 // CRS units
	Bounds        raster.Bounds
	NoData        string
}

// Info returns metadata for the full-resolution image.
func (r *Reader) Info() Info {
	ifd := &r.ifds[0]
	bits, _ := ifd.bitsPerSample()
	bw, bh := ifd.blockSize()
	info := Info{
		Width:         int(ifd.Width),
		Height:        int(ifd.Height),
		Bands:         int(ifd.SamplesPerPixel),
		BitsPerSample: bits,
		SampleFormat:  sampleFormatName(ifd.sampleFormat()),
		Compression:   compressionName(ifd.Compression),
		Predictor:     int(ifd.Predictor),
		Planar:        ifd.PlanarConfig == 2,
		Tiled:         ifd.Tiled(),
		BlockWidth:    bw,
		BlockHeight:   bh,
		Overviews:     r.NumOverviews(),
		EPSG:          r.geo.EPSG,
		PixelSize:     r.geo.PixelSizeX,
		NoData:        ifd.NoData,
	}
	if b, err := r.Bounds(); err == nil {
		info.Bounds = b
	}
	return info
}

func compressionName(c uint16) string {
	switch c {
	case compressionNone:
		return "none"
	case compressionLZW:
		return "lzw"
	case compressionJPEG:
		return "jpeg"
	case compressionDeflate, compressionDeflateAdobe:
		return "deflate"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

func sampleFormatName(f uint16) string {
	switch f {
	case sampleFormatUint:
		return "uint"
	case sampleFormatInt:
		return "int"
	case sampleFormatFloat:
		return "float"
	default:
		return fmt.Sprintf("unknown(%d)", f)
	}
}
