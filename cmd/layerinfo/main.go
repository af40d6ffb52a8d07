// Command layerinfo prints the structure, georeference and per-band value
// range of solar data layer GeoTIFFs.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/pspoerri/solarlayers/internal/cog"
	"github.com/pspoerri/solarlayers/internal/coord"
	"github.com/pspoerri/solarlayers/internal/raster"
)

type CLI struct {
	Files []string `arg:"" type:"existingfile" help:"GeoTIFF files to inspect."`
	Stats bool     `default:"true" negatable:"" help:"Decode the samples and print per-band min/max."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("layerinfo"),
		kong.Description("Inspect solar data layer GeoTIFFs."),
		kong.UsageOnError(),
	)

	failed := false
	for i, path := range cli.Files {
		if i > 0 {
			fmt.Println()
		}
		if err := describe(os.Stdout, path, cli.Stats); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func describe(w io.Writer, path string, stats bool) error {
	r, err := cog.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	info := r.Info()
	fmt.Fprintf(w, "File: %s\n", path)
	fmt.Fprintf(w, "Size: %d x %d, %d band(s)\n", info.Width, info.Height, info.Bands)
	fmt.Fprintf(w, "Samples: %d-bit %s\n", info.BitsPerSample, info.SampleFormat)

	layout := "strips"
	if info.Tiled {
		layout = "tiles"
	}
	planar := "chunky"
	if info.Planar {
		planar = "planar"
	}
	fmt.Fprintf(w, "Layout: %s %dx%d, %s, compression=%s predictor=%d\n",
		layout, info.BlockWidth, info.BlockHeight, planar, info.Compression, info.Predictor)
	fmt.Fprintf(w, "Overviews: %d\n", info.Overviews)
	if info.NoData != "" {
		fmt.Fprintf(w, "NoData: %s\n", info.NoData)
	}

	if info.EPSG == 0 {
		fmt.Fprintf(w, "EPSG: unknown\n")
	} else {
		fmt.Fprintf(w, "EPSG: %d\n", info.EPSG)
	}
	if info.PixelSize > 0 {
		fmt.Fprintf(w, "Pixel size (CRS units): %f\n", info.PixelSize)
		if !info.Bounds.IsZero() {
			lat := (info.Bounds.North + info.Bounds.South) / 2
			fmt.Fprintf(w, "Pixel size (ground): %.3f m\n", coord.PixelSizeInGroundMeters(info.PixelSize, info.EPSG, lat))
		}
	}
	if !info.Bounds.IsZero() {
		b := info.Bounds
		fmt.Fprintf(w, "Bounds (WGS84): west=%.6f south=%.6f east=%.6f north=%.6f\n", b.West, b.South, b.East, b.North)
	} else {
		fmt.Fprintf(w, "Bounds (WGS84): unknown\n")
	}

	if !stats {
		return nil
	}
	set, err := r.ReadRaster()
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	printBandStats(w, set)
	return nil
}

func printBandStats(w io.Writer, set raster.Set) {
	for i, band := range set.Bands {
		lo, hi := raster.MinMax(band)
		fmt.Fprintf(w, "  Band %d: min=%g max=%g\n", i, lo, hi)
	}
}
