package cog

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/pspoerri/solarlayers/internal/coord"
	"github.com/pspoerri/solarlayers/internal/raster"
)

// ErrNoGeoreference is returned by Bounds when the file carries no usable
// georeference.
var ErrNoGeoreference = errors.New("no georeference")

// Reader provides sample-level access to a GeoTIFF.
// File-backed readers are memory-mapped for lock-free concurrent access.
type Reader struct {
	data   []byte // file contents, memory-mapped when opened from disk
	mapped bool
	bo     binary.ByteOrder
	ifds   []IFD
	geo    GeoInfo
	path   string
}

// Open opens a GeoTIFF file by memory-mapping it and parsing its structure.
// A world file (.tfw or .wld) next to the image supplies the georeference when the
// GeoTIFF tags are missing.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	size := fi.Size()
	if size == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	data, err := mmapFile(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	r, err := newReader(data, path)
	if err != nil {
		munmapFile(data)
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	r.mapped = true

	if r.geo.PixelSizeX == 0 {
		if wf := findWorldFile(path); wf != "" {
			geo, err := readWorldFile(wf)
			if err != nil {
				r.Close()
				return nil, err
			}
			geo.EPSG = r.geo.EPSG
			if geo.EPSG == 0 {
				geo.EPSG = guessEPSG(geo, r.ifds[0].Width, r.ifds[0].Height)
			}
			r.geo = geo
		}
	}

	return r, nil
}

// Decode parses a GeoTIFF held in memory. The reader keeps a reference to
// data, which must not be modified while the reader is in use.
func Decode(data []byte) (*Reader, error) {
	r, err := newReader(data, "")
	if err != nil {
		return nil, fmt.Errorf("decoding GeoTIFF: %w", err)
	}
	return r, nil
}

func newReader(data []byte, path string) (*Reader, error) {
	ifds, bo, err := parseTIFF(data)
	if err != nil {
		return nil, err
	}
	if len(ifds) == 0 {
		return nil, fmt.Errorf("no IFDs found")
	}

	first := &ifds[0]
	if first.Width == 0 || first.Height == 0 {
		return nil, fmt.Errorf("image has zero size %dx%d", first.Width, first.Height)
	}
	if offsets, _ := first.blocks(); len(offsets) == 0 {
		return nil, fmt.Errorf("no strip or tile offsets")
	}

	return &Reader{
		data: data,
		bo:   bo,
		ifds: ifds,
		geo:  parseGeoInfo(first),
		path: path,
	}, nil
}

// Close releases the file mapping. Rasters already returned by ReadRaster
// stay valid.
func (r *Reader) Close() error {
	if r.mapped && r.data != nil {
		err := munmapFile(r.data)
		r.data = nil
		return err
	}
	r.data = nil
	return nil
}

// Path returns the file path, or "" for in-memory readers.
func (r *Reader) Path() string {
	return r.path
}

func (r *Reader) GeoInfo() GeoInfo { return r.geo }

func (r *Reader) Width() int  { return int(r.ifds[0].Width) }
func (r *Reader) Height() int { return int(r.ifds[0].Height) }

// NumBands returns the number of samples per pixel.
func (r *Reader) NumBands() int {
	return int(r.ifds[0].SamplesPerPixel)
}

// NumOverviews counts the reduced-resolution IFDs after the main image.
// Solar layers rarely carry any; they are reported but never decoded.
func (r *Reader) NumOverviews() int { return len(r.ifds) - 1 }

// EPSG is the CRS code from the GeoKeys or world file, 0 when unknown.
func (r *Reader) EPSG() int { return r.geo.EPSG }

// BoundsInCRS returns the image extent in source CRS units.
func (r *Reader) BoundsInCRS() (minX, minY, maxX, maxY float64) {
	w := float64(r.Width()) * r.geo.PixelSizeX
	h := float64(r.Height()) * r.geo.PixelSizeY
	return r.geo.OriginX, r.geo.OriginY - h, r.geo.OriginX + w, r.geo.OriginY
}

// Bounds returns the WGS84 bounds of the image.
func (r *Reader) Bounds() (raster.Bounds, error) {
	if r.geo.PixelSizeX == 0 || r.geo.PixelSizeY == 0 {
		return raster.Bounds{}, fmt.Errorf("%w: missing pixel scale", ErrNoGeoreference)
	}
	proj := coord.ForEPSG(r.geo.EPSG)
	if proj == nil {
		return raster.Bounds{}, fmt.Errorf("%w: unsupported EPSG:%d", ErrNoGeoreference, r.geo.EPSG)
	}
	minX, minY, maxX, maxY := r.BoundsInCRS()
	west, south, east, north := coord.BoundsToWGS84(proj, minX, minY, maxX, maxY)
	return raster.Bounds{North: north, South: south, East: east, West: west}, nil
}

// NoData returns the GDAL nodata value, if the file declares one.
func (r *Reader) NoData() (float64, bool) {
	s := r.ifds[0].NoData
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ReadRaster decodes every sample of the full-resolution image into one
// band per sample. Samples equal to the nodata value become NaN. Bounds are
// left zero when the file has no usable georeference.
func (r *Reader) ReadRaster() (raster.Set, error) {
	if r.data == nil {
		return raster.Set{}, fmt.Errorf("reader is closed")
	}
	ifd := &r.ifds[0]
	lay, err := newLayout(ifd)
	if err != nil {
		return raster.Set{}, err
	}

	offsets, counts := ifd.blocks()
	want := lay.across * lay.down * lay.planes
	if len(offsets) < want || len(counts) < want {
		return raster.Set{}, fmt.Errorf("have %d block offsets and %d byte counts, want %d",
			len(offsets), len(counts), want)
	}

	w, h := int(ifd.Width), int(ifd.Height)
	bands := make([][]float64, lay.spp)
	for i := range bands {
		bands[i] = make([]float64, w*h)
	}

	// Blocks cover disjoint pixels, so they decode in parallel.
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for plane := 0; plane < lay.planes; plane++ {
		for by := 0; by < lay.down; by++ {
			for bx := 0; bx < lay.across; bx++ {
				g.Go(func() error {
					return r.readBlock(ifd, lay, plane, bx, by, bands)
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		return raster.Set{}, err
	}

	if nodata, ok := r.NoData(); ok && !math.IsNaN(nodata) {
		for _, band := range bands {
			for i, v := range band {
				if v == nodata {
					band[i] = math.NaN()
				}
			}
		}
	}

	set := raster.Set{Width: w, Height: h, Bands: bands}
	if b, err := r.Bounds(); err == nil {
		set.Bounds = b
	}
	return set, nil
}

// layout describes how the samples of an IFD are stored.
type layout struct {
	blockW, blockH int
	across, down   int
	spp            int // samples per pixel of the image
	blockSpp       int // samples per pixel within one block
	planes         int
	bits           int
	format         uint16
}

func newLayout(ifd *IFD) (layout, error) {
	bits, err := ifd.bitsPerSample()
	if err != nil {
		return layout{}, err
	}
	lay := layout{
		across: ifd.BlocksAcross(),
		down:   ifd.BlocksDown(),
		spp:    int(ifd.SamplesPerPixel),
		bits:   bits,
		format: ifd.sampleFormat(),
	}
	lay.blockW, lay.blockH = ifd.blockSize()
	if lay.spp < 1 {
		return layout{}, fmt.Errorf("invalid samples per pixel %d", lay.spp)
	}

	switch ifd.PlanarConfig {
	case 1:
		lay.planes, lay.blockSpp = 1, lay.spp
	case 2:
		lay.planes, lay.blockSpp = lay.spp, 1
	default:
		return layout{}, fmt.Errorf("unsupported planar configuration %d", ifd.PlanarConfig)
	}

	switch lay.format {
	case sampleFormatUint, sampleFormatInt:
		if bits != 8 && bits != 16 && bits != 32 && bits != 64 {
			return layout{}, fmt.Errorf("unsupported integer sample size %d bits", bits)
		}
	case sampleFormatFloat:
		if bits != 32 && bits != 64 {
			return layout{}, fmt.Errorf("unsupported float sample size %d bits", bits)
		}
	default:
		return layout{}, fmt.Errorf("unsupported sample format %d", lay.format)
	}

	switch ifd.Compression {
	case compressionNone, compressionLZW, compressionDeflate, compressionDeflateAdobe:
	case compressionJPEG:
		if bits != 8 || lay.format != sampleFormatUint || lay.planes != 1 {
			return layout{}, fmt.Errorf("JPEG compression requires chunky 8-bit unsigned samples")
		}
	default:
		return layout{}, fmt.Errorf("unsupported compression: %d", ifd.Compression)
	}

	switch ifd.Predictor {
	case 1:
	case 2:
		if lay.format == sampleFormatFloat {
			return layout{}, fmt.Errorf("horizontal predictor on float samples is not supported")
		}
	default:
		return layout{}, fmt.Errorf("unsupported predictor %d", ifd.Predictor)
	}
	return lay, nil
}

// readBlock decodes one strip or tile into the destination bands, cropping
// samples that fall outside the image.
func (r *Reader) readBlock(ifd *IFD, lay layout, plane, bx, by int, bands [][]float64) error {
	offsets, counts := ifd.blocks()
	idx := plane*lay.across*lay.down + by*lay.across + bx
	offset, size := offsets[idx], counts[idx]

	w, h := int(ifd.Width), int(ifd.Height)
	x0, y0 := bx*lay.blockW, by*lay.blockH
	cols := min(lay.blockW, w-x0)
	rows := min(lay.blockH, h-y0)

	if size == 0 {
		// Sparse block: samples stay zero.
		return nil
	}
	end := offset + size
	if end > uint64(len(r.data)) {
		return fmt.Errorf("block %d data [%d:%d] exceeds file size %d", idx, offset, end, len(r.data))
	}
	raw := r.data[offset:end]

	if ifd.Compression == compressionJPEG {
		img, err := decodeJPEGBlock(ifd.JPEGTables, raw)
		if err != nil {
			return fmt.Errorf("block %d: %w", idx, err)
		}
		copyJPEGSamples(img, lay.spp, w, x0, y0, cols, rows, bands)
		return nil
	}

	// Tiles are always stored at full size; the last strip may be short.
	storedRows := rows
	if ifd.Tiled() {
		storedRows = lay.blockH
	}
	bps := lay.bits / 8
	rowBytes := lay.blockW * lay.blockSpp * bps
	need := storedRows * rowBytes

	buf, err := decompress(ifd.Compression, raw, need)
	if err != nil {
		return fmt.Errorf("block %d: %w", idx, err)
	}
	if len(buf) < need {
		return fmt.Errorf("block %d: decoded %d bytes, want %d", idx, len(buf), need)
	}
	buf = buf[:need]

	if ifd.Predictor == 2 {
		if ifd.Compression == compressionNone {
			// The mapping is read-only.
			buf = bytes.Clone(buf)
		}
		undoHorizontalDifferencing(buf, rowBytes, lay.blockSpp, bps, r.bo)
	}

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			dst := (y0+y)*w + x0 + x
			src := (y*lay.blockW + x) * lay.blockSpp
			if lay.planes == 1 {
				for s := 0; s < lay.spp; s++ {
					bands[s][dst] = decodeSample(buf[(src+s)*bps:], lay.bits, lay.format, r.bo)
				}
			} else {
				bands[plane][dst] = decodeSample(buf[src*bps:], lay.bits, lay.format, r.bo)
			}
		}
	}
	return nil
}

// decodeSample converts one stored sample to float64.
func decodeSample(b []byte, bits int, format uint16, bo binary.ByteOrder) float64 {
	switch format {
	case sampleFormatFloat:
		if bits == 32 {
			return float64(math.Float32frombits(bo.Uint32(b)))
		}
		return math.Float64frombits(bo.Uint64(b))
	case sampleFormatInt:
		switch bits {
		case 8:
			return float64(int8(b[0]))
		case 16:
			return float64(int16(bo.Uint16(b)))
		case 32:
			return float64(int32(bo.Uint32(b)))
		default:
			return float64(int64(bo.Uint64(b)))
		}
	default:
		switch bits {
		case 8:
			return float64(b[0])
		case 16:
			return float64(bo.Uint16(b))
		case 32:
			return float64(bo.Uint32(b))
		default:
			return float64(bo.Uint64(b))
		}
	}
}

// undoHorizontalDifferencing reverses TIFF predictor 2 in place. Each sample
// was stored as the difference to the same sample of the previous pixel.
func undoHorizontalDifferencing(buf []byte, rowBytes, spp, bps int, bo binary.ByteOrder) {
	stride := spp * bps
	for row := 0; row+rowBytes <= len(buf); row += rowBytes {
		line := buf[row : row+rowBytes]
		for i := stride; i+bps <= len(line); i += bps {
			prev := line[i-stride:]
			switch bps {
			case 1:
				line[i] += prev[0]
			case 2:
				bo.PutUint16(line[i:], bo.Uint16(line[i:])+bo.Uint16(prev))
			case 4:
				bo.PutUint32(line[i:], bo.Uint32(line[i:])+bo.Uint32(prev))
			case 8:
				bo.PutUint64(line[i:], bo.Uint64(line[i:])+bo.Uint64(prev))
			}
		}
	}
}
