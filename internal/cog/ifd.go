package cog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// TIFF tag IDs.
const (
	tagImageWidth         = 256
	tagImageLength        = 257
	tagBitsPerSample      = 258
	tagCompression        = 259
	tagPhotometric        = 262
	tagStripOffsets       = 273
	tagSamplesPerPixel    = 277
	tagRowsPerStrip       = 278
	tagStripByteCounts    = 279
	tagPlanarConfig       = 284
	tagPredictor          = 317
	tagTileWidth          = 322
	tagTileLength         = 323
	tagTileOffsets        = 324
	tagTileByteCounts     = 325
	tagSampleFormat       = 339
	tagJPEGTables         = 347
	tagModelTiepointTag   = 33922
	tagModelPixelScaleTag = 33550
	tagGeoKeyDirectoryTag = 34735
	tagGeoDoubleParamsTag = 34736
	tagGeoAsciiParamsTag  = 34737
	tagGDALNoData         = 42113
)

// Compression schemes.
const (
	compressionNone         = 1
	compressionLZW          = 5
	compressionJPEG         = 7
	compressionDeflate      = 8
	compressionDeflateAdobe = 32946
)

// SampleFormat values.
const (
	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3
)

// TIFF data types.
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndef     = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
	dtIFD       = 13
	dtLong8     = 16
	dtSLong8    = 17
	dtIFD8      = 18
)

// IFD represents a parsed TIFF Image File Directory.
type IFD struct {
	Width           uint32
	Height          uint32
	TileWidth       uint32
	TileHeight      uint32
	RowsPerStrip    uint32
	BitsPerSample   []uint16
	SampleFormat    []uint16
	SamplesPerPixel uint16
	Compression     uint16
	Photometric     uint16
	PlanarConfig    uint16
	Predictor       uint16
	TileOffsets     []uint64
	TileByteCounts  []uint64
	StripOffsets    []uint64
	StripByteCounts []uint64
	JPEGTables      []byte
	ModelTiepoint   []float64
	ModelPixelScale []float64
	GeoKeys         []uint16
	GeoDoubleParams []float64
	GeoAsciiParams  string
	NoData          string
}

// Tiled reports whether the image is stored in tiles rather than strips.
func (ifd *IFD) Tiled() bool {
	return ifd.TileWidth > 0 && ifd.TileHeight > 0
}

// blockSize returns the pixel size of one storage block (tile or strip).
func (ifd *IFD) blockSize() (w, h int) {
	if ifd.Tiled() {
		return int(ifd.TileWidth), int(ifd.TileHeight)
	}
	rows := ifd.RowsPerStrip
	if rows == 0 || rows > ifd.Height {
		rows = ifd.Height
	}
	return int(ifd.Width), int(rows)
}

// BlocksAcross returns the number of blocks in the horizontal direction.
func (ifd *IFD) BlocksAcross() int {
	w, _ := ifd.blockSize()
	return (int(ifd.Width) + w - 1) / w
}

// BlocksDown returns the number of blocks in the vertical direction.
func (ifd *IFD) BlocksDown() int {
	_, h := ifd.blockSize()
	return (int(ifd.Height) + h - 1) / h
}

// blocks returns the offsets and byte counts of the storage blocks.
func (ifd *IFD) blocks() (offsets, counts []uint64) {
	if ifd.Tiled() {
		return ifd.TileOffsets, ifd.TileByteCounts
	}
	return ifd.StripOffsets, ifd.StripByteCounts
}

// bitsPerSample returns the sample depth, requiring all samples to share it.
func (ifd *IFD) bitsPerSample() (int, error) {
	if len(ifd.BitsPerSample) == 0 {
		return 1, nil
	}
	bits := ifd.BitsPerSample[0]
	for _, b := range ifd.BitsPerSample[1:] {
		if b != bits {
			return 0, fmt.Errorf("mixed bits per sample %v not supported", ifd.BitsPerSample)
		}
	}
	return int(bits), nil
}

// sampleFormat returns the sample format, defaulting to unsigned integer.
func (ifd *IFD) sampleFormat() uint16 {
	if len(ifd.SampleFormat) == 0 {
		return sampleFormatUint
	}
	return ifd.SampleFormat[0]
}

// maxIFDs bounds the IFD chain so that a cyclic next-pointer cannot loop.
const maxIFDs = 1024

var errTruncated = errors.New("truncated TIFF structure")

// tiffFile walks the directory structure of a TIFF held in memory.
type tiffFile struct {
	data []byte
	bo   binary.ByteOrder
	big  bool // BigTIFF: 8-byte offsets and counts
}

// field is one directory entry with its value bytes resolved.
type field struct {
	tag   uint16
	typ   uint16
	count uint64
	raw   []byte
}

// parseTIFF reads the header and every IFD of a classic or BigTIFF file.
func parseTIFF(data []byte) ([]IFD, binary.ByteOrder, error) {
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("reading TIFF header: %w", errTruncated)
	}
	t := &tiffFile{data: data}
	switch string(data[:2]) {
	case "II":
		t.bo = binary.LittleEndian
	case "MM":
		t.bo = binary.BigEndian
	default:
		return nil, nil, fmt.Errorf("invalid TIFF byte order: %x", data[:2])
	}

	var next uint64
	switch magic := t.bo.Uint16(data[2:4]); magic {
	case 42:
		next = uint64(t.bo.Uint32(data[4:8]))
	case 43:
		t.big = true
		hdr, err := t.span(8, 8)
		if err != nil {
			return nil, nil, fmt.Errorf("reading BigTIFF header: %w", err)
		}
		next = t.bo.Uint64(hdr)
	default:
		return nil, nil, fmt.Errorf("invalid TIFF magic: %d", magic)
	}

	var ifds []IFD
	for next != 0 {
		if len(ifds) == maxIFDs {
			return nil, nil, fmt.Errorf("more than %d IFDs", maxIFDs)
		}
		ifd, n, err := t.readIFD(next)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing IFD at offset %d: %w", next, err)
		}
		ifds = append(ifds, ifd)
		next = n
	}
	return ifds, t.bo, nil
}

// span returns n bytes at off, or errTruncated.
func (t *tiffFile) span(off, n uint64) ([]byte, error) {
	end := off + n
	if end < off || end > uint64(len(t.data)) {
		return nil, errTruncated
	}
	return t.data[off:end], nil
}

func (t *tiffFile) readIFD(off uint64) (IFD, uint64, error) {
	countSize, entrySize, offSize := uint64(2), uint64(12), uint64(4)
	if t.big {
		countSize, entrySize, offSize = 8, 20, 8
	}

	b, err := t.span(off, countSize)
	if err != nil {
		return IFD{}, 0, err
	}
	n := t.uint(b)
	if n > uint64(len(t.data))/entrySize {
		return IFD{}, 0, errTruncated
	}
	entries, err := t.span(off+countSize, n*entrySize)
	if err != nil {
		return IFD{}, 0, err
	}
	b, err = t.span(off+countSize+n*entrySize, offSize)
	if err != nil {
		return IFD{}, 0, err
	}
	next := t.uint(b)

	fields := make([]field, 0, n)
	for i := range n {
		f, err := t.readField(entries[i*entrySize : (i+1)*entrySize])
		if err != nil {
			return IFD{}, 0, err
		}
		fields = append(fields, f)
	}
	ifd, err := buildIFD(fields, t.bo)
	return ifd, next, err
}

// uint decodes a 2, 4 or 8 byte unsigned value.
func (t *tiffFile) uint(b []byte) uint64 {
	switch len(b) {
	case 2:
		return uint64(t.bo.Uint16(b))
	case 4:
		return uint64(t.bo.Uint32(b))
	default:
		return t.bo.Uint64(b)
	}
}

func (t *tiffFile) readField(e []byte) (field, error) {
	f := field{tag: t.bo.Uint16(e[0:2]), typ: t.bo.Uint16(e[2:4])}
	var inline []byte
	if t.big {
		f.count, inline = t.bo.Uint64(e[4:12]), e[12:20]
	} else {
		f.count, inline = uint64(t.bo.Uint32(e[4:8])), e[8:12]
	}

	size := typeSize(f.typ)
	if size == 0 {
		return field{tag: f.tag}, nil // unknown type, ignored
	}
	total := f.count * size
	if f.count != 0 && total/f.count != size {
		return field{}, fmt.Errorf("tag %d: count overflow", f.tag)
	}
	if total <= uint64(len(inline)) {
		f.raw = inline[:total]
		return f, nil
	}
	raw, err := t.span(t.uint(inline), total)
	if err != nil {
		return field{}, fmt.Errorf("tag %d: %w", f.tag, err)
	}
	f.raw = raw
	return f, nil
}

// typeSize returns the byte size of one value of a TIFF field type, or 0 for
// unknown types.
func typeSize(typ uint16) uint64 {
	switch typ {
	case dtByte, dtASCII, dtSByte, dtUndef:
		return 1
	case dtShort, dtSShort:
		return 2
	case dtLong, dtSLong, dtFloat, dtIFD:
		return 4
	case dtRational, dtSRational, dtDouble, dtLong8, dtSLong8, dtIFD8:
		return 8
	default:
		return 0
	}
}

// uints returns the values of an unsigned integer field.
func (f field) uints(bo binary.ByteOrder) ([]uint64, error) {
	size := typeSize(f.typ)
	out := make([]uint64, f.count)
	for i := range out {
		b := f.raw[uint64(i)*size:]
		switch f.typ {
		case dtByte, dtUndef:
			out[i] = uint64(b[0])
		case dtShort:
			out[i] = uint64(bo.Uint16(b))
		case dtLong, dtIFD:
			out[i] = uint64(bo.Uint32(b))
		case dtLong8, dtIFD8:
			out[i] = bo.Uint64(b)
		default:
			return nil, fmt.Errorf("tag %d: type %d is not an unsigned integer", f.tag, f.typ)
		}
	}
	return out, nil
}

// floats returns the values of a floating point or integer field.
func (f field) floats(bo binary.ByteOrder) ([]float64, error) {
	switch f.typ {
	case dtDouble, dtFloat:
	default:
		u, err := f.uints(bo)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(u))
		for i, v := range u {
			out[i] = float64(v)
		}
		return out, nil
	}
	out := make([]float64, f.count)
	for i := range out {
		if f.typ == dtDouble {
			out[i] = math.Float64frombits(bo.Uint64(f.raw[i*8:]))
		} else {
			out[i] = float64(math.Float32frombits(bo.Uint32(f.raw[i*4:])))
		}
	}
	return out, nil
}

// text returns an ASCII field without its NUL terminator.
func (f field) text() string {
	return strings.TrimRight(string(f.raw), "\x00 ")
}

func buildIFD(fields []field, bo binary.ByteOrder) (IFD, error) {
	ifd := IFD{
		SamplesPerPixel: 1,
		PlanarConfig:    1,
		Compression:     compressionNone,
		Predictor:       1,
	}

	for _, f := range fields {
		if typeSize(f.typ) == 0 {
			continue
		}
		var err error
		switch f.tag {
		case tagJPEGTables:
			ifd.JPEGTables = f.raw
		case tagGeoAsciiParamsTag:
			ifd.GeoAsciiParams = f.text()
		case tagGDALNoData:
			ifd.NoData = f.text()
		case tagModelTiepointTag:
			ifd.ModelTiepoint, err = f.floats(bo)
		case tagModelPixelScaleTag:
			ifd.ModelPixelScale, err = f.floats(bo)
		case tagGeoDoubleParamsTag:
			ifd.GeoDoubleParams, err = f.floats(bo)
		default:
			err = setUintTag(&ifd, f, bo)
		}
		if err != nil {
			return IFD{}, err
		}
	}
	return ifd, nil
}

// setUintTag stores the integer-valued tags the reader uses.
func setUintTag(ifd *IFD, f field, bo binary.ByteOrder) error {
	switch f.tag {
	case tagImageWidth, tagImageLength, tagTileWidth, tagTileLength, tagRowsPerStrip,
		tagSamplesPerPixel, tagCompression, tagPhotometric, tagPlanarConfig, tagPredictor,
		tagBitsPerSample, tagSampleFormat, tagGeoKeyDirectoryTag,
		tagStripOffsets, tagStripByteCounts, tagTileOffsets, tagTileByteCounts:
	default:
		return nil
	}

	v, err := f.uints(bo)
	if err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	u16 := func() []uint16 {
		out := make([]uint16, len(v))
		for i, x := range v {
			out[i] = uint16(x)
		}
		return out
	}

	switch f.tag {
	case tagImageWidth:
		ifd.Width = uint32(v[0])
	case tagImageLength:
		ifd.Height = uint32(v[0])
	case tagTileWidth:
		ifd.TileWidth = uint32(v[0])
	case tagTileLength:
		ifd.TileHeight = uint32(v[0])
	case tagRowsPerStrip:
		ifd.RowsPerStrip = uint32(min(v[0], math.MaxUint32))
	case tagSamplesPerPixel:
		ifd.SamplesPerPixel = uint16(v[0])
	case tagCompression:
		ifd.Compression = uint16(v[0])
	case tagPhotometric:
		ifd.Photometric = uint16(v[0])
	case tagPlanarConfig:
		ifd.PlanarConfig = uint16(v[0])
	case tagPredictor:
		ifd.Predictor = uint16(v[0])
	case tagBitsPerSample:
		ifd.BitsPerSample = u16()
	case tagSampleFormat:
		ifd.SampleFormat = u16()
	case tagGeoKeyDirectoryTag:
		ifd.GeoKeys = u16()
	case tagStripOffsets:
		ifd.StripOffsets = v
	case tagStripByteCounts:
		ifd.StripByteCounts = v
	case tagTileOffsets:
		ifd.TileOffsets = v
	case tagTileByteCounts:
		ifd.TileByteCounts = v
	}
	return nil
}
