package cog

import (
	"encoding/binary"
	"math"
	"sort"
	"testing"
)

// testTag is one IFD entry for buildTIFF. val is []uint16, []uint32,
// []float64 or string.
type testTag struct {
	id  uint16
	val any
}

// buildTIFF assembles a little-endian classic TIFF with one IFD. The block
// offsets and byte counts are filled in from blocks.
func buildTIFF(t *testing.T, tags []testTag, offsetsTag, countsTag uint16, blocks [][]byte) []byte {
	t.Helper()
	bo := binary.LittleEndian
	buf := []byte{'I', 'I', 42, 0, 0, 0, 0, 0}

	var offs, cnts []uint32
	for _, b := range blocks {
		offs = append(offs, uint32(len(buf)))
		cnts = append(cnts, uint32(len(b)))
		buf = append(buf, b...)
	}
	tags = append(tags, testTag{offsetsTag, offs}, testTag{countsTag, cnts})
	sort.Slice(tags, func(i, j int) bool { return tags[i].id < tags[j].id })

	type entry struct {
		id, typ uint16
		count   uint32
		data    []byte
	}
	entries := make([]entry, len(tags))
	for i, tg := range tags {
		e := entry{id: tg.id}
		switch v := tg.val.(type) {
		case []uint16:
			e.typ, e.count = dtShort, uint32(len(v))
			for _, x := range v {
				e.data = bo.AppendUint16(e.data, x)
			}
		case []uint32:
			e.typ, e.count = dtLong, uint32(len(v))
			for _, x := range v {
				e.data = bo.AppendUint32(e.data, x)
			}
		case []float64:
			e.typ, e.count = dtDouble, uint32(len(v))
			for _, x := range v {
				e.data = bo.AppendUint64(e.data, math.Float64bits(x))
			}
		case string:
			e.data = append([]byte(v), 0)
			e.typ, e.count = dtASCII, uint32(len(e.data))
		default:
			t.Fatalf("unsupported tag value %T", v)
		}
		entries[i] = e
	}

	valueOff := make([]uint32, len(entries))
	for i, e := range entries {
		if len(e.data) > 4 {
			if len(buf)%2 == 1 {
				buf = append(buf, 0)
			}
			valueOff[i] = uint32(len(buf))
			buf = append(buf, e.data...)
		}
	}

	if len(buf)%2 == 1 {
		buf = append(buf, 0)
	}
	bo.PutUint32(buf[4:8], uint32(len(buf)))
	buf = bo.AppendUint16(buf, uint16(len(entries)))
	for i, e := range entries {
		buf = bo.AppendUint16(buf, e.id)
		buf = bo.AppendUint16(buf, e.typ)
		buf = bo.AppendUint32(buf, e.count)
		if len(e.data) > 4 {
			buf = bo.AppendUint32(buf, valueOff[i])
		} else {
			var inline [4]byte
			copy(inline[:], e.data)
			buf = append(buf, inline[:]...)
		}
	}
	return bo.AppendUint32(buf, 0)
}

// stripTags returns the tags of a single-band strip image.
func stripTags(w, h, rowsPerStrip, bits, format int) []testTag {
	return []testTag{
		{tagImageWidth, []uint32{uint32(w)}},
		{tagImageLength, []uint32{uint32(h)}},
		{tagBitsPerSample, []uint16{uint16(bits)}},
		{tagCompression, []uint16{compressionNone}},
		{tagPhotometric, []uint16{1}},
		{tagSamplesPerPixel, []uint16{1}},
		{tagRowsPerStrip, []uint32{uint32(rowsPerStrip)}},
		{tagSampleFormat, []uint16{uint16(format)}},
	}
}

// setTag replaces or appends a tag.
func setTag(tags []testTag, id uint16, val any) []testTag {
	for i := range tags {
		if tags[i].id == id {
			tags[i].val = val
			return tags
		}
	}
	return append(tags, testTag{id, val})
}

func float32LE(vals ...float32) []byte {
	var b []byte
	for _, v := range vals {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

func float64LE(vals ...float64) []byte {
	var b []byte
	for _, v := range vals {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
	}
	return b
}

func uint16LE(vals ...uint16) []byte {
	var b []byte
	for _, v := range vals {
		b = binary.LittleEndian.AppendUint16(b, v)
	}
	return b
}

// packLZW packs 9-bit codes MSB first.
func packLZW(codes ...int) []byte {
	var out []byte
	var acc uint32
	n := 0
	for _, c := range codes {
		acc = acc<<9 | uint32(c)
		n += 9
		for n >= 8 {
			out = append(out, byte(acc>>(n-8)))
			n -= 8
		}
	}
	if n > 0 {
		out = append(out, byte(acc<<(8-n)))
	}
	return out
}
