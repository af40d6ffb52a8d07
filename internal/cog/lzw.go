package cog

import (
	"errors"
	"fmt"
)

// TIFF LZW differs from the GIF flavour in compress/lzw: codes are packed
// MSB first and the code width grows one code early ("early change"), so
// compress/lzw rejects most GDAL-written strips.

const (
	lzwClearCode = 256
	lzwEOICode   = 257
	lzwFirstCode = 258
	lzwMaxCodes  = 1 << 12
)

var errLZWCode = errors.New("lzw: invalid code")

// msbReader reads variable-width codes MSB first.
type msbReader struct {
	src  []byte
	pos  int
	acc  uint32
	bits uint
}

// next returns the next width-bit code and false at the end of the input.
func (r *msbReader) next(width uint) (int, bool) {
	for r.bits < width {
		if r.pos >= len(r.src) {
			return 0, false
		}
		r.acc = r.acc<<8 | uint32(r.src[r.pos])
		r.pos++
		r.bits += 8
	}
	r.bits -= width
	return int(r.acc>>r.bits) & (1<<width - 1), true
}

// decompressTIFFLZW decodes a TIFF LZW strip or tile. sizeHint presizes the
// output. A stream that ends without an EOI code returns what was decoded.
func decompressTIFFLZW(data []byte, sizeHint int) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	// Entry c is the string of entry prefix[c] followed by suffix[c].
	var (
		prefix [lzwMaxCodes]uint16
		suffix [lzwMaxCodes]byte
		length [lzwMaxCodes]uint16
	)
	for c := range 256 {
		suffix[c] = byte(c)
		length[c] = 1
	}

	// appendCode appends the string of code c to out.
	appendCode := func(out []byte, c int) []byte {
		n := int(length[c])
		start := len(out)
		out = append(out, make([]byte, n)...)
		for i := start + n - 1; i >= start; i-- {
			out[i] = suffix[c]
			c = int(prefix[c])
		}
		return out
	}

	r := &msbReader{src: data}
	out := make([]byte, 0, max(sizeHint, 0))
	width := uint(9)
	next := lzwFirstCode
	prev := -1

	code, ok := r.next(width)
	if !ok || code != lzwClearCode {
		return nil, fmt.Errorf("lzw: stream does not start with a clear code")
	}

	for {
		code, ok := r.next(width)
		if !ok || code == lzwEOICode {
			return out, nil
		}
		if code == lzwClearCode {
			width, next, prev = 9, lzwFirstCode, -1
			continue
		}

		if prev < 0 {
			if code > 255 {
				return nil, errLZWCode
			}
			out = append(out, byte(code))
			prev = code
			continue
		}

		start := len(out)
		switch {
		case code < next:
			out = appendCode(out, code)
		case code == next:
			// The code being defined: prev's string plus its own first byte.
			out = appendCode(out, prev)
			out = append(out, out[start])
		default:
			return nil, errLZWCode
		}

		if next < lzwMaxCodes {
			prefix[next] = uint16(prev)
			suffix[next] = out[start]
			length[next] = length[prev] + 1
			next++
		}
		if next+1 >= 1<<width && width < 12 {
			width++
		}
		prev = code
	}
}
