package cog

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"

	"github.com/klauspost/compress/zlib"
)

// decompress returns the raw sample bytes of one block. Uncompressed blocks
// are returned without copying. sizeHint is the expected decoded size.
func decompress(compression uint16, data []byte, sizeHint int) ([]byte, error) {
	switch compression {
	case compressionNone:
		return data, nil
	case compressionLZW:
		out, err := decompressTIFFLZW(data, sizeHint)
		if err != nil {
			return nil, fmt.Errorf("LZW: %w", err)
		}
		return out, nil
	case compressionDeflate, compressionDeflateAdobe:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %d", compression)
	}
}

// decodeJPEGBlock decodes a JPEG-compressed block, prepending the shared
// JPEG tables when present.
func decodeJPEGBlock(tables, data []byte) (image.Image, error) {
	jpegData := data
	if len(tables) > 0 {
		// The tables carry the quantization/Huffman header. Strip the
		// trailing EOI (0xFFD9) from tables and the leading SOI (0xFFD8)
		// from the block.
		if len(tables) >= 2 && tables[len(tables)-2] == 0xFF && tables[len(tables)-1] == 0xD9 {
			tables = tables[:len(tables)-2]
		}
		block := data
		if len(block) >= 2 && block[0] == 0xFF && block[1] == 0xD8 {
			block = block[2:]
		}
		jpegData = make([]byte, len(tables)+len(block))
		copy(jpegData, tables)
		copy(jpegData[len(tables):], block)
	}

	img, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return nil, fmt.Errorf("decoding JPEG block: %w", err)
	}
	return img, nil
}

// copyJPEGSamples writes the visible part of a decoded JPEG block into the
// destination bands. Single-sample images are read as gray, others as RGB.
func copyJPEGSamples(img image.Image, spp, imgW, x0, y0, cols, rows int, bands [][]float64) {
	b := img.Bounds()
	cols = min(cols, b.Dx())
	rows = min(rows, b.Dy())
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			dst := (y0+y)*imgW + x0 + x
			c := img.At(b.Min.X+x, b.Min.Y+y)
			if spp == 1 {
				bands[0][dst] = float64(color.GrayModel.Convert(c).(color.Gray).Y)
				continue
			}
			r, g, bl, _ := c.RGBA()
			rgb := [3]float64{float64(r >> 8), float64(g >> 8), float64(bl >> 8)}
			for s := 0; s < min(spp, 3); s++ {
				bands[s][dst] = rgb[s]
			}
		}
	}
}
