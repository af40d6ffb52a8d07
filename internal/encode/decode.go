package encode

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/gen2brain/webp"
	"golang.org/x/image/tiff"
)

var decoders = map[string]func(io.Reader) (image.Image, error){
	"png":  png.Decode,
	"jpeg": jpeg.Decode,
	"jpg":  jpeg.Decode,
	"webp": webp.Decode,
	"tiff": tiff.Decode,
	"tif":  tiff.Decode,
}

// DecodeImage reads back a frame written by one of the encoders. It is
// used to verify output, not to load inputs.
func DecodeImage(data []byte, format string) (image.Image, error) {
	dec, ok := decoders[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("unsupported decode format: %q", format)
	}
	return dec(bytes.NewReader(data))
}
