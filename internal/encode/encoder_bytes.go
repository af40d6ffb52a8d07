package encode

import (
	"bytes"
	"io"
)

// toBytes runs an encoder that writes to an io.Writer and returns the bytes.
func toBytes(encode func(w io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
