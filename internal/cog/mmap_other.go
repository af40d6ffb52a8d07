//go:build !unix

package cog

import (
	"io"
	"os"
)

// mmapFile reads the whole file into memory on platforms without mmap.
func mmapFile(f *os.File, size int) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, err
	}
	return data, nil
}

// munmapFile is a no-op on non-Unix platforms.
func munmapFile(data []byte) error {
	return nil
}
