//go:build unix

package cog

import (
	"os"
	"syscall"
)

// mmapFile memory-maps a file read-only. The file can be closed after mapping.
func mmapFile(f *os.File, size int) ([]byte, error) {
	return syscall.Mmap(int(f.Fd()), 0, size, syscall.PROT_READ, syscall.MAP_PRIVATE)
}

// munmapFile releases a memory mapping created by mmapFile.
func munmapFile(data []byte) error {
	return syscall.Munmap(data)
}
