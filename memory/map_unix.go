//go:build unix

package memory

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mapWords backs the arena with an anonymous private mapping so the simulated
// heap lives outside the Go heap.
func mapWords(n int) ([]uint64, func() error, error) {
	if n <= 0 {
		return nil, nil, ErrOutOfRange
	}
	mem, err := unix.Mmap(
		-1, 0, n*8,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return nil, nil, err
	}
	words := unsafe.Slice((*uint64)(unsafe.Pointer(unsafe.SliceData(mem))), n)
	return words, func() error {
		return unix.Munmap(mem)
	}, nil
}
