// Package memory is a word-addressed arena standing in for the managed heap.
//
// Addresses are byte addresses starting at a configured base; every word slot
// is WordBytes wide and aligned, so the low bits of a closure address are
// always zero and free for tagging.
package memory

import (
	"errors"
	"fmt"
)

// Addr is a byte address inside an arena.
type Addr uint64

// Word is the content of one heap word. On a 4-byte configuration only the low
// 32 bits are significant.
type Word uint64

var (
	ErrOutOfMemory = errors.New("arena exhausted")
	ErrOutOfRange  = errors.New("address outside arena")
	ErrUnaligned   = errors.New("unaligned word address")
)

func (a Addr) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// RoundUpBytesToWords is the number of words needed to hold n bytes.
func RoundUpBytesToWords(n, wordBytes int) int {
	return (n + wordBytes - 1) / wordBytes
}
