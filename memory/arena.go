package memory

import (
	"fmt"
	"sync/atomic"
)

type Arena struct {
	base      Addr
	wordBytes int
	mask      uint64
	words     []uint64
	top       atomic.Int64
	release   func() error
}

func NewArena(base Addr, wordBytes int, nWords int) (*Arena, error) {
	if wordBytes != 4 && wordBytes != 8 {
		return nil, fmt.Errorf("word size %d: %w", wordBytes, ErrUnaligned)
	}
	if base == 0 || uint64(base)%uint64(wordBytes) != 0 {
		return nil, fmt.Errorf("base %v: %w", base, ErrUnaligned)
	}
	words, release, err := mapWords(nWords)
	if err != nil {
		return nil, fmt.Errorf("map arena: %w", err)
	}
	mask := ^uint64(0)
	if wordBytes == 4 {
		mask = 1<<32 - 1
	}
	return &Arena{
		base:      base,
		wordBytes: wordBytes,
		mask:      mask,
		words:     words,
		release:   release,
	}, nil
}

func (a *Arena) Close() error {
	if a.release == nil {
		return nil
	}
	release := a.release
	a.release = nil
	a.words = nil
	return release()
}

func (a *Arena) Base() Addr {
	return a.base
}

// Limit is the first address past the arena.
func (a *Arena) Limit() Addr {
	return a.base + Addr(len(a.words)*a.wordBytes)
}

// Top is the first unallocated address.
func (a *Arena) Top() Addr {
	return a.base + Addr(int(a.top.Load())*a.wordBytes)
}

func (a *Arena) WordBytes() int {
	return a.wordBytes
}

// Offset returns the address n words after addr.
func (a *Arena) Offset(addr Addr, n int) Addr {
	return addr + Addr(n*a.wordBytes)
}

// Alloc reserves n zeroed words and returns their first address.
func (a *Arena) Alloc(n int) (Addr, error) {
	if n <= 0 {
		return 0, fmt.Errorf("alloc %d words: %w", n, ErrOutOfRange)
	}
	for {
		top := a.top.Load()
		next := top + int64(n)
		if next > int64(len(a.words)) {
			return 0, fmt.Errorf("alloc %d words: %w", n, ErrOutOfMemory)
		}
		if a.top.CompareAndSwap(top, next) {
			return a.base + Addr(int(top)*a.wordBytes), nil
		}
	}
}

func (a *Arena) Contains(addr Addr) bool {
	return addr >= a.base && addr < a.Limit()
}

func (a *Arena) index(addr Addr) int {
	if !a.Contains(addr) {
		panic(fmt.Errorf("%v: %w", addr, ErrOutOfRange))
	}
	off := uint64(addr - a.base)
	if off%uint64(a.wordBytes) != 0 {
		panic(fmt.Errorf("%v: %w", addr, ErrUnaligned))
	}
	return int(off / uint64(a.wordBytes))
}

func (a *Arena) Load(addr Addr) Word {
	return Word(a.words[a.index(addr)])
}

func (a *Arena) Store(addr Addr, w Word) {
	a.words[a.index(addr)] = uint64(w) & a.mask
}

// Peek reads addr without panicking; ok is false for addresses outside the
// arena or not word-aligned.
func (a *Arena) Peek(addr Addr) (w Word, ok bool) {
	if !a.Contains(addr) || uint64(addr-a.base)%uint64(a.wordBytes) != 0 {
		return 0, false
	}
	return Word(atomic.LoadUint64(&a.words[(addr-a.base)/Addr(a.wordBytes)])), true
}

func (a *Arena) LoadAtomic(addr Addr) Word {
	return Word(atomic.LoadUint64(&a.words[a.index(addr)]))
}

func (a *Arena) StoreAtomic(addr Addr, w Word) {
	atomic.StoreUint64(&a.words[a.index(addr)], uint64(w)&a.mask)
}

// CompareAndSwap replaces the word at addr with next if it still holds old.
func (a *Arena) CompareAndSwap(addr Addr, old, next Word) bool {
	return atomic.CompareAndSwapUint64(
		&a.words[a.index(addr)],
		uint64(old)&a.mask,
		uint64(next)&a.mask,
	)
}

// byteSlot locates the word holding byte address addr and the bit shift of
// that byte inside it. Bytes are little-endian within a word.
func (a *Arena) byteSlot(addr Addr) (int, uint) {
	if !a.Contains(addr) {
		panic(fmt.Errorf("%v: %w", addr, ErrOutOfRange))
	}
	off := uint64(addr - a.base)
	return int(off / uint64(a.wordBytes)), uint(off%uint64(a.wordBytes)) * 8
}

func (a *Arena) LoadByte(addr Addr) byte {
	i, shift := a.byteSlot(addr)
	return byte(atomic.LoadUint64(&a.words[i]) >> shift)
}

// StoreByte updates one byte without disturbing its neighbours, even when
// other bytes of the same word are stored concurrently.
func (a *Arena) StoreByte(addr Addr, b byte) {
	i, shift := a.byteSlot(addr)
	for {
		old := atomic.LoadUint64(&a.words[i])
		next := old&^(0xff<<shift) | uint64(b)<<shift
		if atomic.CompareAndSwapUint64(&a.words[i], old, next) {
			return
		}
	}
}

// Zero clears n words starting at addr.
func (a *Arena) Zero(addr Addr, n int) {
	if n <= 0 {
		return
	}
	i := a.index(addr)
	a.index(a.Offset(addr, n-1))
	clear(a.words[i : i+n])
}

// CopyTo copies n words from src in a to dst in other.
func (a *Arena) CopyTo(other *Arena, dst Addr, src Addr, n int) {
	if n <= 0 {
		return
	}
	if other.wordBytes != a.wordBytes {
		panic(fmt.Errorf("copy between %d and %d byte words", a.wordBytes, other.wordBytes))
	}
	i := a.index(src)
	a.index(a.Offset(src, n-1))
	j := other.index(dst)
	other.index(other.Offset(dst, n-1))
	copy(other.words[j:j+n], a.words[i:i+n])
}
