package heapconfigs

import (
	"errors"
	"fmt"
	"math/bits"
)

// Placement says where an info table sits relative to its entry code.
type Placement uint8

const (
	// PlacementEnd puts the table directly before the code; an info pointer
	// addresses the end of the table, which is also the code entry.
	PlacementEnd Placement = iota
	// PlacementBeginning puts the table directly after the code; an info
	// pointer addresses the start of the table.
	PlacementBeginning
)

func (p Placement) String() string {
	switch p {
	case PlacementEnd:
		return "end"
	case PlacementBeginning:
		return "beginning"
	}
	return fmt.Sprintf("Placement(%d)", p)
}

func ParsePlacement(str string) (Placement, error) {
	switch str {
	case "end", "tables-next-to-code":
		return PlacementEnd, nil
	case "beginning":
		return PlacementBeginning, nil
	}
	return 0, fmt.Errorf("%w: placement %q", ErrBadConfig, str)
}

var ErrBadConfig = errors.New("bad heap config")

// Config is resolved once at startup and handed to every component.
type Config struct {
	WordBytes int
	Placement Placement
	Profiling bool
	Debug     bool
	Threaded  bool
	CardBits  int
	HeapBase  uint64
	HeapWords int
}

func Default() Config {
	return Config{
		WordBytes: 8,
		Placement: PlacementEnd,
		CardBits:  7,
		HeapBase:  0x100000,
		HeapWords: 1 << 20,
	}
}

func (c Config) Validate() error {
	if c.WordBytes != 4 && c.WordBytes != 8 {
		return fmt.Errorf("%w: word size %d", ErrBadConfig, c.WordBytes)
	}
	if c.Placement != PlacementEnd && c.Placement != PlacementBeginning {
		return fmt.Errorf("%w: %v", ErrBadConfig, c.Placement)
	}
	if c.CardBits < 1 || c.CardBits > 16 {
		return fmt.Errorf("%w: card bits %d", ErrBadConfig, c.CardBits)
	}
	if c.HeapBase == 0 || c.HeapBase%uint64(c.WordBytes) != 0 {
		return fmt.Errorf("%w: heap base %#x", ErrBadConfig, c.HeapBase)
	}
	if c.HeapWords <= 0 {
		return fmt.Errorf("%w: heap words %d", ErrBadConfig, c.HeapWords)
	}
	if c.WordBytes == 4 && c.HeapBase+uint64(c.HeapWords)*4 > 1<<32 {
		return fmt.Errorf("%w: heap exceeds 32-bit address space", ErrBadConfig)
	}
	return nil
}

// TagBits is the number of low pointer bits freed by word alignment.
func (c Config) TagBits() int {
	return bits.TrailingZeros(uint(c.WordBytes))
}

func (c Config) TagMask() uint64 {
	return 1<<c.TagBits() - 1
}

func (c Config) WordBits() int {
	return c.WordBytes * 8
}

// HeaderWords is the size of a closure header: the info pointer, plus the
// cost-centre and lifetime words when profiling.
func (c Config) HeaderWords() int {
	if c.Profiling {
		return 3
	}
	return 1
}

// ThunkHeaderWords adds the padding word thunks reserve so an update never
// overlaps their payload.
func (c Config) ThunkHeaderWords() int {
	return c.HeaderWords() + 1
}

// BitmapSizeBits is the width of the size field in a small bitmap word.
func (c Config) BitmapSizeBits() int {
	if c.WordBytes == 4 {
		return 5
	}
	return 6
}

// ZeroSlop reports whether slop must be zeroed when a closure is overwritten.
// Zeroing races with concurrent readers, so the threaded runtime only does it
// for profiling, which is restricted to a single capability.
func (c Config) ZeroSlop() bool {
	return c.Profiling || (c.Debug && !c.Threaded)
}
