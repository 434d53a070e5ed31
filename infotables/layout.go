package infotables

import (
	"fmt"

	"github.com/reusee/heaplayout/memory"
)

// Layout is the layout descriptor of an info table. Exactly one variant
// applies to a kind; see LayoutClassOf.
type Layout interface {
	isLayout()
}

// Payload counts the pointer fields, which come first, and the non-pointer
// fields of a closure.
type Payload struct {
	Ptrs  int
	NPtrs int
}

// Bitmap is a small frame liveness bitmap: bit i clear means word i is a pointer.
type Bitmap struct {
	Size int
	Bits uint64
}

// LargeBitmap is an out-of-line liveness bitmap for frames wider than a word.
type LargeBitmap struct {
	Size int
	Bits []memory.Word
}

// Selector is the field index a selector thunk extracts.
type Selector struct {
	Offset int
}

func (Payload) isLayout()     {}
func (Bitmap) isLayout()      {}
func (LargeBitmap) isLayout() {}
func (Selector) isLayout()    {}

type LayoutClass uint8

const (
	ClassPayload LayoutClass = iota
	ClassBitmap
	ClassLargeBitmap
	ClassSelector
)

func LayoutClassOf(k Kind) LayoutClass {
	switch {
	case k == KindThunkSelector:
		return ClassSelector
	case k == KindRetBig:
		return ClassLargeBitmap
	case k.IsFrame():
		return ClassBitmap
	}
	return ClassPayload
}

// layoutCodec packs the one-word encodings of the small layout variants.
type layoutCodec struct {
	halfBits       uint
	bitmapSizeBits uint
}

func (c layoutCodec) halfMask() memory.Word {
	return 1<<c.halfBits - 1
}

func (c layoutCodec) encodePayload(p Payload) memory.Word {
	if p.Ptrs < 0 || p.NPtrs < 0 ||
		memory.Word(p.Ptrs) > c.halfMask() || memory.Word(p.NPtrs) > c.halfMask() {
		panic(fmt.Errorf("payload %+v does not fit in %d-bit halves", p, c.halfBits))
	}
	return memory.Word(p.Ptrs) | memory.Word(p.NPtrs)<<c.halfBits
}

func (c layoutCodec) decodePayload(w memory.Word) Payload {
	return Payload{
		Ptrs:  int(w & c.halfMask()),
		NPtrs: int(w >> c.halfBits & c.halfMask()),
	}
}

func (c layoutCodec) encodeBitmap(b Bitmap) memory.Word {
	wordBits := 2 * c.halfBits
	if b.Size < 0 || b.Size > int(wordBits-c.bitmapSizeBits) {
		panic(fmt.Errorf("small bitmap of %d words", b.Size))
	}
	return memory.Word(b.Size) | memory.Word(b.Bits)<<c.bitmapSizeBits
}

func (c layoutCodec) decodeBitmap(w memory.Word) Bitmap {
	sizeMask := memory.Word(1)<<c.bitmapSizeBits - 1
	return Bitmap{
		Size: int(w & sizeMask),
		Bits: uint64(w >> c.bitmapSizeBits),
	}
}

func (c layoutCodec) bitmapSize(w memory.Word) int {
	return int(w & (memory.Word(1)<<c.bitmapSizeBits - 1))
}
