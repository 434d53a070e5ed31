package closures

import (
	"iter"

	"github.com/reusee/heaplayout/memory"
)

// Cards groups the elements of a pointer array into cards of 1<<Bits
// elements, each with one dirty byte.
type Cards struct {
	Bits uint
}

func (c Cards) Capacity() int {
	return 1 << c.Bits
}

// CountFor is the number of cards covering n elements.
func (c Cards) CountFor(n int) int {
	return (n + c.Capacity() - 1) >> c.Bits
}

// Of is the card holding element i.
func (c Cards) Of(i int) int {
	return i >> c.Bits
}

// Range is the half-open element range of card i in an array of n elements.
func (c Cards) Range(i, n int) (lo, hi int) {
	lo = i << c.Bits
	hi = min(lo+c.Capacity(), n)
	return
}

// CardTableWords is the number of words holding the card table of an array
// of n elements.
func (h *Heap) CardTableWords(n int) int {
	return memory.RoundUpBytesToWords(h.Cards.CountFor(n), h.wordBytes)
}

func (h *Heap) pointerArray(array memory.Addr) int {
	info := h.header(array)
	if kind := h.tables.Kind(info); !isPointerArray(kind) {
		fatal(ErrUnknownKind, array, kind, "not a pointer array")
	}
	return int(h.field(array, h.hdr))
}

// Element is the address of element i of a pointer array.
func (h *Heap) Element(array memory.Addr, i int) memory.Addr {
	return h.word(array, h.hdr+mutArrFields+i)
}

// CardAddress is the address of the dirty byte of card i, which lies right
// after the last element slot.
func (h *Heap) CardAddress(array memory.Addr, i int) memory.Addr {
	n := h.pointerArray(array)
	return h.word(array, h.hdr+mutArrFields+n) + memory.Addr(i)
}

// MarkCard records a write to element i.
func (h *Heap) MarkCard(array memory.Addr, i int) {
	h.arena.StoreByte(h.CardAddress(array, h.Cards.Of(i)), 1)
}

func (h *Heap) CardDirty(array memory.Addr, i int) bool {
	return h.arena.LoadByte(h.CardAddress(array, i)) != 0
}

// ClearCards zeroes the whole card table of array.
func (h *Heap) ClearCards(array memory.Addr) {
	n := h.pointerArray(array)
	start := h.word(array, h.hdr+mutArrFields+n)
	h.arena.Zero(start, h.CardTableWords(n))
}

// DirtyCards yields the indices of the dirty cards of array in order.
func (h *Heap) DirtyCards(array memory.Addr) iter.Seq[int] {
	return func(yield func(int) bool) {
		n := h.pointerArray(array)
		start := h.word(array, h.hdr+mutArrFields+n)
		for i := range h.Cards.CountFor(n) {
			if h.arena.LoadByte(start+memory.Addr(i)) == 0 {
				continue
			}
			if !yield(i) {
				return
			}
		}
	}
}
