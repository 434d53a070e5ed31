package closures

import (
	"github.com/reusee/heaplayout/memory"
	"github.com/reusee/heaplayout/tagged"
)

// These predicates are heuristics for assertions and heap dumps. They never
// fault on a bad address, but a true result is not proof of a closure.

// LooksLikeInfoPointer reports whether w could be the header word of a
// closure: a forwarding word, or the address of a table with a valid kind.
func (h *Heap) LooksLikeInfoPointer(w memory.Word) bool {
	if w == 0 {
		return false
	}
	if tagged.IsForwarding(w) {
		return true
	}
	kind, ok := h.tables.PeekKind(memory.Addr(w))
	return ok && kind.Valid()
}

// LooksLikeClosurePointer reports whether r, once untagged, points at a word
// that looks like an info pointer.
func (h *Heap) LooksLikeClosurePointer(r tagged.Ref) bool {
	w, ok := h.arena.Peek(h.scheme.Untag(r))
	return ok && h.LooksLikeInfoPointer(w)
}
