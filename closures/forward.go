package closures

import (
	"fmt"

	"github.com/reusee/heaplayout/memory"
	"github.com/reusee/heaplayout/tagged"
)

// Forward installs a forwarding pointer to to in the header of c. When
// several threads race, exactly one wins; every caller gets the winning
// destination and won reports whether it was this one.
func (h *Heap) Forward(c memory.Addr, to memory.Addr) (dest memory.Addr, won bool) {
	for {
		w := h.arena.LoadAtomic(c)
		if tagged.IsForwarding(w) {
			return tagged.ResolveForwarding(w), false
		}
		if h.arena.CompareAndSwap(c, w, tagged.MakeForwarding(to)) {
			return to, true
		}
	}
}

// Forwarded returns the forwarding destination of c, if any.
func (h *Heap) Forwarded(c memory.Addr) (memory.Addr, bool) {
	w := h.arena.LoadAtomic(c)
	if !tagged.IsForwarding(w) {
		return 0, false
	}
	return tagged.ResolveForwarding(w), true
}

// Evacuate copies the closure at c into dst and forwards c to the copy. If c
// is already forwarded the existing copy is returned. A thread that loses the
// forwarding race abandons its copy and returns the winner's.
func (h *Heap) Evacuate(c memory.Addr, dst *memory.Arena) (memory.Addr, error) {
	w := h.arena.LoadAtomic(c)
	if tagged.IsForwarding(w) {
		return tagged.ResolveForwarding(w), nil
	}
	size := h.footprint(c, memory.Addr(w))
	to, err := dst.Alloc(size)
	if err != nil {
		return 0, fmt.Errorf("evacuate %v: %w", c, err)
	}
	// the header may be forwarded under us, so only the payload is copied
	h.arena.CopyTo(dst, dst.Offset(to, 1), h.word(c, 1), size-1)
	dst.StoreAtomic(to, w)
	dest, _ := h.Forward(c, to)
	return dest, nil
}

// Follow resolves a reference through a forwarding header, keeping its tag.
// References to unforwarded closures and to outside the arena are returned
// unchanged.
func (h *Heap) Follow(r tagged.Ref) tagged.Ref {
	w, ok := h.arena.Peek(h.scheme.Untag(r))
	if !ok || !tagged.IsForwarding(w) {
		return r
	}
	return h.scheme.Tag(tagged.ResolveForwarding(w), h.scheme.TagOf(r))
}
