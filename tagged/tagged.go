// Package tagged hides the low-bit encodings layered on heap addresses:
// constructor tags on closure references and the forwarding mark left in an
// evacuated closure's header.
package tagged

import (
	"fmt"

	"github.com/reusee/heaplayout/heapconfigs"
	"github.com/reusee/heaplayout/memory"
)

// Ref is a closure reference whose low bits may carry a tag. A Ref is never
// dereferenced directly; Untag yields the address.
type Ref uint64

// Plain wraps an untagged address.
func Plain(p memory.Addr) Ref {
	return Ref(p)
}

func (r Ref) String() string {
	return fmt.Sprintf("%#x", uint64(r))
}

// Scheme is the tag layout fixed by the word alignment of a configuration.
type Scheme struct {
	Bits uint
	// Checked enables precondition checks on Tag.
	Checked bool
}

func NewScheme(config heapconfigs.Config) Scheme {
	return Scheme{
		Bits:    uint(config.TagBits()),
		Checked: config.Debug,
	}
}

func (s Scheme) Mask() uint64 {
	return 1<<s.Bits - 1
}

// Tag ORs t into the low bits of p. p must be aligned and t must fit the mask.
func (s Scheme) Tag(p memory.Addr, t uint) Ref {
	if s.Checked {
		if uint64(p)&s.Mask() != 0 {
			panic(fmt.Errorf("tag %v: %w", p, memory.ErrUnaligned))
		}
		if uint64(t) > s.Mask() {
			panic(fmt.Errorf("tag %d does not fit in %d bits", t, s.Bits))
		}
	}
	return Ref(uint64(p) | uint64(t))
}

func (s Scheme) Untag(r Ref) memory.Addr {
	return memory.Addr(uint64(r) &^ s.Mask())
}

func (s Scheme) TagOf(r Ref) uint {
	return uint(uint64(r) & s.Mask())
}

// Retag replaces the tag of r.
func (s Scheme) Retag(r Ref, t uint) Ref {
	return s.Tag(s.Untag(r), t)
}

// ConstrTag is the pointer tag of an evaluated constructor with the given
// zero-based index in a family of familySize constructors. Families too large
// for the tag width share tag 1, meaning evaluated.
func (s Scheme) ConstrTag(index, familySize uint) uint {
	if uint64(familySize) <= s.Mask() {
		return index + 1
	}
	return 1
}
