package closures

import (
	"github.com/reusee/heaplayout/infotables"
	"github.com/reusee/heaplayout/memory"
	"github.com/reusee/heaplayout/tagged"
)

// InstallHeader writes the header of a freshly allocated closure. ccs is the
// cost centre stack and is ignored unless profiling.
func (h *Heap) InstallHeader(c memory.Addr, info memory.Addr, ccs memory.Word) {
	h.arena.Store(c, memory.Word(info))
	if h.profiling {
		h.arena.Store(h.word(c, 1), ccs)
		h.hook.RecordCreate(c)
	}
}

// InstallArrayHeader writes the header and byte count of a raw byte array.
func (h *Heap) InstallArrayHeader(c memory.Addr, info memory.Addr, ccs memory.Word, bytes int) {
	h.InstallHeader(c, info, ccs)
	h.arena.Store(h.word(c, h.hdr), memory.Word(bytes))
}

// InstallPointerArrayHeader writes the header and counts of a pointer array
// of n elements and clears its card table.
func (h *Heap) InstallPointerArrayHeader(c memory.Addr, info memory.Addr, ccs memory.Word, n int) {
	h.InstallHeader(c, info, ccs)
	h.arena.Store(h.word(c, h.hdr), memory.Word(n))
	h.arena.Store(h.word(c, h.hdr+1), memory.Word(n+h.CardTableWords(n)))
	h.ClearCards(c)
}

// Info is the info pointer of the closure at c.
func (h *Heap) Info(c memory.Addr) memory.Addr {
	return h.header(c)
}

// SetInfo replaces the info pointer of the closure at c. It publishes the
// new header atomically; payload words written before it are visible to any
// thread that observes the new header.
func (h *Heap) SetInfo(c memory.Addr, info memory.Addr) {
	h.arena.StoreAtomic(c, memory.Word(info))
}

func (h *Heap) Kind(c memory.Addr) infotables.Kind {
	return h.tables.Kind(h.header(c))
}

func (h *Heap) Table(c memory.Addr) infotables.InfoTable {
	return h.tables.Get(h.header(c))
}

// Entry is the code run when the closure at c is entered.
func (h *Heap) Entry(c memory.Addr) memory.Addr {
	return h.tables.Entry(h.header(c))
}

// ConstrTag is the zero-based constructor index of the constructor at c.
func (h *Heap) ConstrTag(c memory.Addr) uint {
	return h.tables.Tag(h.header(c))
}

// CCS is the cost centre stack of the closure at c, zero unless profiling.
func (h *Heap) CCS(c memory.Addr) memory.Word {
	if !h.profiling {
		return 0
	}
	return h.arena.Load(h.word(c, 1))
}

// Payload is the address of payload word i of a non-thunk closure.
func (h *Heap) Payload(c memory.Addr, i int) memory.Addr {
	return h.word(c, h.hdr+i)
}

// ThunkPayload is the address of payload word i of a thunk.
func (h *Heap) ThunkPayload(c memory.Addr, i int) memory.Addr {
	return h.word(c, h.thk+i)
}

// StaticLink is the address of the static link field of a static closure.
func (h *Heap) StaticLink(c memory.Addr) memory.Addr {
	info := h.header(c)
	switch kind := h.tables.Kind(info); kind {
	case infotables.KindFunStatic:
		return h.word(c, h.hdr)
	case infotables.KindThunkStatic, infotables.KindIndStatic:
		// a CAF keeps its static link when blackholed to IND_STATIC
		return h.word(c, h.hdr+1)
	case infotables.KindConstrStatic, infotables.KindConstrNoCAFStatic:
		p := h.tables.Payload(info)
		return h.word(c, h.hdr+p.Ptrs+p.NPtrs)
	default:
		fatal(ErrUnknownKind, c, kind, "not a static closure")
	}
	return 0
}

// Selectee is the closure a selector thunk selects from.
func (h *Heap) Selectee(c memory.Addr) tagged.Ref {
	return tagged.Ref(h.field(c, h.thk))
}

// Indirectee is the target of an indirection or blackhole.
func (h *Heap) Indirectee(c memory.Addr) tagged.Ref {
	return tagged.Ref(h.field(c, h.hdr))
}

// Application reads the arity, argument count and function of a PAP or AP.
func (h *Heap) Application(c memory.Addr) (arity, nArgs int, fun tagged.Ref) {
	at := h.hdr
	if h.Kind(c) == infotables.KindAP {
		at = h.thk
	}
	w := h.field(c, at)
	return h.lowHalf(w), h.highHalf(w), tagged.Ref(h.field(c, at+1))
}

// InstallApplication writes the fixed fields of a PAP or AP whose header is
// already installed.
func (h *Heap) InstallApplication(c memory.Addr, arity, nArgs int, fun tagged.Ref) {
	at := h.hdr
	if h.Kind(c) == infotables.KindAP {
		at = h.thk
	}
	h.arena.Store(h.word(c, at), memory.Word(arity)|memory.Word(nArgs)<<h.half)
	h.arena.Store(h.word(c, at+1), memory.Word(fun))
}

// InstallAPStack writes the saved stack size and function of an AP_STACK.
func (h *Heap) InstallAPStack(c memory.Addr, stackWords int, fun tagged.Ref) {
	h.arena.Store(h.word(c, h.thk), memory.Word(stackWords))
	h.arena.Store(h.word(c, h.thk+1), memory.Word(fun))
}

// InstallStack writes the size and stack pointer of a stack object.
func (h *Heap) InstallStack(c memory.Addr, stackWords int, dirty bool, sp memory.Addr) {
	w := memory.Word(stackWords)
	if dirty {
		w |= 1 << h.half
	}
	h.arena.Store(h.word(c, h.hdr), w)
	h.arena.Store(h.word(c, h.hdr+1), memory.Word(sp))
}

// StackBase is the address of the first stack word of a stack object.
func (h *Heap) StackBase(c memory.Addr) memory.Addr {
	return h.word(c, h.hdr+stackFields)
}

// StackPointer is the saved stack pointer of a stack object.
func (h *Heap) StackPointer(c memory.Addr) memory.Addr {
	return memory.Addr(h.field(c, h.hdr+1))
}

// InstallBCO writes the fields of a byte-code object, including its inline
// liveness bitmap, and returns its total size.
func (h *Heap) InstallBCO(c memory.Addr, instrs, literals, ptrs memory.Addr, arity int, bitmap infotables.LargeBitmap) int {
	size := h.BCOSize(bitmap.Size)
	h.arena.Store(h.word(c, h.hdr), memory.Word(instrs))
	h.arena.Store(h.word(c, h.hdr+1), memory.Word(literals))
	h.arena.Store(h.word(c, h.hdr+2), memory.Word(ptrs))
	h.arena.Store(h.word(c, h.hdr+3), memory.Word(arity)|memory.Word(size)<<h.half)
	h.arena.Store(h.word(c, h.hdr+bcoFields), memory.Word(bitmap.Size))
	for i, bits := range bitmap.Bits {
		h.arena.Store(h.word(c, h.hdr+bcoFields+1+i), bits)
	}
	return size
}

// BCOBitmapSize is the number of entries in the liveness bitmap of a
// byte-code object.
func (h *Heap) BCOBitmapSize(c memory.Addr) int {
	return int(h.field(c, h.hdr+bcoFields))
}
