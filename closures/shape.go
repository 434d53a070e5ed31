package closures

import (
	"github.com/reusee/heaplayout/infotables"
	"github.com/reusee/heaplayout/memory"
	"github.com/reusee/heaplayout/tagged"
)

// words after the header, before any variable part
const (
	selectorFields  = 1 // selectee
	indFields       = 1 // indirectee
	papFields       = 2 // arity and argument count, function
	apStackFields   = 2 // saved stack size, function
	arrWordsFields  = 1 // byte count
	mutArrFields    = 2 // element count, element and card words
	stackFields     = 2 // stack size and dirty flag, stack pointer
	bcoFields       = 4 // instructions, literals, pointers, arity and size
	tsoFields       = 15
	trecFields      = 2 // previous chunk, next entry index
	TRecChunkSlots  = 16
	trecEntryFields = 3 // variable, expected, new value
)

// Shape is how the size of a closure is derived. Each variant carries
// exactly the fields its formula needs.
type Shape interface {
	Words() int
	isShape()
}

// Fixed is a closure whose size depends only on its kind.
type Fixed struct {
	Size int
}

// Fields is a header followed by pointer then non-pointer fields.
type Fields struct {
	Header int
	Ptrs   int
	NPtrs  int
}

// Counted is a header and fixed fields followed by N words counted by a
// field of the closure.
type Counted struct {
	Header int
	Fixed  int
	N      int
}

// Bytes is a raw byte payload rounded up to whole words.
type Bytes struct {
	Header    int
	Fixed     int
	Bytes     int
	WordBytes int
}

// Stored is a closure that records its own total size.
type Stored struct {
	Size int
}

func (s Fixed) Words() int {
	return s.Size
}

func (s Fields) Words() int {
	return s.Header + s.Ptrs + s.NPtrs
}

func (s Counted) Words() int {
	return s.Header + s.Fixed + s.N
}

func (s Bytes) Words() int {
	return s.Header + s.Fixed + memory.RoundUpBytesToWords(s.Bytes, s.WordBytes)
}

func (s Stored) Words() int {
	return s.Size
}

func (Fixed) isShape()   {}
func (Fields) isShape()  {}
func (Counted) isShape() {}
func (Bytes) isShape()   {}
func (Stored) isShape()  {}

// header reads the info pointer of a closure, failing on a forwarding word.
func (h *Heap) header(c memory.Addr) memory.Addr {
	w := h.arena.LoadAtomic(c)
	if tagged.IsForwarding(w) {
		fatal(ErrForwarded, c, infotables.KindInvalid, "to %v", tagged.ResolveForwarding(w))
	}
	return memory.Addr(w)
}

func (h *Heap) kindOf(c memory.Addr, info memory.Addr) infotables.Kind {
	kind := h.tables.Kind(info)
	switch {
	case !kind.Valid():
		fatal(ErrUnknownKind, c, kind, "info pointer %v", info)
	case kind.IsFrame():
		fatal(ErrNotAClosure, c, kind, "")
	}
	return kind
}

// fixedPayload checks a specialised kind against its table in debug builds.
func (h *Heap) fixedPayload(c memory.Addr, info memory.Addr, kind infotables.Kind) (ptrs, nptrs int) {
	ptrs, nptrs, _ = kind.FixedArity()
	if h.debug {
		if p := h.tables.Payload(info); p.Ptrs != ptrs || p.NPtrs != nptrs {
			fatal(ErrLayoutMismatch, c, kind, "table says %d+%d", p.Ptrs, p.NPtrs)
		}
	}
	return
}

// Shape describes how the size of the closure at c is derived.
func (h *Heap) Shape(c memory.Addr) Shape {
	info := h.header(c)
	kind := h.kindOf(c, info)
	shape := h.kindShape(c, info, kind)
	h.checkExtent(c, kind, shape.Words())
	return shape
}

func (h *Heap) kindShape(c memory.Addr, info memory.Addr, kind infotables.Kind) Shape {
	hdr, thk := h.hdr, h.thk

	switch kind {
	case infotables.KindThunkP1, infotables.KindThunkN1,
		infotables.KindThunkP2, infotables.KindThunkP1N1, infotables.KindThunkN2:
		ptrs, nptrs := h.fixedPayload(c, info, kind)
		return Fields{Header: thk, Ptrs: ptrs, NPtrs: nptrs}
	case infotables.KindFunP1, infotables.KindFunN1,
		infotables.KindFunP2, infotables.KindFunP1N1, infotables.KindFunN2,
		infotables.KindConstrP1, infotables.KindConstrN1,
		infotables.KindConstrP2, infotables.KindConstrP1N1, infotables.KindConstrN2:
		ptrs, nptrs := h.fixedPayload(c, info, kind)
		return Fields{Header: hdr, Ptrs: ptrs, NPtrs: nptrs}
	case infotables.KindThunk:
		p := h.tables.Payload(info)
		return Fields{Header: thk, Ptrs: p.Ptrs, NPtrs: p.NPtrs}
	case infotables.KindThunkSelector:
		return Fixed{Size: thk + selectorFields}
	case infotables.KindAPStack:
		return Counted{Header: thk, Fixed: apStackFields, N: h.count(c, kind, h.field(c, thk), h.wordBytes)}
	case infotables.KindAP:
		return Counted{Header: thk, Fixed: papFields, N: h.highHalf(h.field(c, thk))}
	case infotables.KindPAP:
		return Counted{Header: hdr, Fixed: papFields, N: h.highHalf(h.field(c, hdr))}
	case infotables.KindInd, infotables.KindIndPerm, infotables.KindBlackhole:
		return Fixed{Size: hdr + indFields}
	case infotables.KindArrWords:
		return Bytes{Header: hdr, Fixed: arrWordsFields, Bytes: h.count(c, kind, h.field(c, hdr), 1), WordBytes: h.wordBytes}
	case infotables.KindMutArrPtrsClean, infotables.KindMutArrPtrsDirty,
		infotables.KindMutArrPtrsFrozen0, infotables.KindMutArrPtrsFrozen:
		return Counted{Header: hdr, Fixed: mutArrFields, N: h.count(c, kind, h.field(c, hdr), h.wordBytes)}
	case infotables.KindTSO:
		return Fixed{Size: hdr + h.tsoWords()}
	case infotables.KindStack:
		return Counted{Header: hdr, Fixed: stackFields, N: h.lowHalf(h.field(c, hdr))}
	case infotables.KindBCO:
		return Stored{Size: h.highHalf(h.field(c, hdr+3))}
	case infotables.KindTRecChunk:
		return Fixed{Size: hdr + trecFields + TRecChunkSlots*trecEntryFields}
	}

	p := h.tables.Payload(info)
	return Fields{Header: hdr, Ptrs: p.Ptrs, NPtrs: p.NPtrs}
}

func (h *Heap) tsoWords() int {
	if h.profiling {
		// current cost centre stack
		return tsoFields + 1
	}
	return tsoFields
}

// SizeOf is the number of words the closure at c occupies, header included.
// For pointer arrays the trailing card table is not counted; see Footprint.
func (h *Heap) SizeOf(c memory.Addr) int {
	return h.sizeOf(c, h.header(c))
}

func (h *Heap) sizeOf(c memory.Addr, info memory.Addr) int {
	kind := h.kindOf(c, info)
	size := h.kindSize(c, info, kind)
	h.checkExtent(c, kind, size)
	return size
}

func (h *Heap) kindSize(c memory.Addr, info memory.Addr, kind infotables.Kind) int {
	hdr, thk := h.hdr, h.thk

	switch kind {
	case infotables.KindThunkP1, infotables.KindThunkN1:
		h.fixedPayload(c, info, kind)
		return thk + 1
	case infotables.KindThunkP2, infotables.KindThunkP1N1, infotables.KindThunkN2:
		h.fixedPayload(c, info, kind)
		return thk + 2
	case infotables.KindFunP1, infotables.KindFunN1,
		infotables.KindConstrP1, infotables.KindConstrN1:
		h.fixedPayload(c, info, kind)
		return hdr + 1
	case infotables.KindFunP2, infotables.KindFunP1N1, infotables.KindFunN2,
		infotables.KindConstrP2, infotables.KindConstrP1N1, infotables.KindConstrN2:
		h.fixedPayload(c, info, kind)
		return hdr + 2
	case infotables.KindThunk:
		p := h.tables.Payload(info)
		return thk + p.Ptrs + p.NPtrs
	case infotables.KindThunkSelector:
		return thk + selectorFields
	case infotables.KindAPStack:
		return thk + apStackFields + h.count(c, kind, h.field(c, thk), h.wordBytes)
	case infotables.KindAP:
		return thk + papFields + h.highHalf(h.field(c, thk))
	case infotables.KindPAP:
		return hdr + papFields + h.highHalf(h.field(c, hdr))
	case infotables.KindInd, infotables.KindIndPerm, infotables.KindBlackhole:
		return hdr + indFields
	case infotables.KindArrWords:
		return hdr + arrWordsFields + memory.RoundUpBytesToWords(h.count(c, kind, h.field(c, hdr), 1), h.wordBytes)
	case infotables.KindMutArrPtrsClean, infotables.KindMutArrPtrsDirty,
		infotables.KindMutArrPtrsFrozen0, infotables.KindMutArrPtrsFrozen:
		return hdr + mutArrFields + h.count(c, kind, h.field(c, hdr), h.wordBytes)
	case infotables.KindTSO:
		return hdr + h.tsoWords()
	case infotables.KindStack:
		return hdr + stackFields + h.lowHalf(h.field(c, hdr))
	case infotables.KindBCO:
		return h.highHalf(h.field(c, hdr+3))
	case infotables.KindTRecChunk:
		return hdr + trecFields + TRecChunkSlots*trecEntryFields
	}

	p := h.tables.Payload(info)
	return hdr + p.Ptrs + p.NPtrs
}

// Footprint is the total extent of the closure at c, including the card
// table trailing a pointer array.
func (h *Heap) Footprint(c memory.Addr) int {
	return h.footprint(c, h.header(c))
}

func (h *Heap) footprint(c memory.Addr, info memory.Addr) int {
	size := h.sizeOf(c, info)
	if kind := h.tables.Kind(info); isPointerArray(kind) {
		size += h.CardTableWords(h.count(c, kind, h.field(c, h.hdr), h.wordBytes))
		h.checkExtent(c, kind, size)
	}
	return size
}

// count decodes a stored element count of the closure at c, where each
// element takes unit bytes. Counts that cannot fit before the end of the
// arena are corrupt.
func (h *Heap) count(c memory.Addr, kind infotables.Kind, w memory.Word, unit int) int {
	room := uint64(h.arena.Limit()-c) / uint64(unit)
	if uint64(w) > room {
		fatal(ErrLayoutMismatch, c, kind, "count %d past arena end", uint64(w))
	}
	return int(w)
}

// checkExtent fails when size words at c are empty or run past the arena.
func (h *Heap) checkExtent(c memory.Addr, kind infotables.Kind, size int) {
	room := int(uint64(h.arena.Limit()-c) / uint64(h.wordBytes))
	if size <= 0 || size > room {
		fatal(ErrLayoutMismatch, c, kind, "%d words past arena end", size)
	}
}

func isPointerArray(kind infotables.Kind) bool {
	switch kind {
	case infotables.KindMutArrPtrsClean, infotables.KindMutArrPtrsDirty,
		infotables.KindMutArrPtrsFrozen0, infotables.KindMutArrPtrsFrozen:
		return true
	}
	return false
}

// size formulas for closures not yet written, used by allocators

func (h *Heap) PAPSize(nArgs int) int {
	return h.hdr + papFields + nArgs
}

func (h *Heap) APSize(nArgs int) int {
	return h.thk + papFields + nArgs
}

func (h *Heap) APStackSize(stackWords int) int {
	return h.thk + apStackFields + stackWords
}

func (h *Heap) ConstrSize(ptrs, nptrs int) int {
	return h.hdr + ptrs + nptrs
}

func (h *Heap) ThunkSize(ptrs, nptrs int) int {
	return h.thk + ptrs + nptrs
}

func (h *Heap) SelectorSize() int {
	return h.thk + selectorFields
}

func (h *Heap) BlackholeSize() int {
	return h.hdr + indFields
}

func (h *Heap) ArrWordsSize(bytes int) int {
	return h.hdr + arrWordsFields + memory.RoundUpBytesToWords(bytes, h.wordBytes)
}

func (h *Heap) MutArrSize(n int) int {
	return h.hdr + mutArrFields + n
}

func (h *Heap) StackSize(stackWords int) int {
	return h.hdr + stackFields + stackWords
}

func (h *Heap) TSOSize() int {
	return h.hdr + h.tsoWords()
}

func (h *Heap) TRecChunkSize() int {
	return h.hdr + trecFields + TRecChunkSlots*trecEntryFields
}

// BCOSize is the size of a byte-code object with a liveness bitmap of
// bitmapSize entries.
func (h *Heap) BCOSize(bitmapSize int) int {
	return h.hdr + bcoFields + 1 + (bitmapSize+h.wordBytes*8-1)/(h.wordBytes*8)
}

// SizeFromTable is the generic formula for non-thunk kinds.
func (h *Heap) SizeFromTable(info memory.Addr) int {
	p := h.tables.Payload(info)
	return h.hdr + p.Ptrs + p.NPtrs
}

func (h *Heap) ThunkSizeFromTable(info memory.Addr) int {
	p := h.tables.Payload(info)
	return h.thk + p.Ptrs + p.NPtrs
}
