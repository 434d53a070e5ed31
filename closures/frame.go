package closures

import (
	"iter"

	"github.com/reusee/heaplayout/infotables"
	"github.com/reusee/heaplayout/memory"
)

// fixed parts of the variable frames, in words
const (
	retDynFixed      = 3 // info, liveness, return address
	RetDynBitmapRegs = 8
	RetDynNPtrRegs   = 10
	retFunFixed      = 3 // info, size, function
	retBigFixed      = 1
	retBCOFixed      = 2 // info, byte-code object
	retSmallFixed    = 1
)

// RetDynLiveness packs the liveness word of a dynamic return frame saving
// ptrs pointer words and nptrs non-pointer words after its registers.
func RetDynLiveness(regBitmap uint8, ptrs, nptrs int) memory.Word {
	return memory.Word(regBitmap) | memory.Word(ptrs&0xff)<<16 | memory.Word(nptrs&0xff)<<24
}

func retDynPtrs(liveness memory.Word) int {
	return int(liveness >> 16 & 0xff)
}

func retDynNPtrs(liveness memory.Word) int {
	return int(liveness >> 24 & 0xff)
}

// FrameSize is the number of words of the stack frame at frame, info word
// included.
func (h *Heap) FrameSize(frame memory.Addr) int {
	info := memory.Addr(h.arena.Load(frame))
	kind := h.tables.Kind(info)
	switch kind {
	case infotables.KindRetDyn:
		liveness := h.field(frame, 1)
		return retDynFixed + RetDynBitmapRegs + RetDynNPtrRegs +
			retDynPtrs(liveness) + retDynNPtrs(liveness)
	case infotables.KindRetFun:
		return retFunFixed + int(h.field(frame, 1))
	case infotables.KindRetBig:
		return retBigFixed + h.tables.LargeBitmapSize(info)
	case infotables.KindRetBCO:
		bco := memory.Addr(h.field(frame, 1))
		return retBCOFixed + h.BCOBitmapSize(bco)
	}
	if !kind.IsFrame() {
		fatal(ErrNotAFrame, frame, kind, "info pointer %v", info)
	}
	return retSmallFixed + h.tables.BitmapSize(info)
}

// Frames yields the frames of a stack object from its stack pointer to the
// end of the stack.
func (h *Heap) Frames(stack memory.Addr) iter.Seq[memory.Addr] {
	return func(yield func(memory.Addr) bool) {
		end := h.word(stack, h.SizeOf(stack))
		for sp := h.StackPointer(stack); sp < end; {
			if !yield(sp) {
				return
			}
			sp += memory.Addr(h.FrameSize(sp) * h.wordBytes)
		}
	}
}
