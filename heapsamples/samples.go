// Package heapsamples fills an arena with one well-formed closure of every
// heap kind, for checkers and tests that need a realistic heap.
package heapsamples

import (
	"fmt"

	"github.com/reusee/heaplayout/closures"
	"github.com/reusee/heaplayout/infotables"
	"github.com/reusee/heaplayout/memory"
	"github.com/reusee/heaplayout/tagged"
)

// Sample records where everything was put.
type Sample struct {
	// From and To bound the closures, after the info tables.
	From memory.Addr
	To   memory.Addr
	// Infos has an info pointer for every valid kind, frames included.
	Infos    map[infotables.Kind]memory.Addr
	Closures map[infotables.Kind]memory.Addr
	// Target is the tagged reference every pointer field holds.
	Target tagged.Ref
}

const (
	arrayBytes    = 13
	arrayElements = 300
	papArgs       = 2
	apStackWords  = 3
	bcoBitmap     = 7
	retBigBitmap  = 40
	retFunArgs    = 2
	filler        = memory.Word(0x5a)
)

func definition(kind infotables.Kind, wordBits int) infotables.Definition {
	def := infotables.Definition{
		Kind: kind,
	}
	if ptrs, nptrs, ok := kind.FixedArity(); ok {
		def.Layout = infotables.Payload{Ptrs: ptrs, NPtrs: nptrs}
	}
	if kind.IsConstr() {
		def.Name = kind.String()
	}
	switch kind {
	case infotables.KindConstr:
		def.Layout = infotables.Payload{Ptrs: 2, NPtrs: 1}
		def.Tag = 1
	case infotables.KindConstrStatic:
		def.Layout = infotables.Payload{Ptrs: 1, NPtrs: 1}
	case infotables.KindConstrNoCAFStatic:
		def.Layout = infotables.Payload{NPtrs: 1}
	case infotables.KindFun:
		def.Layout = infotables.Payload{Ptrs: 1, NPtrs: 1}
		def.Arity = 2
	case infotables.KindThunk:
		def.Layout = infotables.Payload{Ptrs: 1, NPtrs: 2}
	case infotables.KindThunkSelector:
		def.Layout = infotables.Selector{Offset: 0}
	case infotables.KindBlackhole, infotables.KindMutVarClean, infotables.KindMutVarDirty:
		def.Layout = infotables.Payload{Ptrs: 1}
	case infotables.KindIndStatic:
		// indirectee, static link, saved info
		def.Layout = infotables.Payload{Ptrs: 1, NPtrs: 2}
	case infotables.KindBlockingQueue:
		def.Layout = infotables.Payload{Ptrs: 4}
	case infotables.KindMVarClean, infotables.KindMVarDirty:
		def.Layout = infotables.Payload{Ptrs: 3}
	case infotables.KindWeak:
		def.Layout = infotables.Payload{Ptrs: 5}
	case infotables.KindPrim:
		def.Layout = infotables.Payload{Ptrs: 1, NPtrs: 1}
	case infotables.KindMutPrim:
		def.Layout = infotables.Payload{Ptrs: 2}
	case infotables.KindRetSmall:
		def.Layout = infotables.Bitmap{Size: 2, Bits: 0b10}
	case infotables.KindUpdateFrame:
		def.Layout = infotables.Bitmap{Size: 1}
	case infotables.KindCatchFrame:
		def.Layout = infotables.Bitmap{Size: 2, Bits: 0b01}
	case infotables.KindRetBig:
		def.Layout = infotables.LargeBitmap{
			Size: retBigBitmap,
			Bits: make([]memory.Word, (retBigBitmap+wordBits-1)/wordBits),
		}
	}
	return def
}

type frame struct {
	kind   infotables.Kind
	second memory.Word
	size   int
}

type populator struct {
	heap   *closures.Heap
	arena  *memory.Arena
	ccs    memory.Word
	sample *Sample
}

// Populate installs info tables for every kind, then allocates one closure of
// each heap kind. Pointer fields refer to the first closure, a CONSTR_0_1.
func Populate(heap *closures.Heap, builder *infotables.Builder, ccs memory.Word) (*Sample, error) {
	arena := heap.Arena()
	sample := &Sample{
		Infos:    make(map[infotables.Kind]memory.Addr),
		Closures: make(map[infotables.Kind]memory.Addr),
	}
	wordBits := arena.WordBytes() * 8
	for kind := infotables.KindInvalid + 1; kind < infotables.NumKinds; kind++ {
		info, err := builder.Install(definition(kind, wordBits))
		if err != nil {
			return nil, err
		}
		sample.Infos[kind] = info
	}

	p := &populator{
		heap:   heap,
		arena:  arena,
		ccs:    ccs,
		sample: sample,
	}
	sample.From = arena.Top()

	target, err := p.closure(infotables.KindConstrN1)
	if err != nil {
		return nil, err
	}
	sample.Target = heap.Scheme().Tag(target, heap.Scheme().ConstrTag(0, 1))

	for kind := infotables.KindInvalid + 1; kind < infotables.NumKinds; kind++ {
		if kind.IsFrame() || kind == infotables.KindConstrN1 {
			continue
		}
		if _, err := p.closure(kind); err != nil {
			return nil, err
		}
	}

	sample.To = arena.Top()
	return sample, nil
}

func (p *populator) size(kind infotables.Kind) int {
	h := p.heap
	info := p.sample.Infos[kind]
	switch kind {
	case infotables.KindPAP:
		return h.PAPSize(papArgs)
	case infotables.KindAP:
		return h.APSize(papArgs)
	case infotables.KindAPStack:
		return h.APStackSize(apStackWords)
	case infotables.KindThunkSelector:
		return h.SelectorSize()
	case infotables.KindInd, infotables.KindIndPerm, infotables.KindBlackhole:
		return h.BlackholeSize()
	case infotables.KindArrWords:
		return h.ArrWordsSize(arrayBytes)
	case infotables.KindMutArrPtrsClean, infotables.KindMutArrPtrsDirty,
		infotables.KindMutArrPtrsFrozen0, infotables.KindMutArrPtrsFrozen:
		return h.MutArrSize(arrayElements) + h.CardTableWords(arrayElements)
	case infotables.KindStack:
		return h.StackSize(stackWords(p.frames()))
	case infotables.KindBCO:
		return h.BCOSize(bcoBitmap)
	case infotables.KindTSO:
		return h.TSOSize()
	case infotables.KindTRecChunk:
		return h.TRecChunkSize()
	}
	if kind.IsThunk() && kind != infotables.KindThunkStatic {
		return h.ThunkSizeFromTable(info)
	}
	return h.SizeFromTable(info)
}

func (p *populator) closure(kind infotables.Kind) (memory.Addr, error) {
	h := p.heap
	info := p.sample.Infos[kind]
	c, err := p.arena.Alloc(p.size(kind))
	if err != nil {
		return 0, fmt.Errorf("sample %v: %w", kind, err)
	}
	p.sample.Closures[kind] = c
	target := p.sample.Target
	fun := tagged.Ref(0)
	if addr, ok := p.sample.Closures[infotables.KindFun]; ok {
		fun = h.Scheme().Tag(addr, 1)
	}

	switch kind {
	case infotables.KindArrWords:
		h.InstallArrayHeader(c, info, p.ccs, arrayBytes)
		for i := range arrayBytes {
			p.arena.StoreByte(h.Payload(c, 1)+memory.Addr(i), byte(i+1))
		}
		return c, nil

	case infotables.KindMutArrPtrsClean, infotables.KindMutArrPtrsDirty,
		infotables.KindMutArrPtrsFrozen0, infotables.KindMutArrPtrsFrozen:
		h.InstallPointerArrayHeader(c, info, p.ccs, arrayElements)
		for i := range arrayElements {
			p.arena.Store(h.Element(c, i), memory.Word(target))
		}
		if kind == infotables.KindMutArrPtrsDirty {
			h.MarkCard(c, 0)
			h.MarkCard(c, arrayElements-1)
		}
		return c, nil
	}

	h.InstallHeader(c, info, p.ccs)

	switch kind {
	case infotables.KindPAP, infotables.KindAP:
		h.InstallApplication(c, papArgs+1, papArgs, fun)
		at := h.HeaderWords()
		if kind == infotables.KindAP {
			at = h.ThunkHeaderWords()
		}
		for i := range papArgs {
			p.arena.Store(p.arena.Offset(c, at+2+i), memory.Word(target))
		}

	case infotables.KindAPStack:
		h.InstallAPStack(c, apStackWords, fun)
		for i := range apStackWords {
			p.arena.Store(h.ThunkPayload(c, 2+i), filler)
		}

	case infotables.KindThunkSelector:
		p.arena.Store(h.ThunkPayload(c, 0), memory.Word(target))

	case infotables.KindInd, infotables.KindIndPerm, infotables.KindBlackhole:
		p.arena.Store(h.Payload(c, 0), memory.Word(target))

	case infotables.KindBCO:
		h.InstallBCO(c, 0, 0, 0, 1, infotables.LargeBitmap{
			Size: bcoBitmap,
			Bits: []memory.Word{0b101},
		})

	case infotables.KindStack:
		if err := p.stack(c); err != nil {
			return 0, err
		}

	default:
		if fields, ok := h.Shape(c).(closures.Fields); ok {
			for i := range fields.Ptrs + fields.NPtrs {
				w := filler
				if i < fields.Ptrs {
					w = memory.Word(target)
				}
				p.arena.Store(p.arena.Offset(c, fields.Header+i), w)
			}
		}
	}

	return c, nil
}

// frames is the content of the sample stack, innermost first.
func (p *populator) frames() []frame {
	bco := p.sample.Closures[infotables.KindBCO]
	return []frame{
		{infotables.KindRetSmall, filler, 1 + 2},
		{infotables.KindUpdateFrame, memory.Word(p.sample.Target), 1 + 1},
		{infotables.KindCatchFrame, 0, 1 + 2},
		{infotables.KindRetFun, retFunArgs, 3 + retFunArgs},
		{infotables.KindRetDyn, closures.RetDynLiveness(0, 1, 1),
			3 + closures.RetDynBitmapRegs + closures.RetDynNPtrRegs + 2},
		{infotables.KindRetBig, 0, 1 + retBigBitmap},
		{infotables.KindRetBCO, memory.Word(bco), 2 + bcoBitmap},
		{infotables.KindStopFrame, 0, 1},
	}
}

func stackWords(frames []frame) (n int) {
	for _, f := range frames {
		n += f.size
	}
	return
}

func (p *populator) stack(c memory.Addr) error {
	h := p.heap
	frames := p.frames()
	base := h.StackBase(c)
	h.InstallStack(c, stackWords(frames), true, base)
	sp := base
	for _, f := range frames {
		p.arena.Store(sp, memory.Word(p.sample.Infos[f.kind]))
		if f.size > 1 {
			p.arena.Store(p.arena.Offset(sp, 1), f.second)
		}
		if got := h.FrameSize(sp); got != f.size {
			return fmt.Errorf("sample %v frame: %d words, want %d", f.kind, got, f.size)
		}
		sp = p.arena.Offset(sp, f.size)
	}
	return nil
}
