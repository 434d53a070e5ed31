package sanity

import (
	"context"
	"errors"
	"sync"

	"github.com/reusee/heaplayout/closures"
	"github.com/reusee/heaplayout/infotables"
	"github.com/reusee/heaplayout/logs"
	"github.com/reusee/heaplayout/memory"
	"github.com/reusee/heaplayout/syncs"
	"github.com/reusee/heaplayout/tagged"
)

// Walker checks that a region parses as a sequence of closures.
type Walker struct {
	heap    *closures.Heap
	logger  logs.Logger
	newSpan logs.NewSpan
	// Forwarding tolerates forwarding pointers, as in from-space mid collection.
	Forwarding bool
}

func NewWalker(heap *closures.Heap, logger logs.Logger, newSpan logs.NewSpan) *Walker {
	return &Walker{
		heap:    heap,
		logger:  logger,
		newSpan: newSpan,
	}
}

// Walk parses region closure by closure. Zero words between closures are
// slop left by overwrites. The walk stops at the first closure whose size
// cannot be trusted.
func (w *Walker) Walk(ctx context.Context, region Region) *Report {
	ctx, _ = w.newSpan(ctx, "")
	arena := w.heap.Arena()
	report := newReport(arena.WordBytes())
	report.Regions = append(report.Regions, region)

	for p := region.From; p < region.To; {
		word, ok := arena.Peek(p)
		if !ok {
			report.problem(p, ReasonOverrun, "outside arena")
			break
		}
		if word == 0 {
			report.SlopWords++
			p = arena.Offset(p, 1)
			continue
		}
		if tagged.IsForwarding(word) {
			if !w.Forwarding {
				report.problem(p, ReasonForwarded, "to %v", tagged.ResolveForwarding(word))
			}
			break
		}
		if !w.heap.LooksLikeClosurePointer(tagged.Plain(p)) {
			report.problem(p, ReasonBadInfo, "header %#x", uint64(word))
			break
		}

		m, err := w.measure(p)
		if err != nil {
			report.problem(p, ReasonInvariant, "%v", err)
			break
		}
		if m.footprint <= 0 {
			report.problem(p, ReasonOverrun, "%v of %d words", m.kind, m.footprint)
			break
		}
		if m.shape.Words() != m.size {
			report.problem(p, ReasonShape, "%v: %+v for %d words", m.kind, m.shape, m.size)
		}
		end := arena.Offset(p, m.footprint)
		if end > region.To {
			report.problem(p, ReasonOverrun, "%v of %d words ends at %v", m.kind, m.footprint, end)
			break
		}
		report.Closures[m.kind] = report.Closures[m.kind].add(m.footprint)

		w.checkFields(p, m, report)
		switch m.kind {
		case infotables.KindStack:
			w.checkStack(p, report)
		case infotables.KindMutArrPtrsClean, infotables.KindMutArrPtrsDirty,
			infotables.KindMutArrPtrsFrozen0, infotables.KindMutArrPtrsFrozen:
			for range w.heap.DirtyCards(p) {
				report.DirtyCards++
			}
		}

		p = end
	}

	total := report.Total()
	args := []any{
		"region", region.String(),
		"objects", total.Objects,
		"size", report.Size(total.Words).String(),
		"slop", report.Size(report.SlopWords).String(),
	}
	if len(report.Problems) > 0 {
		args = append(args, "problems", len(report.Problems))
		w.logger.WarnContext(ctx, "heap walk", args...)
	} else {
		w.logger.DebugContext(ctx, "heap walk", args...)
	}

	return report
}

type measured struct {
	kind      infotables.Kind
	size      int
	footprint int
	shape     closures.Shape
}

// measure sizes the closure at p, turning layout invariant panics into
// errors so one corrupt closure does not abort the whole walk.
func (w *Walker) measure(p memory.Addr) (m measured, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	m.kind = w.heap.Kind(p)
	m.size = w.heap.SizeOf(p)
	m.footprint = w.heap.Footprint(p)
	m.shape = w.heap.Shape(p)
	return
}

// recovered returns layout invariant panics and wild reads as errors, and
// re-panics anything else.
func recovered(r any) error {
	err, ok := r.(error)
	if !ok {
		panic(r)
	}
	var invariant *closures.InvariantError
	switch {
	case errors.As(err, &invariant):
		return invariant
	case errors.Is(err, memory.ErrOutOfRange), errors.Is(err, memory.ErrUnaligned):
		return err
	}
	panic(r)
}

// checkFields verifies the pointer fields of closures laid out as pointers
// then non-pointers.
func (w *Walker) checkFields(p memory.Addr, m measured, report *Report) {
	shape, ok := m.shape.(closures.Fields)
	if !ok || m.kind.IsStatic() {
		return
	}
	arena := w.heap.Arena()
	for i := range shape.Ptrs {
		field := arena.Offset(p, shape.Header+i)
		ref := tagged.Ref(arena.Load(field))
		if ref == 0 {
			continue
		}
		if !w.heap.LooksLikeClosurePointer(ref) {
			report.problem(p, ReasonBadField, "%v field %d is %v", m.kind, i, ref)
		}
	}
}

// checkStack sizes every frame of a stack object.
func (w *Walker) checkStack(stack memory.Addr, report *Report) {
	end := w.heap.Arena().Offset(stack, w.heap.SizeOf(stack))
	sp := w.heap.StackPointer(stack)
	if sp < w.heap.StackBase(stack) || sp > end {
		report.problem(stack, ReasonFrameOverrun, "stack pointer %v", sp)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			report.problem(stack, ReasonInvariant, "%v", recovered(r))
		}
	}()
	for frame := range w.heap.Frames(stack) {
		word, _ := w.heap.Arena().Peek(frame)
		kind, ok := w.heap.Tables().PeekKind(memory.Addr(word))
		if !ok || !kind.IsFrame() {
			report.problem(frame, ReasonBadInfo, "frame header %#x", uint64(word))
			return
		}
		size := w.heap.FrameSize(frame)
		if w.heap.Arena().Offset(frame, size) > end {
			report.problem(frame, ReasonFrameOverrun, "%v of %d words", kind, size)
			return
		}
		report.Frames[kind] = report.Frames[kind].add(size)
	}
}

// WalkParallel walks regions with at most parallel concurrent walkers and
// merges their reports in region order.
func (w *Walker) WalkParallel(ctx context.Context, regions []Region, parallel int) *Report {
	reports := make([]*Report, len(regions))
	sem := syncs.NewSemaphore(parallel)
	wg := new(sync.WaitGroup)
	for i, region := range regions {
		sem.Go(wg, func() {
			reports[i] = w.Walk(ctx, region)
		})
	}
	wg.Wait()

	report := newReport(w.heap.Arena().WordBytes())
	for _, r := range reports {
		report.Merge(r)
	}
	return report
}

// Split cuts region at closure boundaries into at most n parts of roughly
// equal size. Anything after the first closure that cannot be measured stays
// in the last part, where Walk will report it.
func (w *Walker) Split(region Region, n int) []Region {
	arena := w.heap.Arena()
	words := int(region.To-region.From) / arena.WordBytes()
	target := max(words/max(n, 1), 1)

	var regions []Region
	from := region.From
	for p := region.From; p < region.To; {
		word, ok := arena.Peek(p)
		if !ok || tagged.IsForwarding(word) || word != 0 && !w.heap.LooksLikeClosurePointer(tagged.Plain(p)) {
			break
		}
		if word == 0 {
			p = arena.Offset(p, 1)
		} else {
			m, err := w.measure(p)
			if err != nil || m.footprint <= 0 {
				break
			}
			p = arena.Offset(p, m.footprint)
		}
		if int(p-from)/arena.WordBytes() >= target && len(regions) < n-1 && p < region.To {
			regions = append(regions, Region{From: from, To: p})
			from = p
		}
	}
	return append(regions, Region{From: from, To: region.To})
}
