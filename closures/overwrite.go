package closures

import (
	"github.com/reusee/heaplayout/heapconfigs"
	"github.com/reusee/heaplayout/memory"
	"github.com/reusee/heaplayout/profiling"
	"github.com/reusee/heaplayout/tagged"
)

// Overwriter replaces closures in place, keeping the heap walkable: the words
// a smaller replacement leaves behind are zeroed whenever something scans
// the heap linearly.
type Overwriter struct {
	heap      *Heap
	hook      profiling.Hook
	zero      bool
	profiling bool
	check     bool
}

func NewOverwriter(config heapconfigs.Config, heap *Heap, hook profiling.Hook) *Overwriter {
	return &Overwriter{
		heap:      heap,
		hook:      hook,
		zero:      config.ZeroSlop(),
		profiling: config.Profiling,
		check:     config.Debug,
	}
}

// Overwrite prepares the closure at c to be replaced by a smaller one. The
// payload after the thunk header is zeroed. With profiling the old closure
// is reported dead, unless no census era has started yet.
func (o *Overwriter) Overwrite(c memory.Addr) {
	if !o.zero {
		return
	}
	if o.profiling && o.hook.Era() <= 0 {
		return
	}
	size := o.heap.SizeOf(c)
	if o.profiling {
		o.hook.RecordDead(c, size)
	}
	thk := o.heap.thk
	if size > thk {
		o.heap.arena.Zero(o.heap.word(c, thk), size-thk)
	}
}

// OverwriteInfo replaces the closure at c by one of kind info with no
// payload of its own, and reports its creation.
func (o *Overwriter) OverwriteInfo(c memory.Addr, info memory.Addr) {
	var before int
	if o.check {
		before = o.heap.SizeOf(c)
	}
	o.Overwrite(c)
	o.heap.SetInfo(c, info)
	if o.profiling {
		o.hook.RecordCreate(c)
	}
	if o.check {
		o.checkShrunk(c, before)
	}
}

// UpdateWithIndirection overwrites the thunk at c with an indirection of
// kind info to target.
func (o *Overwriter) UpdateWithIndirection(c memory.Addr, info memory.Addr, target tagged.Ref) {
	var before int
	if o.check {
		before = o.heap.SizeOf(c)
	}
	o.Overwrite(c)
	o.heap.arena.Store(o.heap.word(c, o.heap.hdr), memory.Word(target))
	o.heap.SetInfo(c, info)
	if o.profiling {
		o.hook.RecordCreate(c)
	}
	if o.check {
		o.checkShrunk(c, before)
	}
}

func (o *Overwriter) checkShrunk(c memory.Addr, before int) {
	if after := o.heap.SizeOf(c); after > before {
		fatal(ErrOverwriteGrows, c, o.heap.Kind(c), "%d words over %d", after, before)
	}
}
