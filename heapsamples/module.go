package heapsamples

import (
	"github.com/reusee/dscope"
	"github.com/reusee/heaplayout/closures"
	"github.com/reusee/heaplayout/infotables"
	"github.com/reusee/heaplayout/memory"
)

type Module struct {
	dscope.Module
	Closures closures.Module
}

// Build populates the scope's arena with a sample heap.
type Build func(ccs memory.Word) (*Sample, error)

func (Module) Build(
	heap *closures.Heap,
	builder *infotables.Builder,
) Build {
	return func(ccs memory.Word) (*Sample, error) {
		return Populate(heap, builder, ccs)
	}
}
