package closures

import (
	"github.com/reusee/dscope"
	"github.com/reusee/heaplayout/heapconfigs"
	"github.com/reusee/heaplayout/infotables"
	"github.com/reusee/heaplayout/memory"
	"github.com/reusee/heaplayout/profiling"
	"github.com/reusee/heaplayout/tagged"
)

type Module struct {
	dscope.Module
	Configs    heapconfigs.Module
	Memory     memory.Module
	InfoTables infotables.Module
	Tagged     tagged.Module
	Profiling  profiling.Module
}

func (Module) Heap(
	config heapconfigs.Config,
	arena *memory.Arena,
	tables *infotables.Tables,
	scheme tagged.Scheme,
	hook profiling.Hook,
) *Heap {
	return New(config, arena, tables, scheme, hook)
}

func (Module) Overwriter(
	config heapconfigs.Config,
	heap *Heap,
	hook profiling.Hook,
) *Overwriter {
	return NewOverwriter(config, heap, hook)
}
