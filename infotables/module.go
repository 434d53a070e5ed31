package infotables

import (
	"github.com/reusee/dscope"
	"github.com/reusee/heaplayout/heapconfigs"
	"github.com/reusee/heaplayout/memory"
)

type Module struct {
	dscope.Module
	Configs heapconfigs.Module
	Memory  memory.Module
}

func (Module) Tables(
	config heapconfigs.Config,
	arena *memory.Arena,
) *Tables {
	return NewTables(config, arena)
}

func (Module) Builder(
	tables *Tables,
) *Builder {
	return NewBuilder(tables)
}
