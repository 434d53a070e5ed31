package profiling

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

func (Module) LDV(
	config heapconfigs.Config,
	arena *memory.Arena,
) *LDV {
	return NewLDV(config, arena)
}

func (Module) Hook(
	config heapconfigs.Config,
	ldv *LDV,
) Hook {
	if !config.Profiling {
		return Nop{}
	}
	return ldv
}
