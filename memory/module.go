package memory

import (
	"github.com/reusee/dscope"
	"github.com/reusee/heaplayout/heapconfigs"
)

type Module struct {
	dscope.Module
	Configs heapconfigs.Module
}

func (Module) Arena(
	config heapconfigs.Config,
) *Arena {
	arena, err := NewArena(Addr(config.HeapBase), config.WordBytes, config.HeapWords)
	if err != nil {
		panic(err)
	}
	return arena
}
