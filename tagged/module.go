package tagged

import (
	"github.com/reusee/dscope"
	"github.com/reusee/heaplayout/heapconfigs"
)

type Module struct {
	dscope.Module
	Configs heapconfigs.Module
}

func (Module) Scheme(
	config heapconfigs.Config,
) Scheme {
	return NewScheme(config)
}
