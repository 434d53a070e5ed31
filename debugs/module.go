package debugs

import (
	"github.com/reusee/dscope"
	"github.com/reusee/heaplayout/cmds"
	"github.com/reusee/heaplayout/logs"
)

type Module struct {
	dscope.Module
	Logs logs.Module
}

var tapScriptFlag = cmds.Var[string]("-tap-script")

// TapScript is a starlark file run by Tap instead of an interactive session.
type TapScript string

func (Module) TapScript() TapScript {
	return TapScript(*tapScriptFlag)
}
