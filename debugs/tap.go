package debugs

import (
	"context"
	"maps"
	"slices"

	"github.com/reusee/heaplayout/logs"
	"go.starlark.net/repl"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Tap exposes globals to starlark for inspection of a heap that failed a check.
type Tap func(ctx context.Context, what string, globals map[string]any) error

func (Module) Tap(
	logger logs.Logger,
	script TapScript,
) Tap {
	return func(ctx context.Context, what string, globals map[string]any) error {
		logger.InfoContext(ctx, "tap: "+what,
			"globals", slices.Sorted(maps.Keys(globals)),
		)
		defer func() {
			logger.InfoContext(ctx, "tap end: "+what)
		}()

		mappings := make(starlark.StringDict)
		for name, value := range globals {
			mappings[name] = toStarlarkValue(value)
		}

		options := &syntax.FileOptions{
			Set:             true,
			While:           true,
			TopLevelControl: true,
		}
		thread := &starlark.Thread{
			Name: "tap",
			Print: func(_ *starlark.Thread, msg string) {
				logger.InfoContext(ctx, msg, "tap", what)
			},
		}

		if script == "" {
			thread.Name = "repl"
			thread.Print = nil
			repl.REPLOptions(options, thread, mappings)
			return nil
		}

		if _, err := starlark.ExecFileOptions(options, thread, string(script), nil, mappings); err != nil {
			return logs.WrapSpan(ctx, err)
		}
		return nil
	}
}
