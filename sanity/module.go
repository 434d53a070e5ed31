package sanity

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/reusee/dscope"
	"github.com/reusee/heaplayout/closures"
	"github.com/reusee/heaplayout/cmds"
	"github.com/reusee/heaplayout/debugs"
	"github.com/reusee/heaplayout/logs"
	"github.com/reusee/heaplayout/modes"
	"github.com/reusee/heaplayout/vars"
)

type Module struct {
	dscope.Module
	Closures closures.Module
	Logs     logs.Module
	Debugs   debugs.Module
}

var ErrCorrupt = errors.New("heap corrupt")

var (
	parallelFlag     = cmds.Var[int]("-walk-parallel")
	tapOnProblemFlag = cmds.Switch("-tap-on-problem")
)

func (Module) Walker(
	heap *closures.Heap,
	logger logs.Logger,
	newSpan logs.NewSpan,
) *Walker {
	return NewWalker(heap, logger, newSpan)
}

// Parallel is the number of regions walked at once.
type Parallel int

func (Module) Parallel() Parallel {
	return Parallel(vars.FirstNonZero(*parallelFlag, runtime.NumCPU()))
}

// Check walks region in parallel parts. Problems are returned as an error
// wrapping ErrCorrupt along with the full report; in development mode the
// report can be handed to a debug tap.
type Check func(ctx context.Context, region Region) (*Report, error)

func (Module) Check(
	walker *Walker,
	parallel Parallel,
	mode modes.Mode,
	tap debugs.Tap,
	logger logs.Logger,
) Check {
	return func(ctx context.Context, region Region) (*Report, error) {
		n := int(parallel)
		report := walker.WalkParallel(ctx, walker.Split(region, n), n)
		if len(report.Problems) == 0 {
			return report, nil
		}

		for _, problem := range report.Problems {
			logger.ErrorContext(ctx, "heap problem",
				"addr", problem.Addr.String(),
				"reason", string(problem.Reason),
				"detail", problem.Detail,
			)
		}
		if mode == modes.ModeDevelopment && *tapOnProblemFlag {
			if err := tap(ctx, "heap check", report.Globals()); err != nil {
				logger.WarnContext(ctx, "tap failed", "error", err)
			}
		}

		return report, logs.WrapSpan(ctx,
			fmt.Errorf("%w: %d problems in %v", ErrCorrupt, len(report.Problems), region))
	}
}
