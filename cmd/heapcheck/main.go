package main

import (
	"context"
	"fmt"
	"os"

	"github.com/reusee/dscope"
	"github.com/reusee/heaplayout/closures"
	"github.com/reusee/heaplayout/cmds"
	"github.com/reusee/heaplayout/heapconfigs"
	"github.com/reusee/heaplayout/heapsamples"
	"github.com/reusee/heaplayout/infotables"
	"github.com/reusee/heaplayout/logs"
	"github.com/reusee/heaplayout/memory"
	"github.com/reusee/heaplayout/modes"
	"github.com/reusee/heaplayout/profiling"
	"github.com/reusee/heaplayout/sanity"
)

var (
	evacuateFlag = cmds.Switch("-evacuate")
)

func main() {
	cmds.Execute(os.Args[1:])

	scope := dscope.New(
		new(sanity.Module),
		new(heapsamples.Module),
		modes.ForProduction(),
	)

	scope.Call(func(
		config heapconfigs.Config,
		heap *closures.Heap,
		overwriter *closures.Overwriter,
		ldv *profiling.LDV,
		build heapsamples.Build,
		check sanity.Check,
		logger logs.Logger,
	) {
		ctx := context.Background()
		defer heap.Arena().Close()

		sample, err := build(0)
		if err != nil {
			logger.Error("build sample heap", "error", err)
			os.Exit(1)
		}
		if config.Profiling {
			ldv.NextEra()
		}

		// slop is only zeroed in configurations that walk the heap, so
		// overwrites elsewhere would leave it unparseable
		if config.ZeroSlop() {
			overwriter.UpdateWithIndirection(
				sample.Closures[infotables.KindThunk],
				sample.Infos[infotables.KindBlackhole],
				sample.Target,
			)
			overwriter.OverwriteInfo(
				sample.Closures[infotables.KindThunkP2],
				sample.Infos[infotables.KindWhitehole],
			)
		}

		report, err := check(ctx, sanity.Region{
			From: sample.From,
			To:   sample.To,
		})
		if report != nil {
			bs, yamlErr := report.YAML()
			if yamlErr != nil {
				logger.Error("encode report", "error", yamlErr)
				os.Exit(1)
			}
			os.Stdout.Write(bs)
		}
		if err != nil {
			logger.Error("heap check", "error", err)
			os.Exit(1)
		}

		if config.Profiling {
			dead := ldv.Dead()
			logger.Info("lag, drag and void",
				"dead_objects", dead.Objects,
				"dead_words", dead.Words,
			)
		}

		if *evacuateFlag {
			if err := evacuate(ctx, heap, sample, logger); err != nil {
				logger.Error("evacuate", "error", err)
				os.Exit(1)
			}
		}
	})
}

// evacuate copies the sample's pointer-rich closures into a fresh to-space
// and resolves references through the forwarding pointers left behind.
func evacuate(ctx context.Context, heap *closures.Heap, sample *heapsamples.Sample, logger logs.Logger) error {
	from := heap.Arena()
	words := int(sample.To-sample.From) / from.WordBytes()
	to, err := memory.NewArena(from.Limit(), from.WordBytes(), words)
	if err != nil {
		return err
	}
	defer to.Close()

	for _, kind := range []infotables.Kind{
		infotables.KindConstr,
		infotables.KindMutArrPtrsDirty,
		infotables.KindStack,
	} {
		c := sample.Closures[kind]
		dest, err := heap.Evacuate(c, to)
		if err != nil {
			return err
		}
		ref := heap.Follow(heap.Scheme().Tag(c, 1))
		if heap.Scheme().Untag(ref) != dest {
			return fmt.Errorf("%v at %v: followed to %v, copied to %v", kind, c, ref, dest)
		}
		logger.InfoContext(ctx, "evacuated",
			"kind", kind.String(),
			"from", c.String(),
			"to", dest.String(),
		)
	}
	return nil
}
