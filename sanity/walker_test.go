package sanity

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"strings"
	"testing"

	"github.com/reusee/dscope"
	"github.com/reusee/heaplayout/closures"
	"github.com/reusee/heaplayout/heapconfigs"
	"github.com/reusee/heaplayout/heapsamples"
	"github.com/reusee/heaplayout/infotables"
	"github.com/reusee/heaplayout/logs"
	"github.com/reusee/heaplayout/memory"
	"github.com/reusee/heaplayout/modes"
	"github.com/reusee/heaplayout/profiling"
	"github.com/reusee/heaplayout/tagged"
)

type fixture struct {
	heap       *closures.Heap
	arena      *memory.Arena
	overwriter *closures.Overwriter
	ldv        *profiling.LDV
	walker     *Walker
	check      Check
	sample     *heapsamples.Sample
	region     Region
	logs       *bytes.Buffer
}

func newFixture(t *testing.T, config heapconfigs.Config) *fixture {
	t.Helper()
	f := &fixture{
		logs: new(bytes.Buffer),
	}
	dscope.New(
		modes.ForTest(t),
		new(Module),
		new(heapsamples.Module),
	).Fork(
		dscope.Provide(config),
		func() logs.Writer {
			return f.logs
		},
	).Call(func(
		heap *closures.Heap,
		overwriter *closures.Overwriter,
		ldv *profiling.LDV,
		walker *Walker,
		check Check,
		build heapsamples.Build,
	) {
		f.heap = heap
		f.arena = heap.Arena()
		f.overwriter = overwriter
		f.ldv = ldv
		f.walker = walker
		f.check = check
		sample, err := build(0)
		if err != nil {
			t.Fatal(err)
		}
		f.sample = sample
	})
	t.Cleanup(func() {
		f.arena.Close()
	})
	f.region = Region{
		From: f.sample.From,
		To:   f.sample.To,
	}
	return f
}

func eachConfig(t *testing.T, fn func(t *testing.T, config heapconfigs.Config)) {
	for _, wordBytes := range []int{4, 8} {
		for _, profiled := range []bool{false, true} {
			config := heapconfigs.Default()
			config.WordBytes = wordBytes
			config.Profiling = profiled
			config.Debug = true
			config.HeapWords = 1 << 14
			t.Run(fmt.Sprintf("%d/%v", wordBytes, profiled), func(t *testing.T) {
				fn(t, config)
			})
		}
	}
}

func TestWalkSample(t *testing.T) {
	eachConfig(t, func(t *testing.T, config heapconfigs.Config) {
		f := newFixture(t, config)
		report := f.walker.Walk(t.Context(), f.region)
		if len(report.Problems) > 0 {
			t.Fatalf("got %v", report.Problems)
		}

		for kind := infotables.KindInvalid + 1; kind < infotables.NumKinds; kind++ {
			if kind.IsFrame() {
				continue
			}
			c := f.sample.Closures[kind]
			count := report.Closures[kind]
			if count.Objects != 1 || count.Words != f.heap.Footprint(c) {
				t.Fatalf("%v: got %+v", kind, count)
			}
		}
		if len(report.Frames) != 8 {
			t.Fatalf("got %v", report.Frames)
		}
		if report.Frames[infotables.KindRetBig].Words != 41 {
			t.Fatalf("got %+v", report.Frames[infotables.KindRetBig])
		}
		if report.DirtyCards != 2 {
			t.Fatalf("got %v", report.DirtyCards)
		}
		if report.SlopWords != 0 {
			t.Fatalf("got %v", report.SlopWords)
		}
		words := int(f.region.To-f.region.From) / config.WordBytes
		if total := report.Total(); total.Words != words {
			t.Fatalf("got %v, want %v", total.Words, words)
		}
	})
}

func TestWalkAfterOverwrite(t *testing.T) {
	eachConfig(t, func(t *testing.T, config heapconfigs.Config) {
		f := newFixture(t, config)
		if config.Profiling {
			// slop is left alone before the first census
			f.ldv.NextEra()
		}
		thunk := f.sample.Closures[infotables.KindThunk]
		before := f.heap.SizeOf(thunk)
		f.overwriter.UpdateWithIndirection(
			thunk,
			f.sample.Infos[infotables.KindBlackhole],
			f.sample.Target,
		)

		report := f.walker.Walk(t.Context(), f.region)
		if len(report.Problems) > 0 {
			t.Fatalf("got %v", report.Problems)
		}
		if report.SlopWords != before-f.heap.BlackholeSize() {
			t.Fatalf("got %v", report.SlopWords)
		}
		if report.Closures[infotables.KindThunk].Objects != 0 {
			t.Fatal("thunk still counted")
		}
		if report.Closures[infotables.KindBlackhole].Objects != 2 {
			t.Fatalf("got %+v", report.Closures[infotables.KindBlackhole])
		}
	})
}

func TestWalkCorrupt(t *testing.T) {
	config := heapconfigs.Default()
	config.Debug = true
	config.HeapWords = 1 << 14

	frameOf := func(f *fixture, kind infotables.Kind) memory.Addr {
		for frame := range f.heap.Frames(f.sample.Closures[infotables.KindStack]) {
			if f.heap.Tables().Kind(memory.Addr(f.arena.Load(frame))) == kind {
				return frame
			}
		}
		t.Fatalf("no %v frame", kind)
		return 0
	}

	for _, c := range []struct {
		name    string
		corrupt func(f *fixture) memory.Addr
		reason  Reason
	}{
		{
			name: "bad info",
			corrupt: func(f *fixture) memory.Addr {
				c := f.sample.Closures[infotables.KindFun]
				f.arena.Store(c, 0x10)
				return c
			},
			reason: ReasonBadInfo,
		},
		{
			name: "forwarded",
			corrupt: func(f *fixture) memory.Addr {
				c := f.sample.Closures[infotables.KindThunk]
				f.heap.Forward(c, f.sample.Closures[infotables.KindConstrN1])
				return c
			},
			reason: ReasonForwarded,
		},
		{
			name: "bad field",
			corrupt: func(f *fixture) memory.Addr {
				c := f.sample.Closures[infotables.KindConstr]
				f.arena.Store(f.heap.Payload(c, 1), 0x5a)
				return c
			},
			reason: ReasonBadField,
		},
		{
			name: "stack pointer",
			corrupt: func(f *fixture) memory.Addr {
				c := f.sample.Closures[infotables.KindStack]
				f.arena.Store(f.heap.Payload(c, 1), memory.Word(c))
				return c
			},
			reason: ReasonFrameOverrun,
		},
		{
			name: "frame overrun",
			corrupt: func(f *fixture) memory.Addr {
				frame := frameOf(f, infotables.KindRetFun)
				f.arena.Store(f.arena.Offset(frame, 1), 1000)
				return frame
			},
			reason: ReasonFrameOverrun,
		},
		{
			name: "frame header",
			corrupt: func(f *fixture) memory.Addr {
				sp := f.heap.StackPointer(f.sample.Closures[infotables.KindStack])
				f.arena.Store(sp, 0x8)
				return sp
			},
			reason: ReasonBadInfo,
		},
		{
			name: "array count",
			corrupt: func(f *fixture) memory.Addr {
				c := f.sample.Closures[infotables.KindArrWords]
				f.arena.Store(f.heap.Payload(c, 0), memory.Word(^uint64(0)-1600))
				return c
			},
			reason: ReasonInvariant,
		},
		{
			name: "pointer array count",
			corrupt: func(f *fixture) memory.Addr {
				c := f.sample.Closures[infotables.KindMutArrPtrsFrozen]
				f.arena.Store(f.heap.Payload(c, 0), memory.Word(f.arena.Limit()))
				return c
			},
			reason: ReasonInvariant,
		},
	} {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t, config)
			addr := c.corrupt(f)
			report := f.walker.Walk(t.Context(), f.region)
			if len(report.Problems) != 1 {
				t.Fatalf("got %v", report.Problems)
			}
			problem := report.Problems[0]
			if problem.Reason != c.reason || problem.Addr != addr {
				t.Fatalf("got %v", problem)
			}
		})
	}
}

func TestWalkForwarding(t *testing.T) {
	config := heapconfigs.Default()
	config.HeapWords = 1 << 14
	f := newFixture(t, config)
	c := f.sample.Closures[infotables.KindPAP]
	f.heap.Forward(c, f.sample.Closures[infotables.KindConstrN1])

	f.walker.Forwarding = true
	report := f.walker.Walk(t.Context(), f.region)
	if len(report.Problems) > 0 {
		t.Fatalf("got %v", report.Problems)
	}
	// the walk cannot size past a forwarded closure
	if report.Closures[infotables.KindPAP].Objects != 0 {
		t.Fatal()
	}
	if report.Closures[infotables.KindBCO].Objects != 1 {
		t.Fatal()
	}
}

func TestWalkOverrun(t *testing.T) {
	config := heapconfigs.Default()
	config.HeapWords = 1 << 14
	f := newFixture(t, config)
	report := f.walker.Walk(t.Context(), Region{
		From: f.region.From,
		To:   f.arena.Offset(f.region.From, 1),
	})
	if len(report.Problems) != 1 || report.Problems[0].Reason != ReasonOverrun {
		t.Fatalf("got %v", report.Problems)
	}
}

func TestWalkParallel(t *testing.T) {
	eachConfig(t, func(t *testing.T, config heapconfigs.Config) {
		f := newFixture(t, config)
		whole := f.walker.Walk(t.Context(), f.region)

		for _, n := range []int{1, 2, 4, 100} {
			regions := f.walker.Split(f.region, n)
			if len(regions) > n {
				t.Fatalf("got %d regions", len(regions))
			}
			from := f.region.From
			for _, region := range regions {
				if region.From != from || region.To <= region.From {
					t.Fatalf("got %v", regions)
				}
				from = region.To
			}
			if from != f.region.To {
				t.Fatalf("got %v", regions)
			}

			report := f.walker.WalkParallel(t.Context(), regions, 3)
			if len(report.Problems) > 0 {
				t.Fatalf("got %v", report.Problems)
			}
			if !maps.Equal(report.Closures, whole.Closures) {
				t.Fatalf("got %v", report.Closures)
			}
			if !maps.Equal(report.Frames, whole.Frames) {
				t.Fatalf("got %v", report.Frames)
			}
			if report.DirtyCards != whole.DirtyCards {
				t.Fatalf("got %v", report.DirtyCards)
			}
		}
	})
}

func TestCheck(t *testing.T) {
	config := heapconfigs.Default()
	config.HeapWords = 1 << 14
	f := newFixture(t, config)

	report, err := f.check(t.Context(), f.region)
	if err != nil {
		t.Fatal(err)
	}
	if report.Total().Objects == 0 {
		t.Fatal()
	}

	c := f.sample.Closures[infotables.KindMutVarDirty]
	f.arena.Store(f.heap.Payload(c, 0), memory.Word(tagged.Plain(f.arena.Limit())))
	report, err = f.check(t.Context(), f.region)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("got %v", err)
	}
	if len(report.Problems) != 1 || report.Problems[0].Reason != ReasonBadField {
		t.Fatalf("got %v", report.Problems)
	}
	if !strings.Contains(f.logs.String(), "heap problem") {
		t.Fatalf("got %s", f.logs.String())
	}
}
