package closures

import (
	"errors"
	"fmt"
	"testing"

	"github.com/reusee/heaplayout/heapconfigs"
	"github.com/reusee/heaplayout/infotables"
	"github.com/reusee/heaplayout/memory"
	"github.com/reusee/heaplayout/profiling"
	"github.com/reusee/heaplayout/tagged"
)

type testHeap struct {
	*Heap
	builder *infotables.Builder
	ldv     *profiling.LDV
}

func newTestHeap(t *testing.T, config heapconfigs.Config) *testHeap {
	t.Helper()
	arena, err := memory.NewArena(memory.Addr(config.HeapBase), config.WordBytes, 1<<14)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		arena.Close()
	})
	tables := infotables.NewTables(config, arena)
	ldv := profiling.NewLDV(config, arena)
	var hook profiling.Hook = profiling.Nop{}
	if config.Profiling {
		hook = ldv
	}
	return &testHeap{
		Heap:    New(config, arena, tables, tagged.NewScheme(config), hook),
		builder: infotables.NewBuilder(tables),
		ldv:     ldv,
	}
}

func (h *testHeap) install(t *testing.T, def infotables.Definition) memory.Addr {
	t.Helper()
	info, err := h.builder.Install(def)
	if err != nil {
		t.Fatal(err)
	}
	return info
}

func (h *testHeap) alloc(t *testing.T, n int) memory.Addr {
	t.Helper()
	c, err := h.arena.Alloc(n)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// closure allocates a closure of n words and installs info as its header.
func (h *testHeap) closure(t *testing.T, info memory.Addr, n int) memory.Addr {
	t.Helper()
	c := h.alloc(t, n)
	h.InstallHeader(c, info, 0)
	return c
}

func eachConfig(t *testing.T, fn func(t *testing.T, config heapconfigs.Config)) {
	for _, wordBytes := range []int{4, 8} {
		for _, profiled := range []bool{false, true} {
			for _, placement := range []heapconfigs.Placement{
				heapconfigs.PlacementEnd,
				heapconfigs.PlacementBeginning,
			} {
				config := heapconfigs.Default()
				config.WordBytes = wordBytes
				config.Profiling = profiled
				config.Placement = placement
				config.Debug = true
				t.Run(fmt.Sprintf("%d/%v/%v", wordBytes, profiled, placement), func(t *testing.T) {
					fn(t, config)
				})
			}
		}
	}
}

func expectPanic(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		p := recover()
		if p == nil {
			t.Fatal("should panic")
		}
		err, ok := p.(error)
		if !ok || !errors.Is(err, target) {
			t.Fatalf("got %v", p)
		}
		var invariant *InvariantError
		if !errors.As(err, &invariant) {
			t.Fatalf("got %T", p)
		}
	}()
	fn()
}
