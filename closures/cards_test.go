package closures

import (
	"slices"
	"sync"
	"testing"

	"github.com/reusee/heaplayout/heapconfigs"
	"github.com/reusee/heaplayout/infotables"
	"github.com/reusee/heaplayout/memory"
)

func TestCardsArithmetic(t *testing.T) {
	cards := Cards{Bits: 7}
	if cards.Capacity() != 128 {
		t.Fatalf("got %v", cards.Capacity())
	}
	for n, want := range map[int]int{
		0:   0,
		1:   1,
		128: 1,
		129: 2,
		300: 3,
	} {
		if got := cards.CountFor(n); got != want {
			t.Fatalf("%d: got %v", n, got)
		}
	}
	for _, bits := range []uint{0, 3, 7, 10} {
		cards := Cards{Bits: bits}
		for k := 1; k <= 5; k++ {
			if got := cards.CountFor(k * cards.Capacity()); got != k {
				t.Fatalf("%d/%d: got %v", bits, k, got)
			}
			if got := cards.CountFor(k*cards.Capacity() + 1); got != k+1 {
				t.Fatalf("%d/%d: got %v", bits, k, got)
			}
		}
	}
	if cards.Of(130) != 1 || cards.Of(127) != 0 {
		t.Fatal()
	}
	if lo, hi := cards.Range(2, 300); lo != 256 || hi != 300 {
		t.Fatalf("got %v %v", lo, hi)
	}
	if lo, hi := cards.Range(0, 300); lo != 0 || hi != 128 {
		t.Fatalf("got %v %v", lo, hi)
	}
}

func newTestArray(t *testing.T, h *testHeap, n int) memory.Addr {
	info := h.install(t, infotables.Definition{
		Kind: infotables.KindMutArrPtrsClean,
	})
	c := h.alloc(t, h.MutArrSize(n)+h.CardTableWords(n))
	h.InstallPointerArrayHeader(c, info, 0, n)
	return c
}

func TestCardTable(t *testing.T) {
	eachConfig(t, func(t *testing.T, config heapconfigs.Config) {
		h := newTestHeap(t, config)
		if h.CardTableWords(300) != 1 {
			t.Fatalf("got %v", h.CardTableWords(300))
		}

		array := newTestArray(t, h, 300)
		if h.CardAddress(array, 0) != h.Element(array, 300) {
			t.Fatalf("got %v", h.CardAddress(array, 0))
		}
		h.arena.Store(h.Element(array, 299), 42)

		for _, n := range []int{1, 128, 129, 300, 1000} {
			array := newTestArray(t, h, n)
			count := h.Cards.CountFor(n)
			for i := 1; i < count; i++ {
				if h.CardAddress(array, i) != h.CardAddress(array, i-1)+1 {
					t.Fatalf("%d/%d: got %v", n, i, h.CardAddress(array, i))
				}
			}
			last := h.CardAddress(array, count-1)
			if end := h.arena.Offset(array, h.Footprint(array)); last >= end {
				t.Fatalf("%d: got %v, end %v", n, last, end)
			}
		}

		if n := len(slices.Collect(h.DirtyCards(array))); n != 0 {
			t.Fatalf("got %v", n)
		}
		h.MarkCard(array, 130)
		h.MarkCard(array, 299)
		h.MarkCard(array, 256)
		if got := slices.Collect(h.DirtyCards(array)); !slices.Equal(got, []int{1, 2}) {
			t.Fatalf("got %v", got)
		}
		if h.CardDirty(array, 0) || !h.CardDirty(array, 1) {
			t.Fatal()
		}
		if h.arena.Load(h.Element(array, 299)) != 42 {
			t.Fatal("element clobbered")
		}

		for i := range h.DirtyCards(array) {
			if i != 1 {
				t.Fatalf("got %v", i)
			}
			break
		}

		h.ClearCards(array)
		if n := len(slices.Collect(h.DirtyCards(array))); n != 0 {
			t.Fatalf("got %v", n)
		}
	})
}

func TestConcurrentMarkCard(t *testing.T) {
	config := heapconfigs.Default()
	config.WordBytes = 4
	h := newTestHeap(t, config)
	array := newTestArray(t, h, 1000)
	if h.CardTableWords(1000) != 2 {
		t.Fatalf("got %v", h.CardTableWords(1000))
	}

	wg := new(sync.WaitGroup)
	for card := range h.Cards.CountFor(1000) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lo, hi := h.Cards.Range(card, 1000)
			for i := lo; i < hi; i++ {
				h.MarkCard(array, i)
			}
		}()
	}
	wg.Wait()

	got := slices.Collect(h.DirtyCards(array))
	if !slices.Equal(got, []int{0, 1, 2, 3, 4, 5, 6, 7}) {
		t.Fatalf("got %v", got)
	}
}

func TestCardsOnNonArray(t *testing.T) {
	h := newTestHeap(t, heapconfigs.Default())
	c := h.closure(t, h.install(t, infotables.Definition{
		Kind: infotables.KindArrWords,
	}), 4)
	expectPanic(t, ErrUnknownKind, func() {
		h.MarkCard(c, 0)
	})
}
