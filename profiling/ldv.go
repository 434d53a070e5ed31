package profiling

import (
	"maps"
	"sync"
	"sync/atomic"

	"github.com/reusee/heaplayout/heapconfigs"
	"github.com/reusee/heaplayout/memory"
)

// LifetimeWord is the header word, counted from the info pointer, that holds
// the creation era of a profiled closure.
const LifetimeWord = 2

// Census accumulates closures that died.
type Census struct {
	Objects int
	Words   int
}

func (c Census) add(words int) Census {
	c.Objects++
	c.Words += words
	return c
}

// LDV stamps closures with their creation era and tallies dead closures by it.
type LDV struct {
	arena *memory.Arena
	shift uint
	era   atomic.Int64

	mu    sync.Mutex
	dead  Census
	byEra map[int]Census
}

var _ Hook = new(LDV)

func NewLDV(config heapconfigs.Config, arena *memory.Arena) *LDV {
	return &LDV{
		arena: arena,
		shift: uint(config.WordBytes * 4),
		byEra: make(map[int]Census),
	}
}

func (l *LDV) Era() int {
	return int(l.era.Load())
}

// NextEra advances to the next census era and returns it. The first call
// starts profiling.
func (l *LDV) NextEra() int {
	return int(l.era.Add(1))
}

func (l *LDV) lifetimeAddr(c memory.Addr) memory.Addr {
	return l.arena.Offset(c, LifetimeWord)
}

func (l *LDV) RecordCreate(c memory.Addr) {
	l.arena.Store(l.lifetimeAddr(c), memory.Word(l.Era())<<l.shift)
}

// CreatedEra reads the era stamped by RecordCreate.
func (l *LDV) CreatedEra(c memory.Addr) int {
	return int(l.arena.Load(l.lifetimeAddr(c)) >> l.shift)
}

func (l *LDV) RecordDead(c memory.Addr, words int) {
	era := l.CreatedEra(c)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dead = l.dead.add(words)
	l.byEra[era] = l.byEra[era].add(words)
}

func (l *LDV) Dead() Census {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dead
}

func (l *LDV) DeadByEra() map[int]Census {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.byEra)
}
