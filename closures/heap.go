// Package closures is the layout contract between generated code, the
// allocator and the collector: how big every closure is, where its fields
// live, how its header changes in place.
package closures

import (
	"errors"
	"fmt"

	"github.com/reusee/heaplayout/heapconfigs"
	"github.com/reusee/heaplayout/infotables"
	"github.com/reusee/heaplayout/memory"
	"github.com/reusee/heaplayout/profiling"
	"github.com/reusee/heaplayout/tagged"
)

var (
	ErrForwarded      = errors.New("closure already forwarded")
	ErrUnknownKind    = errors.New("unknown closure kind")
	ErrNotAClosure    = errors.New("frame kind where a closure was expected")
	ErrNotAFrame      = errors.New("closure kind where a frame was expected")
	ErrLayoutMismatch = errors.New("layout descriptor disagrees with kind")
	ErrOverwriteGrows = errors.New("replacement closure larger than original")
)

// InvariantError reports a broken layout invariant. It is always raised with
// panic: the heap can no longer be walked once one is detected.
type InvariantError struct {
	Err    error
	Addr   memory.Addr
	Kind   infotables.Kind
	Detail string
}

func (e *InvariantError) Error() string {
	msg := fmt.Sprintf("%v: %v at %v", e.Err, e.Kind, e.Addr)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

func fatal(err error, addr memory.Addr, kind infotables.Kind, format string, args ...any) {
	panic(&InvariantError{
		Err:    err,
		Addr:   addr,
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
	})
}

// Heap interprets the closures of one arena. Every method except the header
// and card writers is read-only and safe to call from many threads.
type Heap struct {
	arena  *memory.Arena
	tables *infotables.Tables
	scheme tagged.Scheme
	hook   profiling.Hook
	Cards  Cards

	profiling bool
	debug     bool
	wordBytes int
	half      uint
	hdr       int
	thk       int
}

func New(
	config heapconfigs.Config,
	arena *memory.Arena,
	tables *infotables.Tables,
	scheme tagged.Scheme,
	hook profiling.Hook,
) *Heap {
	return &Heap{
		arena:  arena,
		tables: tables,
		scheme: scheme,
		hook:   hook,
		Cards: Cards{
			Bits: uint(config.CardBits),
		},
		profiling: config.Profiling,
		debug:     config.Debug,
		wordBytes: config.WordBytes,
		half:      uint(config.WordBytes * 4),
		hdr:       config.HeaderWords(),
		thk:       config.ThunkHeaderWords(),
	}
}

func (h *Heap) Arena() *memory.Arena {
	return h.arena
}

func (h *Heap) Tables() *infotables.Tables {
	return h.tables
}

func (h *Heap) Scheme() tagged.Scheme {
	return h.scheme
}

func (h *Heap) HeaderWords() int {
	return h.hdr
}

func (h *Heap) ThunkHeaderWords() int {
	return h.thk
}

// word returns the address of word i of closure c.
func (h *Heap) word(c memory.Addr, i int) memory.Addr {
	return c + memory.Addr(i*h.wordBytes)
}

func (h *Heap) field(c memory.Addr, i int) memory.Word {
	return h.arena.Load(h.word(c, i))
}

func (h *Heap) lowHalf(w memory.Word) int {
	return int(w & (1<<h.half - 1))
}

func (h *Heap) highHalf(w memory.Word) int {
	return int(w >> h.half & (1<<h.half - 1))
}
