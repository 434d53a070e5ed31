// Package profiling is the lifetime accounting hook the closure layer calls
// when a closure is created in place or overwritten.
package profiling

import "github.com/reusee/heaplayout/memory"

// Hook receives lifetime events. Implementations must tolerate calls from
// several threads.
type Hook interface {
	// Era is the current census era; events before the first era are ignored.
	Era() int
	RecordCreate(c memory.Addr)
	RecordDead(c memory.Addr, words int)
}

// Nop ignores every event.
type Nop struct{}

var _ Hook = Nop{}

func (Nop) Era() int                    { return 0 }
func (Nop) RecordCreate(memory.Addr)    {}
func (Nop) RecordDead(memory.Addr, int) {}
