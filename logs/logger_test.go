package logs

import (
	"bytes"
	"strings"
	"testing"

	"github.com/reusee/dscope"
)

func TestHandler(t *testing.T) {
	buf := new(bytes.Buffer)
	dscope.New(new(Module)).Fork(
		func() Writer {
			return buf
		},
	).Call(func(
		logger Logger,
	) {
		logger.With("arena", "nursery").Info("walk", "objects", 3)
		if isSystemdService() {
			return
		}
		if str := buf.String(); !strings.Contains(str, "arena=nursery") ||
			!strings.Contains(str, "objects=3") {
			t.Fatalf("got %v", str)
		}
	})
}

func TestToJournalKey(t *testing.T) {
	if key := toJournalKey("heap.span"); key != "HEAP_SPAN" {
		t.Fatalf("got %v", key)
	}
}
