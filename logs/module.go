package logs

import (
	"io"
	"os"

	"github.com/reusee/dscope"
)

type Module struct {
	dscope.Module
}

// Span identifies one unit of work, such as a heap walk, in log records.
type Span string

type spanKey struct{}

var SpanKey spanKey

type Writer io.Writer

func (Module) Writer() Writer {
	return os.Stderr
}
