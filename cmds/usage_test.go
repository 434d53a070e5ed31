package cmds

import (
	"bytes"
	"strings"
	"testing"
)

func TestUsage(t *testing.T) {
	executor := NewExecutor()
	executor.Define("walk", Sub(map[string]*Command{
		"from": Func(func(uint64) {
		}).Desc("FROM"),
		"census": Sub(map[string]*Command{
			"yaml": Func(func() {}).Desc("YAML"),
		}).Desc("CENSUS"),
	}).Desc("WALK"))

	buf := new(bytes.Buffer)
	executor.PrintUsage(buf)
	out := buf.String()
	for _, want := range []string{
		"walk\tWALK",
		"  from\tFROM",
		"  census\tCENSUS",
		"    yaml\tYAML",
		"-h (help, -help, --help)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}
