// Package sanity walks arena regions closure by closure, the way a debug
// build checks the heap between collections.
package sanity

import (
	"fmt"

	"github.com/inhies/go-bytesize"
	"github.com/reusee/heaplayout/infotables"
	"github.com/reusee/heaplayout/memory"
	"gopkg.in/yaml.v2"
)

// Region is the half-open address range [From, To).
type Region struct {
	From memory.Addr
	To   memory.Addr
}

func (r Region) String() string {
	return fmt.Sprintf("[%v, %v)", r.From, r.To)
}

type Count struct {
	Objects int
	Words   int
}

func (c Count) add(words int) Count {
	c.Objects++
	c.Words += words
	return c
}

type Reason string

const (
	ReasonBadInfo      Reason = "bad info pointer"
	ReasonForwarded    Reason = "forwarding pointer outside collection"
	ReasonOverrun      Reason = "closure overruns region"
	ReasonInvariant    Reason = "layout invariant broken"
	ReasonShape        Reason = "shape disagrees with size"
	ReasonBadField     Reason = "pointer field to non-closure"
	ReasonFrameOverrun Reason = "frame overruns stack"
)

type Problem struct {
	Addr   memory.Addr
	Reason Reason
	Detail string
}

func (p Problem) String() string {
	if p.Detail == "" {
		return fmt.Sprintf("%v: %s", p.Addr, p.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", p.Addr, p.Reason, p.Detail)
}

// Report is the census of one or more walked regions.
type Report struct {
	WordBytes  int
	Regions    []Region
	Closures   map[infotables.Kind]Count
	Frames     map[infotables.Kind]Count
	SlopWords  int
	DirtyCards int
	Problems   []Problem
}

func newReport(wordBytes int) *Report {
	return &Report{
		WordBytes: wordBytes,
		Closures:  make(map[infotables.Kind]Count),
		Frames:    make(map[infotables.Kind]Count),
	}
}

func (r *Report) problem(addr memory.Addr, reason Reason, format string, args ...any) {
	r.Problems = append(r.Problems, Problem{
		Addr:   addr,
		Reason: reason,
		Detail: fmt.Sprintf(format, args...),
	})
}

// Merge adds other into r.
func (r *Report) Merge(other *Report) {
	r.Regions = append(r.Regions, other.Regions...)
	for kind, count := range other.Closures {
		c := r.Closures[kind]
		c.Objects += count.Objects
		c.Words += count.Words
		r.Closures[kind] = c
	}
	for kind, count := range other.Frames {
		c := r.Frames[kind]
		c.Objects += count.Objects
		c.Words += count.Words
		r.Frames[kind] = c
	}
	r.SlopWords += other.SlopWords
	r.DirtyCards += other.DirtyCards
	r.Problems = append(r.Problems, other.Problems...)
}

// Total sums the closure census.
func (r *Report) Total() Count {
	var total Count
	for _, count := range r.Closures {
		total.Objects += count.Objects
		total.Words += count.Words
	}
	return total
}

func (r *Report) Size(words int) bytesize.ByteSize {
	return bytesize.ByteSize(words * r.WordBytes)
}

type yamlCount struct {
	Objects int    `yaml:"objects"`
	Words   int    `yaml:"words"`
	Size    string `yaml:"size"`
}

type yamlReport struct {
	Regions    []string             `yaml:"regions"`
	Closures   map[string]yamlCount `yaml:"closures"`
	Frames     map[string]yamlCount `yaml:"frames,omitempty"`
	Total      yamlCount            `yaml:"total"`
	Slop       string               `yaml:"slop"`
	DirtyCards int                  `yaml:"dirty_cards"`
	Problems   []string             `yaml:"problems,omitempty"`
}

func (r *Report) yamlCount(c Count) yamlCount {
	return yamlCount{
		Objects: c.Objects,
		Words:   c.Words,
		Size:    r.Size(c.Words).String(),
	}
}

// YAML renders the report for humans and scripts.
func (r *Report) YAML() ([]byte, error) {
	out := yamlReport{
		Closures:   make(map[string]yamlCount),
		Total:      r.yamlCount(r.Total()),
		Slop:       r.Size(r.SlopWords).String(),
		DirtyCards: r.DirtyCards,
	}
	for _, region := range r.Regions {
		out.Regions = append(out.Regions, region.String())
	}
	for kind, count := range r.Closures {
		out.Closures[kind.String()] = r.yamlCount(count)
	}
	if len(r.Frames) > 0 {
		out.Frames = make(map[string]yamlCount)
		for kind, count := range r.Frames {
			out.Frames[kind.String()] = r.yamlCount(count)
		}
	}
	for _, p := range r.Problems {
		out.Problems = append(out.Problems, p.String())
	}
	bs, err := yaml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return bs, nil
}

// Globals exposes the report to a debug tap.
func (r *Report) Globals() map[string]any {
	closures := make(map[string]Count)
	for kind, count := range r.Closures {
		closures[kind.String()] = count
	}
	return map[string]any{
		"regions":  r.Regions,
		"closures": closures,
		"problems": r.Problems,
		"slop":     r.SlopWords,
	}
}
