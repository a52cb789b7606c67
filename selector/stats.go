package selector

import (
	"math"
	"strconv"

	"github.com/axiomhq/hyperloglog"
	"github.com/brimdata/arbor/process"
	"github.com/brimdata/arbor/value"
)

// Summary describes the leaves of one output.  Numeric leaves feed Count,
// Min, Max, Mean and Stddev; other leaves are only counted in Labels.
// Distinct estimates the number of distinct leaves of either sort.
type Summary struct {
	Name     string  `json:"name"`
	Count    int64   `json:"count"`
	Labels   int64   `json:"labels,omitempty"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Stddev   float64 `json:"stddev"`
	Distinct uint64  `json:"distinct"`

	m2      float64
	sketch  *hyperloglog.Sketch
	scratch []byte
}

func newSummary(name string) *Summary {
	return &Summary{
		Name:   name,
		sketch: hyperloglog.New(),
	}
}

func (s *Summary) number(f float64) {
	if math.IsNaN(f) {
		return
	}
	s.Count++
	if s.Count == 1 {
		s.Min, s.Max = f, f
	} else {
		s.Min = math.Min(s.Min, f)
		s.Max = math.Max(s.Max, f)
	}
	// Welford's running mean and variance.
	delta := f - s.Mean
	s.Mean += delta / float64(s.Count)
	s.m2 += delta * (f - s.Mean)
	s.scratch = append(s.scratch[:0], 'n')
	s.scratch = strconv.AppendFloat(s.scratch, f, 'g', -1, 64)
	s.sketch.Insert(s.scratch)
}

func (s *Summary) label(l string) {
	s.Labels++
	s.scratch = append(s.scratch[:0], 's')
	s.scratch = append(s.scratch, l...)
	s.sketch.Insert(s.scratch)
}

func (s *Summary) finish() {
	if s.Count > 0 {
		s.Stddev = math.Sqrt(s.m2 / float64(s.Count))
	}
	s.Distinct = s.sketch.Estimate()
}

// Stats summarizes every output of a pass.
type Stats struct {
	Entries   int64
	Summaries []*Summary
	Complete  bool
}

var _ process.BulkSelector = (*Stats)(nil)

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) Begin(p *process.Pass) error {
	s.Entries = 0
	s.Complete = false
	s.Summaries = s.Summaries[:0]
	for _, o := range p.Plan.Outputs {
		s.Summaries = append(s.Summaries, newSummary(o.Name))
	}
	return nil
}

func (s *Stats) Process(_ int64, rec *process.Record) {
	s.Entries++
	for k, sum := range s.Summaries {
		it := rec.Leaves(k)
		for it.Next() {
			v := it.Value()
			if f, ok := v.Float64(); ok {
				sum.number(f)
			} else if v.Kind != value.Null {
				sum.label(v.Text())
			}
		}
	}
}

func (s *Stats) ProcessBulk(b *process.Batch) {
	s.Entries += int64(b.Len)
	for k, sum := range s.Summaries {
		for _, f := range b.Values(k) {
			sum.number(f)
		}
	}
}

func (s *Stats) Terminate(ok bool) {
	s.Complete = ok
	for _, sum := range s.Summaries {
		sum.finish()
	}
}
