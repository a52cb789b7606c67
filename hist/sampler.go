package hist

import (
	"math"
	"strconv"
)

// Sampler watches the values of one axis while a draw is sampling.  An
// axis that sees any label becomes a label axis, with sampled numbers
// taking their decimal text as label.
type Sampler struct {
	nums     []float64
	labels   []string
	min, max float64
	integral bool
}

func (s *Sampler) Number(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	if len(s.nums) == 0 {
		s.min, s.max = v, v
		s.integral = true
	}
	s.min = math.Min(s.min, v)
	s.max = math.Max(s.max, v)
	if s.integral && v != math.Round(v) {
		s.integral = false
	}
	s.nums = append(s.nums, v)
}

func (s *Sampler) Label(l string) {
	s.labels = append(s.labels, l)
}

func (s *Sampler) IsLabels() bool {
	return len(s.labels) > 0
}

func (s *Sampler) Len() int {
	return len(s.nums) + len(s.labels)
}

// Axis fixes the axis from everything sampled so far.
func (s *Sampler) Axis(r Range, defaultBins int) Axis {
	if s.IsLabels() {
		all := append([]string(nil), s.labels...)
		for _, v := range s.nums {
			all = append(all, strconv.FormatFloat(v, 'g', -1, 64))
		}
		return LabelAxis(all)
	}
	return NumericAxis(s.min, s.max, s.integral, r, defaultBins)
}
