package hist

import (
	"math"
	"sort"
)

// EmptyLabel stands for the empty string on a label axis.
const EmptyLabel = "<empty>"

// Range fixes an axis instead of deriving it from samples.  A zero Range
// leaves every choice to the binning heuristics.  Bins alone sets the bin
// count and turns off the one-bin-per-integer heuristic; the limits still
// come from the samples.
type Range struct {
	Bins int     `json:"bins,omitempty" yaml:"bins"`
	Min  float64 `json:"min,omitempty" yaml:"min"`
	Max  float64 `json:"max,omitempty" yaml:"max"`
}

func (r Range) explicit() bool {
	return r.Bins > 0 && r.Max > r.Min
}

// Axis maps values to bins.  A numeric axis has Bins regular bins between
// Min and Max plus an underflow bin 0 and an overflow bin Bins+1.  A label
// axis has one bin per label, bin 0 taking unknown labels.
type Axis struct {
	Title  string   `json:"title,omitempty"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	Bins   int      `json:"bins"`
	Labels []string `json:"labels,omitempty"`
	index  map[string]int
}

// NumericAxis derives an axis from the range of sampled values.
func NumericAxis(min, max float64, integral bool, r Range, defaultBins int) Axis {
	if r.explicit() {
		return Axis{Min: r.Min, Max: r.Max, Bins: r.Bins}
	}
	nbins := defaultBins
	if r.Bins > 0 {
		nbins = r.Bins
	}
	if nbins <= 0 {
		nbins = 100
	}
	switch {
	case min >= max:
		max = min
		switch {
		case math.Abs(min) < 100:
			min--
			max++
		case min > 0:
			min *= 0.9
			max *= 1.1
		default:
			min *= 1.1
			max *= 0.9
		}
	case integral && r.Bins <= 0 && max-min >= 1 && max-min < float64(nbins)*10:
		min--
		max++
		nbins = int(math.Round(max - min))
	default:
		max += (max - min) / float64(nbins)
	}
	return Axis{Min: min, Max: max, Bins: nbins}
}

// LabelAxis builds an axis of the sorted distinct labels.
func LabelAxis(labels []string) Axis {
	seen := make(map[string]bool, len(labels))
	var sorted []string
	for _, l := range labels {
		if l == "" {
			l = EmptyLabel
		}
		if !seen[l] {
			seen[l] = true
			sorted = append(sorted, l)
		}
	}
	sort.Strings(sorted)
	a := Axis{Bins: len(sorted), Labels: sorted, Min: 0, Max: float64(len(sorted))}
	a.buildIndex()
	return a
}

func (a *Axis) buildIndex() {
	a.index = make(map[string]int, len(a.Labels))
	for k, l := range a.Labels {
		a.index[l] = k + 1
	}
}

func (a *Axis) IsLabels() bool {
	return a.Labels != nil
}

// Bin returns the bin of a numeric value.
func (a *Axis) Bin(v float64) int {
	if math.IsNaN(v) || v < a.Min {
		return 0
	}
	if v >= a.Max {
		return a.Bins + 1
	}
	bin := int(math.Floor((v-a.Min)*float64(a.Bins)/(a.Max-a.Min))) + 1
	if bin > a.Bins {
		// Rounding just below Max.
		bin = a.Bins
	}
	return bin
}

// LabelBin returns the bin of a label or 0 when the label is unknown.
func (a *Axis) LabelBin(label string) int {
	if label == "" {
		label = EmptyLabel
	}
	if a.index == nil {
		a.buildIndex()
	}
	return a.index[label]
}

// Low returns the lower edge of regular bin k.
func (a *Axis) Low(k int) float64 {
	return a.Min + float64(k-1)*(a.Max-a.Min)/float64(a.Bins)
}

// Label returns the text of regular bin k.
func (a *Axis) Label(k int) string {
	if a.IsLabels() {
		if k >= 1 && k <= len(a.Labels) {
			return a.Labels[k-1]
		}
		return ""
	}
	return formatEdge(a.Low(k))
}
