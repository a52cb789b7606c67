// Package hist holds the aggregate of a draw pass: a one or two
// dimensional histogram over numeric or label axes.
package hist

import (
	"math"
	"strconv"
)

// Hist is a 1D or 2D histogram.  Counts holds (X.Bins+2) cells per row and
// Y.Bins+2 rows for a 2D histogram, underflow and overflow included.
type Hist struct {
	Title   string    `json:"title,omitempty"`
	Dim     int       `json:"dim"`
	X       Axis      `json:"x"`
	Y       Axis      `json:"y,omitempty"`
	Counts  []float64 `json:"counts"`
	Entries int64     `json:"entries"`
	// Weighted sums of the values filled on numeric axes.  They are
	// left at zero when an axis holds labels.
	SumW   float64 `json:"sumw"`
	SumWX  float64 `json:"sumwx"`
	SumWX2 float64 `json:"sumwx2"`
	SumWY  float64 `json:"sumwy,omitempty"`
	SumWY2 float64 `json:"sumwy2,omitempty"`
	SumWXY float64 `json:"sumwxy,omitempty"`
}

func New1D(x Axis) *Hist {
	return &Hist{Dim: 1, X: x, Counts: make([]float64, x.Bins+2)}
}

func New2D(x, y Axis) *Hist {
	return &Hist{Dim: 2, X: x, Y: y, Counts: make([]float64, (x.Bins+2)*(y.Bins+2))}
}

func (h *Hist) cell(ix, iy int) int {
	return iy*(h.X.Bins+2) + ix
}

// Add adds w to the bin (ix, iy).  iy is ignored in one dimension.
func (h *Hist) Add(ix, iy int, w float64) {
	if h.Dim == 1 {
		iy = 0
	}
	h.Counts[h.cell(ix, iy)] += w
	h.Entries++
}

// Observe accumulates the weighted sums for the values x and y.  y is
// ignored in one dimension.
func (h *Hist) Observe(x, y, w float64) {
	h.SumW += w
	h.SumWX += w * x
	h.SumWX2 += w * x * x
	if h.Dim == 2 {
		h.SumWY += w * y
		h.SumWY2 += w * y * y
		h.SumWXY += w * x * y
	}
}

// Mean returns the weighted means of the observed values.
func (h *Hist) Mean() (x, y float64) {
	if h.SumW == 0 {
		return 0, 0
	}
	return h.SumWX / h.SumW, h.SumWY / h.SumW
}

// RMS returns the weighted standard deviations of the observed values.
func (h *Hist) RMS() (x, y float64) {
	if h.SumW == 0 {
		return 0, 0
	}
	mx, my := h.Mean()
	x = math.Sqrt(math.Max(h.SumWX2/h.SumW-mx*mx, 0))
	y = math.Sqrt(math.Max(h.SumWY2/h.SumW-my*my, 0))
	return x, y
}

// At returns the content of bin (ix, iy).
func (h *Hist) At(ix, iy int) float64 {
	if h.Dim == 1 {
		iy = 0
	}
	return h.Counts[h.cell(ix, iy)]
}

// Sum is the total content including underflow and overflow.
func (h *Hist) Sum() float64 {
	var s float64
	for _, c := range h.Counts {
		s += c
	}
	return s
}

// Reset clears the contents and keeps the axes.
func (h *Hist) Reset() {
	for k := range h.Counts {
		h.Counts[k] = 0
	}
	h.Entries = 0
	h.SumW, h.SumWX, h.SumWX2 = 0, 0, 0
	h.SumWY, h.SumWY2, h.SumWXY = 0, 0, 0
}

func formatEdge(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
