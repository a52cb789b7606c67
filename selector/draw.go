package selector

import (
	"fmt"
	"math"
	"time"

	"github.com/brimdata/arbor/hist"
	"github.com/brimdata/arbor/plan"
	"github.com/brimdata/arbor/process"
	"github.com/brimdata/arbor/value"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const (
	// DefaultAccum is the number of samples kept before the axes are
	// fixed.
	DefaultAccum  = 10000
	DefaultBins1D = 200
	DefaultBins2D = 50
)

type sample struct {
	x, y value.Value
	w    float64
}

// Draw fills a 1D or 2D histogram.  The first Accum samples are kept
// while the axes are unknown; once the sampling threshold is reached (or
// the pass ends) the axes are derived from them, the samples replayed and
// later values binned directly.
//
// X and Y name the outputs drawn, Y empty for a 1D histogram.  Weight
// optionally names an output whose first leaf weighs each entry; entries
// with weight zero are skipped.  In two dimensions every pair of x and y
// leaves of an entry is a sample.
type Draw struct {
	Title  string
	X      string
	Y      string
	Weight string
	// Ranges override the binning heuristics of the x and y axes.
	Ranges [2]hist.Range
	Accum  int
	// OnMonitor, when set, receives the histogram every Monitor interval
	// once the axes are fixed.
	Monitor   time.Duration
	OnMonitor func(*hist.Hist)

	xi, yi, wi int
	samplers   [2]hist.Sampler
	samples    []sample
	hist       *hist.Hist
	ok         bool
	last       time.Time
	logger     *zap.Logger
}

var _ process.BulkSelector = (*Draw)(nil)

func NewDraw(x, y string) *Draw {
	return &Draw{X: x, Y: y, Accum: DefaultAccum}
}

func (d *Draw) Dim() int {
	if d.Y != "" {
		return 2
	}
	return 1
}

func (d *Draw) Begin(p *process.Pass) error {
	d.logger = p.Logger().Named("draw")
	d.samplers = [2]hist.Sampler{}
	d.samples = d.samples[:0]
	d.hist = nil
	d.ok = false
	d.last = time.Now()
	var err error
	if d.xi, err = lookup(p, d.X); err != nil {
		return err
	}
	d.yi, d.wi = -1, -1
	if d.Y != "" {
		if d.yi, err = lookup(p, d.Y); err != nil {
			return err
		}
	}
	if d.Weight != "" {
		if d.wi, err = lookup(p, d.Weight); err != nil {
			return err
		}
	}
	return nil
}

func lookup(p *process.Pass, name string) (int, error) {
	k := slices.IndexFunc(p.Plan.Outputs, func(o *plan.Output) bool { return o.Name == name })
	if k < 0 {
		return -1, fmt.Errorf("draw: no output %q", name)
	}
	return k, nil
}

func (d *Draw) Process(_ int64, rec *process.Record) {
	w := 1.0
	if d.wi >= 0 {
		it := rec.Leaves(d.wi)
		if !it.Next() {
			return
		}
		w, _ = it.Value().Float64()
		if w == 0 || math.IsNaN(w) {
			return
		}
	}
	xs := rec.Leaves(d.xi)
	if d.yi < 0 {
		for xs.Next() {
			d.add(xs.Value(), value.Value{}, w)
		}
	} else {
		for xs.Next() {
			x := xs.Value()
			ys := rec.Leaves(d.yi)
			for ys.Next() {
				d.add(x, ys.Value(), w)
			}
		}
	}
	d.monitor()
}

func (d *Draw) ProcessBulk(b *process.Batch) {
	xs := b.Values(d.xi)
	var ys, ws []float64
	if d.yi >= 0 {
		ys = b.Values(d.yi)
	}
	if d.wi >= 0 {
		ws = b.Values(d.wi)
	}
	var x, y value.Value
	for k := range xs {
		w := 1.0
		if ws != nil {
			if w = ws[k]; w == 0 || math.IsNaN(w) {
				continue
			}
		}
		x.SetFloat(xs[k])
		if ys != nil {
			y.SetFloat(ys[k])
		}
		d.add(x, y, w)
	}
	d.monitor()
}

func (d *Draw) add(x, y value.Value, w float64) {
	if d.hist != nil {
		d.fill(x, y, w)
		return
	}
	observe(&d.samplers[0], x)
	if d.yi >= 0 {
		observe(&d.samplers[1], y)
	}
	d.samples = append(d.samples, sample{x: x.Copy(), y: y.Copy(), w: w})
	if len(d.samples) >= d.accum() {
		d.fix()
	}
}

func (d *Draw) accum() int {
	if d.Accum > 0 {
		return d.Accum
	}
	return DefaultAccum
}

func observe(s *hist.Sampler, v value.Value) {
	if f, ok := v.Float64(); ok {
		s.Number(f)
	} else {
		s.Label(v.Text())
	}
}

// fix derives the axes from the samples and bins them.
func (d *Draw) fix() {
	bins := DefaultBins1D
	if d.yi >= 0 {
		bins = DefaultBins2D
	}
	x := d.samplers[0].Axis(d.Ranges[0], bins)
	x.Title = d.X
	if d.yi < 0 {
		d.hist = hist.New1D(x)
	} else {
		y := d.samplers[1].Axis(d.Ranges[1], bins)
		y.Title = d.Y
		d.hist = hist.New2D(x, y)
	}
	d.hist.Title = d.Title
	for _, s := range d.samples {
		d.fill(s.x, s.y, s.w)
	}
	if d.logger != nil {
		d.logger.Debug("axes fixed",
			zap.Int("samples", len(d.samples)),
			zap.Int("xbins", d.hist.X.Bins),
			zap.Int("ybins", d.hist.Y.Bins))
	}
	d.samples = nil
}

func (d *Draw) fill(x, y value.Value, w float64) {
	h := d.hist
	iy := 0
	if d.yi >= 0 {
		iy = bin(&h.Y, y)
	}
	h.Add(bin(&h.X, x), iy, w)
	if h.X.IsLabels() || d.yi >= 0 && h.Y.IsLabels() {
		return
	}
	fx, ok := x.Float64()
	if !ok {
		return
	}
	var fy float64
	if d.yi >= 0 {
		if fy, ok = y.Float64(); !ok {
			return
		}
	}
	h.Observe(fx, fy, w)
}

func bin(a *hist.Axis, v value.Value) int {
	if a.IsLabels() {
		return a.LabelBin(v.Text())
	}
	f, ok := v.Float64()
	if !ok {
		return 0
	}
	return a.Bin(f)
}

func (d *Draw) monitor() {
	if d.OnMonitor == nil || d.Monitor <= 0 || d.hist == nil {
		return
	}
	if now := time.Now(); now.Sub(d.last) >= d.Monitor {
		d.last = now
		d.OnMonitor(d.hist)
	}
}

// Terminate fixes the axes of a pass that ended while sampling.  A failed
// or aborted pass keeps its histogram only if something was sampled.
func (d *Draw) Terminate(ok bool) {
	d.ok = ok
	if d.hist == nil && (ok || len(d.samples) > 0) {
		d.fix()
	}
}

// Hist returns the histogram of the last pass or nil when a failed pass
// saw no samples.
func (d *Draw) Hist() *hist.Hist {
	return d.hist
}

// OK reports whether the last pass completed.
func (d *Draw) OK() bool {
	return d.ok
}

// Exprs returns the expressions a pass needs to feed d, each path once.
func (d *Draw) Exprs() []plan.Expr {
	var exprs []plan.Expr
	for _, path := range []string{d.X, d.Y, d.Weight} {
		if path == "" || slices.IndexFunc(exprs, func(e plan.Expr) bool { return e.Path == path }) >= 0 {
			continue
		}
		exprs = append(exprs, plan.Expr{Path: path})
	}
	return exprs
}
