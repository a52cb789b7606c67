package selector_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/brimdata/arbor/basket"
	"github.com/brimdata/arbor/hist"
	"github.com/brimdata/arbor/plan"
	"github.com/brimdata/arbor/process"
	"github.com/brimdata/arbor/selector"
	"github.com/brimdata/arbor/tree"
	"github.com/brimdata/arbor/tree/treetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scalar(name string, kind tree.Kind) tree.Branch {
	return tree.Branch{Name: name, Kind: kind, Count: tree.NoBranch, Count2: tree.NoBranch}
}

func exprs(paths ...string) []plan.Expr {
	out := make([]plan.Expr, len(paths))
	for k, p := range paths {
		out[k] = plan.Expr{Path: p}
	}
	return out
}

func seq(n int) []int32 {
	out := make([]int32, n)
	for k := range out {
		out[k] = int32(k)
	}
	return out
}

func strs(vals ...string) [][]byte {
	out := make([][]byte, len(vals))
	for k, v := range vals {
		out[k] = treetest.TString(v)
	}
	return out
}

func run(t *testing.T, f *treetest.Fixture, sel process.Selector, paths ...string) error {
	t.Helper()
	return process.Run(context.Background(), f.Tree, basket.NewMemory(f.Tree, f.Data), sel, exprs(paths...), process.Options{})
}

func TestDrawIntegral(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries[int32](1, 2, 2, 3, 5), 0)
	f := b.Build(t)
	draw := selector.NewDraw("x", "")
	require.NoError(t, run(t, f, draw, "x"))
	h := draw.Hist()
	require.NotNil(t, h)
	assert.True(t, draw.OK())
	assert.Equal(t, 1, h.Dim)
	assert.Equal(t, 0.0, h.X.Min)
	assert.Equal(t, 6.0, h.X.Max)
	assert.Equal(t, 6, h.X.Bins)
	assert.Equal(t, "x", h.X.Title)
	assert.Equal(t, []float64{0, 0, 1, 2, 1, 0, 1, 0}, h.Counts)
	assert.Equal(t, 5.0, h.Sum())
	assert.Equal(t, 5.0, h.SumW)
	assert.Equal(t, 13.0, h.SumWX)
	assert.Equal(t, 43.0, h.SumWX2)
	assert.Zero(t, h.SumWY)
}

type abortingDraw struct {
	*selector.Draw
	pass *process.Pass
}

func (a *abortingDraw) Begin(p *process.Pass) error {
	a.pass = p
	return a.Draw.Begin(p)
}

func (a *abortingDraw) ProcessBulk(b *process.Batch) {
	a.Draw.ProcessBulk(b)
	a.pass.Abort()
}

func TestDrawAbortKeepsSamples(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(100)...), 10)
	f := b.Build(t)
	sel := &abortingDraw{Draw: selector.NewDraw("x", "")}
	err := process.Run(context.Background(), f.Tree, basket.NewMemory(f.Tree, f.Data), sel, exprs("x"), process.Options{Budget: 1})
	assert.ErrorIs(t, err, process.ErrAborted)
	assert.False(t, sel.OK())
	h := sel.Hist()
	require.NotNil(t, h)
	assert.Equal(t, 10.0, h.Sum())
	assert.Equal(t, -1.0, h.X.Min)
	assert.Equal(t, 10.0, h.X.Max)
	assert.Equal(t, 11, h.X.Bins)
}

func TestDrawFailureWithoutSamples(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(10)...), 5)
	f := b.Build(t)
	draw := selector.NewDraw("x", "")
	fetcher := failing{basket.NewMemory(f.Tree, f.Data), 0}
	err := process.Run(context.Background(), f.Tree, fetcher, draw, exprs("x"), process.Options{})
	require.Error(t, err)
	assert.False(t, draw.OK())
	assert.Nil(t, draw.Hist())
}

func TestDrawMissingOutput(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(10)...), 5)
	f := b.Build(t)
	draw := selector.NewDraw("x", "y")
	err := run(t, f, draw, "x")
	assert.ErrorContains(t, err, `no output "y"`)
	assert.Nil(t, draw.Hist())
}

func TestDraw2DPairsLeaves(t *testing.T) {
	b := treetest.New("t")
	n := b.Branch(tree.NoBranch, scalar("n", tree.KindInt32), treetest.Entries[int32](0, 2, 1), 0)
	arr := tree.Branch{Name: "arr", Kind: tree.KindInt32, Count: n.ID, Count2: tree.NoBranch}
	b.Branch(tree.NoBranch, arr, treetest.Arrays([]int32{}, []int32{10, 11}, []int32{12}), 0)
	b.Branch(tree.NoBranch, scalar("y", tree.KindInt32), treetest.Entries[int32](5, 6, 7), 0)
	f := b.Build(t)
	draw := selector.NewDraw("arr", "y")
	require.Equal(t, 2, draw.Dim())
	require.NoError(t, run(t, f, draw, "arr", "y"))
	h := draw.Hist()
	require.NotNil(t, h)
	assert.Equal(t, 2, h.Dim)
	assert.EqualValues(t, 3, h.Entries)
	assert.Equal(t, hist.Axis{Title: "arr", Min: 9, Max: 13, Bins: 4}, h.X)
	assert.Equal(t, hist.Axis{Title: "y", Min: 5, Max: 8, Bins: 3}, h.Y)
	assert.Equal(t, 1.0, h.At(2, 2))
	assert.Equal(t, 1.0, h.At(3, 2))
	assert.Equal(t, 1.0, h.At(4, 3))
	assert.Equal(t, 3.0, h.Sum())
	assert.Equal(t, 3.0, h.SumW)
	assert.Equal(t, 33.0, h.SumWX)
	assert.Equal(t, 19.0, h.SumWY)
	assert.Equal(t, 121.0, h.SumWY2)
	assert.Equal(t, 210.0, h.SumWXY)
}

func TestDrawLabels(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("s", tree.KindTString), strs("b", "", "a", "b"), 2)
	f := b.Build(t)
	draw := selector.NewDraw("s", "")
	require.NoError(t, run(t, f, draw, "s"))
	h := draw.Hist()
	require.NotNil(t, h)
	assert.Equal(t, []string{hist.EmptyLabel, "a", "b"}, h.X.Labels)
	assert.Equal(t, []float64{0, 1, 1, 2, 0}, h.Counts)
	assert.Equal(t, "b", h.X.Label(3))
	assert.Zero(t, h.SumW)
	assert.Zero(t, h.SumWX)
}

func TestDrawWeight(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries[int32](1, 2, 3), 0)
	b.Branch(tree.NoBranch, scalar("w", tree.KindFloat64), treetest.Entries(0.5, 0, 2), 0)
	f := b.Build(t)
	draw := selector.NewDraw("x", "")
	draw.Weight = "w"
	require.NoError(t, run(t, f, draw, "x", "w"))
	h := draw.Hist()
	require.NotNil(t, h)
	assert.EqualValues(t, 2, h.Entries)
	assert.Equal(t, 4, h.X.Bins)
	assert.Equal(t, 0.5, h.At(2, 0))
	assert.Equal(t, 0.0, h.At(3, 0))
	assert.Equal(t, 2.0, h.At(4, 0))
	assert.Equal(t, 2.5, h.SumW)
	assert.Equal(t, 6.5, h.SumWX)
}

func TestDrawAccumAndMonitor(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(10)...), 0)
	f := b.Build(t)
	draw := selector.NewDraw("x", "")
	draw.Accum = 3
	draw.Ranges[0] = hist.Range{Bins: 10, Min: 0, Max: 10}
	var monitored []float64
	draw.Monitor = time.Nanosecond
	draw.OnMonitor = func(h *hist.Hist) {
		monitored = append(monitored, h.Sum())
	}
	require.NoError(t, run(t, f, draw, "x"))
	h := draw.Hist()
	require.NotNil(t, h)
	for k := 1; k <= 10; k++ {
		assert.Equal(t, 1.0, h.At(k, 0), "bin %d", k)
	}
	require.NotEmpty(t, monitored)
	assert.Equal(t, 10.0, monitored[len(monitored)-1])
}

// failing serves baskets whose index is below limit and fails the others.
type failing struct {
	basket.Fetcher
	limit int
}

func (f failing) Fetch(ctx context.Context, reqs []basket.Request) ([]basket.Blob, error) {
	for _, r := range reqs {
		if r.Index >= f.limit {
			return nil, errors.New("unavailable")
		}
	}
	return f.Fetcher.Fetch(ctx, reqs)
}

func TestDump(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(5)...), 0)
	b.Branch(tree.NoBranch, scalar("s", tree.KindTString), strs("a", "b", "c", "d", "e"), 0)
	f := b.Build(t)
	dump := selector.NewDump(3)
	require.NoError(t, run(t, f, dump, "x", "s"))
	assert.True(t, dump.Complete)
	assert.Equal(t, []int64{0, 1, 2}, dump.Entries)
	require.Len(t, dump.Records, 3)
	assert.EqualValues(t, 2, dump.Records[2]["x"].I)
	assert.Equal(t, "c", dump.Records[2]["s"].S)
}

func TestDumpKeepsPartialRecords(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(10)...), 5)
	f := b.Build(t)
	dump := selector.NewDump(0)
	fetcher := failing{basket.NewMemory(f.Tree, f.Data), 1}
	err := process.Run(context.Background(), f.Tree, fetcher, dump, exprs("x"), process.Options{Budget: 1})
	require.Error(t, err)
	assert.False(t, dump.Complete)
	assert.Len(t, dump.Records, 5)
}

func TestStats(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindFloat64), treetest.Entries(1.0, 2, 3, 4), 2)
	b.Branch(tree.NoBranch, scalar("s", tree.KindTString), strs("a", "b", "a", ""), 0)
	f := b.Build(t)
	stats := selector.NewStats()
	require.NoError(t, run(t, f, stats, "x", "s"))
	assert.True(t, stats.Complete)
	assert.EqualValues(t, 4, stats.Entries)
	require.Len(t, stats.Summaries, 2)
	x := stats.Summaries[0]
	assert.Equal(t, "x", x.Name)
	assert.EqualValues(t, 4, x.Count)
	assert.Equal(t, 1.0, x.Min)
	assert.Equal(t, 4.0, x.Max)
	assert.InDelta(t, 2.5, x.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), x.Stddev, 1e-12)
	assert.InDelta(t, 4, float64(x.Distinct), 1)
	s := stats.Summaries[1]
	assert.Zero(t, s.Count)
	assert.EqualValues(t, 4, s.Labels)
	assert.InDelta(t, 3, float64(s.Distinct), 1)
}

func TestStatsBulk(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(20)...), 10)
	f := b.Build(t)
	stats := selector.NewStats()
	require.NoError(t, run(t, f, stats, "x"))
	assert.EqualValues(t, 20, stats.Entries)
	x := stats.Summaries[0]
	assert.EqualValues(t, 20, x.Count)
	assert.Equal(t, 19.0, x.Max)
	assert.InDelta(t, 9.5, x.Mean, 1e-12)
}

func TestRaw(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(4)...), 2)
	f := b.Build(t)
	var sum int64
	var finished []bool
	raw := selector.NewRaw(func(_ int64, rec *process.Record) {
		sum += rec.Value(0).I
	})
	raw.Finish = func(ok bool) { finished = append(finished, ok) }
	require.NoError(t, run(t, f, raw, "x"))
	assert.EqualValues(t, 6, sum)
	assert.Equal(t, []bool{true}, finished)
	assert.NotNil(t, raw.Pass())
}

func TestTrack(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(6)...), 3)
	f := b.Build(t)

	stats := selector.NewStats()
	tracked := selector.Track(stats)
	assert.Nil(t, tracked.Pass())
	_, bulk := tracked.(process.BulkSelector)
	assert.True(t, bulk)
	require.NoError(t, run(t, f, tracked, "x"))
	require.NotNil(t, tracked.Pass())
	assert.EqualValues(t, 6, tracked.Pass().Entries())
	assert.EqualValues(t, 6, stats.Entries)

	_, bulk = selector.Track(selector.NewDump(1)).(process.BulkSelector)
	assert.False(t, bulk)
}
