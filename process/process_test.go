package process_test

import (
	"context"
	"errors"
	"testing"

	"github.com/brimdata/arbor/basket"
	"github.com/brimdata/arbor/basket/mock"
	"github.com/brimdata/arbor/plan"
	"github.com/brimdata/arbor/process"
	"github.com/brimdata/arbor/tree"
	"github.com/brimdata/arbor/tree/treetest"
	"github.com/brimdata/arbor/value"
	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	pass       *process.Pass
	begun      int
	terminated int
	ok         bool
	entries    []int64
	records    [][]value.Value
	leaves     []int
	onProcess  func(*process.Pass, int64)
}

func (r *recorder) Begin(p *process.Pass) error {
	r.pass = p
	r.begun++
	return nil
}

func (r *recorder) Process(entry int64, rec *process.Record) {
	r.entries = append(r.entries, entry)
	vals := make([]value.Value, rec.Len())
	var leaves int
	for k := range vals {
		vals[k] = rec.Value(k).Copy()
		leaves += rec.Leaves(k).Len()
	}
	r.records = append(r.records, vals)
	r.leaves = append(r.leaves, leaves)
	if r.onProcess != nil {
		r.onProcess(r.pass, entry)
	}
}

func (r *recorder) Terminate(ok bool) {
	r.terminated++
	r.ok = ok
}

type batch struct {
	first  int64
	values [][]float64
}

type bulkRecorder struct {
	recorder
	batches []batch
}

func (b *bulkRecorder) ProcessBulk(x *process.Batch) {
	var vals [][]float64
	for k := range x.Names() {
		vals = append(vals, append([]float64(nil), x.Values(k)...))
	}
	b.batches = append(b.batches, batch{first: x.First, values: vals})
}

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

func floats(n int) []float64 {
	out := make([]float64, n)
	for k := range out {
		out[k] = float64(k) / 2
	}
	return out
}

func counter(t *testing.T, reg *prometheus.Registry, name, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if status == "" || m.GetLabel()[0].GetValue() == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestScalarRoundTrip(t *testing.T) {
	b := treetest.New("t").Compress("ZL")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(10)...), 3)
	f := b.Build(t)
	reg := prometheus.NewRegistry()
	var sel recorder
	err := process.Run(context.Background(), f.Tree, basket.NewMemory(f.Tree, f.Data), &sel, exprs("x"), process.Options{
		Budget:  1,
		Metrics: process.NewMetrics(reg),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sel.begun)
	assert.Equal(t, 1, sel.terminated)
	assert.True(t, sel.ok)
	require.Len(t, sel.entries, 10)
	for k, entry := range sel.entries {
		assert.EqualValues(t, k, entry)
		assert.Equal(t, value.Value{Kind: value.Int, I: int64(k)}, sel.records[k][0])
	}
	assert.EqualValues(t, 10, sel.pass.Entries())
	assert.NotNil(t, sel.pass.Logger())
	assert.Equal(t, 10.0, counter(t, reg, "arbor_process_entries_total", ""))
	assert.Equal(t, 1.0, counter(t, reg, "arbor_process_passes_total", "done"))
}

func TestCountedArrayLeaves(t *testing.T) {
	b := treetest.New("t")
	n := b.Branch(tree.NoBranch, scalar("n", tree.KindInt32), treetest.Entries[int32](0, 2, 1), 0)
	arr := tree.Branch{Name: "arr", Kind: tree.KindInt32, Count: n.ID, Count2: tree.NoBranch}
	b.Branch(tree.NoBranch, arr, treetest.Arrays([]int32{}, []int32{10, 11}, []int32{12}), 2)
	f := b.Build(t)
	var sel recorder
	err := process.Run(context.Background(), f.Tree, basket.NewMemory(f.Tree, f.Data), &sel, exprs("arr"), process.Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 1}, sel.leaves)
	require.Len(t, sel.records, 3)
	assert.Equal(t, "[]", sel.records[0][0].String())
	assert.Equal(t, "[10,11]", sel.records[1][0].String())
	assert.Equal(t, "[12]", sel.records[2][0].String())
}

func TestWindowAfterCounterPreRoll(t *testing.T) {
	b := treetest.New("t")
	ones := make([]int32, 100)
	for k := range ones {
		ones[k] = 1
	}
	n := b.Baskets(tree.NoBranch, scalar("n", tree.KindInt32), treetest.Entries(ones...), 40, 40, 20)
	arr := tree.Branch{Name: "arr", Kind: tree.KindInt32, Count: n.ID, Count2: tree.NoBranch}
	b.Baskets(tree.NoBranch, arr, treetest.Entries(seq(100)...), 30, 30, 40)
	f := b.Build(t)
	var sel recorder
	err := process.Run(context.Background(), f.Tree, basket.NewMemory(f.Tree, f.Data), &sel,
		[]plan.Expr{{Name: "v", Path: "arr[0]"}}, process.Options{First: 45, Budget: 100})
	require.NoError(t, err)
	require.Len(t, sel.entries, 55)
	for k, entry := range sel.entries {
		assert.EqualValues(t, 45+k, entry)
		assert.EqualValues(t, 45+k, sel.records[k][0].I)
	}
}

func TestBulk(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindFloat64), treetest.Entries(floats(10)...), 4)
	b.Branch(tree.NoBranch, scalar("y", tree.KindInt32), treetest.Entries(seq(10)...), 4)
	f := b.Build(t)

	var sel bulkRecorder
	err := process.Run(context.Background(), f.Tree, basket.NewMemory(f.Tree, f.Data), &sel, exprs("x", "y"), process.Options{})
	require.NoError(t, err)
	assert.Empty(t, sel.entries)
	require.Len(t, sel.batches, 3)
	assert.EqualValues(t, 8, sel.batches[2].first)
	assert.Equal(t, []float64{4, 4.5}, sel.batches[2].values[0])
	assert.Equal(t, []float64{8, 9}, sel.batches[2].values[1])
	assert.EqualValues(t, 10, sel.pass.Entries())

	// A window cutting into baskets is trimmed.
	sel = bulkRecorder{}
	err = process.Run(context.Background(), f.Tree, basket.NewMemory(f.Tree, f.Data), &sel, exprs("x", "y"), process.Options{First: 5, Entries: 4})
	require.NoError(t, err)
	require.Len(t, sel.batches, 2)
	assert.EqualValues(t, 5, sel.batches[0].first)
	assert.Equal(t, []float64{5, 6, 7}, sel.batches[0].values[1])
	assert.EqualValues(t, 8, sel.batches[1].first)
	assert.Equal(t, []float64{8}, sel.batches[1].values[1])
	assert.EqualValues(t, 4, sel.pass.Entries())

	// Selectors without a bulk hook get every entry.
	var plain recorder
	err = process.Run(context.Background(), f.Tree, basket.NewMemory(f.Tree, f.Data), &plain, exprs("x", "y"), process.Options{})
	require.NoError(t, err)
	assert.Len(t, plain.entries, 10)
}

// shortFetcher reports one entry less for the first basket of a branch.
type shortFetcher struct {
	basket.Fetcher
	branch tree.BranchID
}

func (s *shortFetcher) Fetch(ctx context.Context, reqs []basket.Request) ([]basket.Blob, error) {
	blobs, err := s.Fetcher.Fetch(ctx, reqs)
	for k := range blobs {
		if blobs[k].Branch == s.branch && blobs[k].Index == 0 {
			blobs[k].Entries--
		}
	}
	return blobs, err
}

func TestBulkMismatch(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindFloat64), treetest.Entries(floats(10)...), 5)
	b.Branch(tree.NoBranch, scalar("y", tree.KindInt32), treetest.Entries(seq(10)...), 5)
	f := b.Build(t)
	fetcher := &shortFetcher{Fetcher: basket.NewMemory(f.Tree, f.Data), branch: 1}

	var sel bulkRecorder
	err := process.Run(context.Background(), f.Tree, fetcher, &sel, exprs("x", "y"), process.Options{Mismatch: process.Fail})
	assert.ErrorIs(t, err, process.ErrMismatch)
	assert.Equal(t, 1, sel.terminated)
	assert.False(t, sel.ok)

	sel = bulkRecorder{}
	err = process.Run(context.Background(), f.Tree, fetcher, &sel, exprs("x", "y"), process.Options{})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, sel.entries)
	assert.Equal(t, value.Null, sel.records[4][1].Kind)
	require.Len(t, sel.batches, 1)
	assert.EqualValues(t, 5, sel.batches[0].first)
	assert.Equal(t, []float64{5, 6, 7, 8, 9}, sel.batches[0].values[1])
	assert.True(t, sel.ok)
}

// countingFetcher tracks how many baskets of each branch were fetched.
type countingFetcher struct {
	basket.Fetcher
	fetched map[tree.BranchID]int
	check   func(map[tree.BranchID]int)
}

func (c *countingFetcher) Fetch(ctx context.Context, reqs []basket.Request) ([]basket.Blob, error) {
	for _, req := range reqs {
		c.fetched[req.Branch]++
	}
	c.check(c.fetched)
	return c.Fetcher.Fetch(ctx, reqs)
}

func TestFetchKeepsBranchesInStep(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(100)...), 10)
	b.Branch(tree.NoBranch, scalar("y", tree.KindInt32), treetest.Entries(seq(100)...), 10)
	f := b.Build(t)
	size := int64(f.Tree.Lookup("x").Baskets[0].Bytes)
	for _, budget := range []int64{size, 3 * size} {
		fetcher := &countingFetcher{
			Fetcher: basket.NewMemory(f.Tree, f.Data),
			fetched: make(map[tree.BranchID]int),
			check: func(n map[tree.BranchID]int) {
				assert.LessOrEqual(t, n[1]-n[0], 1, "budget %d", budget)
				assert.LessOrEqual(t, n[0]-n[1], 1, "budget %d", budget)
			},
		}
		var sel bulkRecorder
		err := process.Run(context.Background(), f.Tree, fetcher, &sel, exprs("x", "y"), process.Options{Budget: budget})
		require.NoError(t, err)
		assert.EqualValues(t, 100, sel.pass.Entries())
		assert.Equal(t, map[tree.BranchID]int{0: 10, 1: 10}, fetcher.fetched)
	}
}

func TestAbortAfterFirstBasket(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(100)...), 10)
	f := b.Build(t)
	mem := basket.NewMemory(f.Tree, f.Data)
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), []basket.Request{{Branch: 0, Index: 0}}).DoAndReturn(mem.Fetch).Times(1)

	reg := prometheus.NewRegistry()
	sel := recorder{onProcess: func(p *process.Pass, _ int64) { p.Abort() }}
	err := process.Run(context.Background(), f.Tree, fetcher, &sel, exprs("x"), process.Options{
		Budget:  1,
		Metrics: process.NewMetrics(reg),
	})
	assert.ErrorIs(t, err, process.ErrAborted)
	assert.Equal(t, []int64{0}, sel.entries)
	assert.Equal(t, 1, sel.terminated)
	assert.False(t, sel.ok)
	assert.True(t, sel.pass.Aborted())
	assert.Equal(t, 1.0, counter(t, reg, "arbor_process_passes_total", "aborted"))
}

func TestFetchFailure(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(10)...), 5)
	f := b.Build(t)
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	boom := errors.New("boom")
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, boom)
	var sel recorder
	err := process.Run(context.Background(), f.Tree, fetcher, &sel, exprs("x"), process.Options{})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, sel.entries)
	assert.Equal(t, 1, sel.terminated)
	assert.False(t, sel.ok)
}

func TestContextCanceled(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(10)...), 5)
	f := b.Build(t)
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ []basket.Request) ([]basket.Blob, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})
	var sel recorder
	err := process.Run(ctx, f.Tree, fetcher, &sel, exprs("x"), process.Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, sel.ok)
}

type emptyFetcher struct {
	basket.Fetcher
}

func (e emptyFetcher) Fetch(ctx context.Context, reqs []basket.Request) ([]basket.Blob, error) {
	blobs, err := e.Fetcher.Fetch(ctx, reqs)
	for k := range blobs {
		blobs[k].Entries = 0
	}
	return blobs, err
}

func TestNoData(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(10)...), 5)
	f := b.Build(t)
	var sel recorder
	err := process.Run(context.Background(), f.Tree, emptyFetcher{basket.NewMemory(f.Tree, f.Data)}, &sel, exprs("x"), process.Options{})
	assert.ErrorIs(t, err, process.ErrNoData)
	assert.Equal(t, 1, sel.terminated)
	assert.False(t, sel.ok)
}

func TestDirectBranch(t *testing.T) {
	b := treetest.New("t")
	b.Direct(tree.NoBranch, scalar("d", tree.KindInt32), treetest.Entries[int32](4, 5, 6))
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries[int32](1, 2, 3), 2)
	f := b.Build(t)
	var sel recorder
	err := process.Run(context.Background(), f.Tree, basket.NewMemory(f.Tree, f.Data), &sel, exprs("d", "x"), process.Options{})
	require.NoError(t, err)
	require.Len(t, sel.records, 3)
	assert.EqualValues(t, 6, sel.records[2][0].I)
	assert.EqualValues(t, 3, sel.records[2][1].I)
}

func TestResolutionFailsBeforeBegin(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(10)...), 5)
	f := b.Build(t)
	ctrl := gomock.NewController(t)
	var sel recorder
	err := process.Run(context.Background(), f.Tree, mock.NewMockFetcher(ctrl), &sel, exprs("x", "nope"), process.Options{})
	assert.ErrorIs(t, err, plan.ErrNoBranch)
	assert.Zero(t, sel.begun)
	assert.Zero(t, sel.terminated)
}

func TestProgress(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq(100)...), 10)
	f := b.Build(t)
	var reports []float64
	var sel recorder
	err := process.Run(context.Background(), f.Tree, basket.NewMemory(f.Tree, f.Data), &sel, exprs("x"), process.Options{
		Budget:   1,
		Progress: func(p float64) { reports = append(reports, p) },
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(reports), 2)
	assert.Zero(t, reports[0])
	assert.Equal(t, 1.0, reports[len(reports)-1])
	for k := 1; k < len(reports); k++ {
		assert.GreaterOrEqual(t, reports[k], reports[k-1])
	}
}

func TestMismatchPolicyText(t *testing.T) {
	var m process.MismatchPolicy
	require.NoError(t, m.UnmarshalText([]byte("FAIL")))
	assert.Equal(t, process.Fail, m)
	b, err := process.Degrade.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "degrade", string(b))
	assert.Error(t, m.UnmarshalText([]byte("panic")))
}
