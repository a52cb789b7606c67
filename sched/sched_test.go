package sched

import (
	"context"
	"testing"

	"github.com/brimdata/arbor/basket"
	"github.com/brimdata/arbor/plan"
	"github.com/brimdata/arbor/tree"
	"github.com/brimdata/arbor/tree/treetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scalar(name string, kind tree.Kind) tree.Branch {
	return tree.Branch{Name: name, Kind: kind, Count: tree.NoBranch, Count2: tree.NoBranch}
}

func seq[T int16 | int32 | int64](n int) []T {
	out := make([]T, n)
	for k := range out {
		out[k] = T(k)
	}
	return out
}

func resolve(t *testing.T, f *treetest.Fixture, opts plan.Options, paths ...string) *plan.Plan {
	t.Helper()
	var exprs []plan.Expr
	for _, p := range paths {
		exprs = append(exprs, plan.Expr{Path: p})
	}
	p, err := plan.Resolve(f.Tree, nil, exprs, opts)
	require.NoError(t, err)
	return p
}

func TestStageBudgetBound(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("a", tree.KindInt64), treetest.Entries(seq[int64](100)...), 10)
	b.Branch(tree.NoBranch, scalar("b", tree.KindInt32), treetest.Entries(seq[int32](100)...), 7)
	b.Branch(tree.NoBranch, scalar("c", tree.KindInt16), treetest.Entries(seq[int16](100)...), 25)
	f := b.Build(t)
	p := resolve(t, f, plan.Options{}, "a", "b", "c")
	mem := basket.NewMemory(f.Tree, f.Data)

	const budget = 150
	var largest int64
	for _, br := range f.Tree.Branches() {
		for _, bk := range br.Baskets {
			if int64(bk.Bytes) > largest {
				largest = int64(bk.Bytes)
			}
		}
	}
	s := New(p, budget)
	assert.Zero(t, s.Progress())
	var totals []int64
	for {
		reqs := s.Stage()
		if len(reqs) == 0 {
			break
		}
		var total int64
		for _, req := range reqs {
			_, bk, err := basket.Locate(f.Tree, req)
			require.NoError(t, err)
			total += int64(bk.Bytes)
		}
		assert.Less(t, total, int64(budget)+largest)
		totals = append(totals, total)
		blobs, err := mem.Fetch(context.Background(), reqs)
		require.NoError(t, err)
		require.NoError(t, s.Deliver(blobs))
	}
	require.Greater(t, len(totals), 1)
	for _, total := range totals[:len(totals)-1] {
		assert.GreaterOrEqual(t, total, int64(budget))
	}
	assert.Equal(t, 1.0, s.Progress())

	for i := range p.Columns {
		var next int64
		for {
			c, state := s.Acquire(i)
			if state == Exhausted {
				break
			}
			require.Equal(t, Ready, state)
			assert.Equal(t, next, c.First)
			next = c.End()
		}
		assert.EqualValues(t, 100, next)
	}
	assert.Zero(t, s.Buffered())
}

func TestStageReverseOrderKeepsCounterBaskets(t *testing.T) {
	b := treetest.New("t")
	ones := make([]int32, 100)
	for k := range ones {
		ones[k] = 1
	}
	n := b.Baskets(tree.NoBranch, scalar("n", tree.KindInt32), treetest.Entries(ones...), 40, 40, 20)
	arr := tree.Branch{Name: "arr", Kind: tree.KindInt32, Count: n.ID, Count2: tree.NoBranch}
	b.Baskets(tree.NoBranch, arr, treetest.Entries(seq[int32](100)...), 30, 30, 40)
	f := b.Build(t)

	p := resolve(t, f, plan.Options{First: 45}, "arr")
	require.Len(t, p.Columns, 2)
	s := New(p, 1<<20)
	reqs := s.Stage()
	// The counter's first basket ends at 40, before the window, but the
	// dependent starts reading at 30.
	assert.Equal(t, []basket.Request{
		{Branch: 1, Index: 1},
		{Branch: 0, Index: 0},
		{Branch: 0, Index: 1},
		{Branch: 1, Index: 2},
		{Branch: 0, Index: 2},
	}, reqs)
	assert.EqualValues(t, 0, s.FirstRead(0))
	assert.EqualValues(t, 30, s.FirstRead(1))
}

func TestStageKeepsBranchesInStep(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq[int32](100)...), 10)
	b.Branch(tree.NoBranch, scalar("y", tree.KindInt32), treetest.Entries(seq[int32](100)...), 10)
	f := b.Build(t)
	p := resolve(t, f, plan.Options{}, "x", "y")
	mem := basket.NewMemory(f.Tree, f.Data)
	size := int64(f.Tree.Lookup("x").Baskets[0].Bytes)

	for _, baskets := range []int64{1, 3} {
		s := New(p, baskets*size)
		next := make([]int64, len(p.Columns))
		for round := 0; round < 10; round++ {
			for i := range p.Columns {
				for {
					c, state := s.Acquire(i)
					if state == Ready {
						assert.Equal(t, next[i], c.First)
						next[i] = c.End()
						break
					}
					require.Equal(t, NeedFetch, state)
					reqs := s.Stage()
					require.NotEmpty(t, reqs)
					blobs, err := mem.Fetch(context.Background(), reqs)
					require.NoError(t, err)
					require.NoError(t, s.Deliver(blobs))
					for _, br := range s.branches {
						assert.LessOrEqual(t, int64(len(br.ready)), baskets, "branch %s", br.branch.Name)
					}
				}
			}
		}
		assert.Equal(t, []int64{100, 100}, next)
		for i := range p.Columns {
			_, state := s.Acquire(i)
			assert.Equal(t, Exhausted, state)
		}
	}
}

func TestStageSkipsBeforeWindow(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq[int32](100)...), 40)
	f := b.Build(t)
	p := resolve(t, f, plan.Options{First: 50}, "x")
	s := New(p, 1<<20)
	assert.Equal(t, []basket.Request{{Branch: 0, Index: 1}, {Branch: 0, Index: 2}}, s.Stage())
	assert.EqualValues(t, 40, s.FirstRead(0))
}

func TestStageStopsAtWindowEnd(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq[int32](100)...), 40)
	f := b.Build(t)
	p := resolve(t, f, plan.Options{Entries: 30}, "x")
	s := New(p, 1<<20)
	_, state := s.Acquire(0)
	assert.Equal(t, NeedFetch, state)
	reqs := s.Stage()
	assert.Equal(t, []basket.Request{{Branch: 0, Index: 0}}, reqs)
	assert.Empty(t, s.Stage())

	_, state = s.Acquire(0)
	assert.Equal(t, NeedFetch, state)
	blobs, err := basket.NewMemory(f.Tree, f.Data).Fetch(context.Background(), reqs)
	require.NoError(t, err)
	require.NoError(t, s.Deliver(blobs))
	c, state := s.Acquire(0)
	require.Equal(t, Ready, state)
	assert.Equal(t, 40, c.Entries)
	_, state = s.Acquire(0)
	assert.Equal(t, Exhausted, state)
}

func TestDirectChunk(t *testing.T) {
	b := treetest.New("t")
	b.Direct(tree.NoBranch, scalar("d", tree.KindInt32), treetest.Entries(int32(7), int32(8)))
	f := b.Build(t)
	p := resolve(t, f, plan.Options{}, "d")
	s := New(p, 0)
	assert.Empty(t, s.Stage())
	c, state := s.Acquire(0)
	require.Equal(t, Ready, state)
	assert.Equal(t, DirectIndex, c.Index)
	assert.Equal(t, 2, c.Entries)
	assert.Equal(t, treetest.Encode(int32(7), int32(8)), c.Data)
	_, state = s.Acquire(0)
	assert.Equal(t, Exhausted, state)
}

func TestDeliverUnexpected(t *testing.T) {
	b := treetest.New("t")
	b.Branch(tree.NoBranch, scalar("x", tree.KindInt32), treetest.Entries(seq[int32](10)...), 5)
	f := b.Build(t)
	s := New(resolve(t, f, plan.Options{}, "x"), 1)
	assert.Error(t, s.Deliver([]basket.Blob{{Request: basket.Request{Branch: 0, Index: 1}}}))
	assert.Len(t, s.Stage(), 1)
	assert.Error(t, s.Deliver([]basket.Blob{{Request: basket.Request{Branch: 0, Index: 1}}}))
	s.Release()
	_, state := s.Acquire(0)
	assert.Equal(t, Exhausted, state)
}
