package basket_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/brimdata/arbor/basket"
	"github.com/brimdata/arbor/basket/mock"
	"github.com/brimdata/arbor/pkg/storage"
	storagemock "github.com/brimdata/arbor/pkg/storage/mock"
	"github.com/brimdata/arbor/tree"
	"github.com/brimdata/arbor/tree/treetest"
	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func payload() []byte {
	return bytes.Repeat([]byte("arbor basket payload "), 200)
}

func TestUnzip(t *testing.T) {
	raw := payload()
	for _, alg := range []string{"ZL", "ZS", "L4"} {
		framed, err := treetest.Frame(alg, raw)
		require.NoError(t, err, alg)
		require.NotNil(t, framed, alg)
		assert.Less(t, len(framed), len(raw), alg)
		out, err := basket.Unzip(framed, len(raw))
		require.NoError(t, err, alg)
		assert.Equal(t, raw, out, alg)
	}
}

func TestUnzipPassThrough(t *testing.T) {
	raw := []byte{1, 2, 3}
	out, err := basket.Unzip(raw, 3)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestUnzipErrors(t *testing.T) {
	raw := payload()
	framed, err := treetest.Frame("L4", raw)
	require.NoError(t, err)
	corrupt := append([]byte(nil), framed...)
	corrupt[len(corrupt)-1] ^= 0xff
	_, err = basket.Unzip(corrupt, len(raw))
	assert.ErrorIs(t, err, basket.ErrChecksum)

	xz := append([]byte("XZ"), framed[2:]...)
	_, err = basket.Unzip(xz, len(raw))
	assert.ErrorIs(t, err, basket.ErrCompression)

	_, err = basket.Unzip(framed[:5], len(raw))
	assert.ErrorIs(t, err, basket.ErrCompression)

	_, err = basket.Unzip(framed, len(raw)-1)
	assert.ErrorIs(t, err, basket.ErrCompression)
}

func fixture(t *testing.T, alg string) *treetest.Fixture {
	b := treetest.New("events").Compress(alg)
	vals := make([]int32, 100)
	for k := range vals {
		vals[k] = int32(k % 7)
	}
	b.Branch(tree.NoBranch, tree.Branch{Name: "n", Kind: tree.KindInt32, Count: tree.NoBranch, Count2: tree.NoBranch}, treetest.Entries(vals...), 40)
	return b.Build(t)
}

func TestMemoryFetch(t *testing.T) {
	f := fixture(t, "ZL")
	m := basket.NewMemory(f.Tree, f.Data)
	reqs := []basket.Request{{Branch: 0, Index: 2}, {Branch: 0, Index: 0}}
	blobs, err := m.Fetch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.Equal(t, reqs[0], blobs[0].Request)
	assert.Equal(t, 20, blobs[0].Entries)
	assert.Len(t, blobs[0].Data, 80)
	assert.Equal(t, 40, blobs[1].Entries)
	assert.Equal(t, treetest.Encode(int32(0), int32(1)), blobs[1].Data[:8])

	_, err = m.Fetch(context.Background(), []basket.Request{{Branch: 0, Index: 3}})
	assert.ErrorIs(t, err, basket.ErrBadRequest)
	_, err = m.Fetch(context.Background(), []basket.Request{{Branch: 4, Index: 0}})
	assert.ErrorIs(t, err, basket.ErrBadRequest)
}

func TestStorageFetcher(t *testing.T) {
	f := fixture(t, "ZS")
	ctrl := gomock.NewController(t)
	engine := storagemock.NewMockEngine(ctrl)
	uri := storage.MustParseURI("s3://bucket/events.bin")
	engine.EXPECT().Get(gomock.Any(), uri).Return(storage.NewBytesReader(f.Data), nil)

	reg := prometheus.NewRegistry()
	fetcher, err := basket.NewStorageFetcher(context.Background(), engine, uri, f.Tree, nil, basket.NewMetrics(reg))
	require.NoError(t, err)
	fetcher.SetConcurrency(2)
	reqs := []basket.Request{{Branch: 0, Index: 0}, {Branch: 0, Index: 1}, {Branch: 0, Index: 2}}
	blobs, err := fetcher.Fetch(context.Background(), reqs)
	require.NoError(t, err)
	var stored int
	for k, blob := range blobs {
		assert.Equal(t, reqs[k], blob.Request)
		assert.Len(t, blob.Data, 4*blob.Entries)
		stored += int(f.Tree.Branch(0).Baskets[k].Bytes)
	}
	assert.Equal(t, 1.0, counter(t, reg, "arbor_basket_fetch_batches_total"))
	assert.Equal(t, float64(stored), counter(t, reg, "arbor_basket_fetch_bytes_total"))

	_, err = fetcher.Fetch(context.Background(), []basket.Request{{Branch: 0, Index: 0}, {Branch: 0, Index: 9}})
	assert.ErrorIs(t, err, basket.ErrBadRequest)
	assert.NoError(t, basket.CloseAll(fetcher))
}

func TestStorageFetcherOpenError(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := storagemock.NewMockEngine(ctrl)
	engine.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, storage.ErrNotFound)
	_, err := basket.NewStorageFetcher(context.Background(), engine, storage.MustParseURI("/nope"), nil, nil, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCacheFetchesOnlyMisses(t *testing.T) {
	f := fixture(t, "")
	mem := basket.NewMemory(f.Tree, f.Data)
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	first := []basket.Request{{Branch: 0, Index: 0}, {Branch: 0, Index: 1}}
	second := []basket.Request{{Branch: 0, Index: 1}, {Branch: 0, Index: 2}}
	gomock.InOrder(
		fetcher.EXPECT().Fetch(gomock.Any(), first).DoAndReturn(mem.Fetch),
		fetcher.EXPECT().Fetch(gomock.Any(), []basket.Request{{Branch: 0, Index: 2}}).DoAndReturn(mem.Fetch),
	)
	reg := prometheus.NewRegistry()
	cache, err := basket.NewCache(fetcher, "events", 1<<20, basket.NewMetrics(reg))
	require.NoError(t, err)

	blobs, err := cache.Fetch(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, first[1], blobs[1].Request)
	blobs, err = cache.Fetch(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, second[0], blobs[0].Request)
	assert.Equal(t, second[1], blobs[1].Request)
	assert.Equal(t, 3, cache.Len())
	assert.Equal(t, 1.0, counter(t, reg, "arbor_basket_cache_hits_total"))
	assert.Equal(t, 3.0, counter(t, reg, "arbor_basket_cache_misses_total"))

	// Everything is cached now.
	_, err = cache.Fetch(context.Background(), second)
	require.NoError(t, err)
}

func TestCacheEvictsByBytes(t *testing.T) {
	f := fixture(t, "ZL")
	cache, err := basket.NewCache(basket.NewMemory(f.Tree, f.Data), "events", 320, nil)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = cache.Fetch(ctx, []basket.Request{{Branch: 0, Index: 0}, {Branch: 0, Index: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
	assert.EqualValues(t, 320, cache.Bytes())

	_, err = cache.Fetch(ctx, []basket.Request{{Branch: 0, Index: 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
	assert.EqualValues(t, 240, cache.Bytes())

	small, err := basket.NewCache(basket.NewMemory(f.Tree, f.Data), "events", 100, nil)
	require.NoError(t, err)
	_, err = small.Fetch(ctx, []basket.Request{{Branch: 0, Index: 0}, {Branch: 0, Index: 2}})
	require.NoError(t, err)
	assert.Equal(t, 1, small.Len())
	assert.EqualValues(t, 80, small.Bytes())

	_, err = basket.NewCache(basket.NewMemory(f.Tree, f.Data), "events", 0, nil)
	assert.Error(t, err)
}

func TestCacheFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	boom := errors.New("boom")
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, boom)
	cache, err := basket.NewCache(fetcher, "events", 1<<20, nil)
	require.NoError(t, err)
	_, err = cache.Fetch(context.Background(), []basket.Request{{Branch: 0, Index: 0}})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, cache.Len())
}
