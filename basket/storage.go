package basket

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/brimdata/arbor/pkg/storage"
	"github.com/brimdata/arbor/tree"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the ranged reads of one batch in flight.
const DefaultConcurrency = 8

// StorageFetcher reads baskets from the object holding a tree's data.
// Each basket of a batch is one ranged read; reads run concurrently and
// the first failure cancels the batch.
type StorageFetcher struct {
	tree        *tree.Tree
	uri         *storage.URI
	reader      storage.Reader
	logger      *zap.Logger
	metrics     *Metrics
	concurrency int
}

var _ Fetcher = (*StorageFetcher)(nil)

func NewStorageFetcher(ctx context.Context, engine storage.Engine, uri *storage.URI, t *tree.Tree, logger *zap.Logger, metrics *Metrics) (*StorageFetcher, error) {
	reader, err := engine.Get(ctx, uri)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StorageFetcher{
		tree:        t,
		uri:         uri,
		reader:      reader,
		logger:      logger.Named("fetch").With(zap.Stringer("uri", uri)),
		metrics:     metrics,
		concurrency: DefaultConcurrency,
	}, nil
}

// SetConcurrency changes the number of concurrent reads per batch.
func (f *StorageFetcher) SetConcurrency(n int) {
	if n > 0 {
		f.concurrency = n
	}
}

func (f *StorageFetcher) Fetch(ctx context.Context, reqs []Request) ([]Blob, error) {
	blobs := make([]Blob, len(reqs))
	var total int64
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(f.concurrency)
	for i, req := range reqs {
		i, req := i, req
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			br, basket, err := Locate(f.tree, req)
			if err != nil {
				return err
			}
			stored := make([]byte, basket.Bytes)
			if err := storage.ReadAt(f.reader, stored, basket.Seek); err != nil {
				return fmt.Errorf("branch %s basket %d: %w", br.Name, req.Index, err)
			}
			atomic.AddInt64(&total, int64(len(stored)))
			blobs[i], err = decode(br, req, basket, stored)
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	f.metrics.fetched(int(total))
	f.logger.Debug("Fetched baskets", zap.Int("baskets", len(reqs)), zap.Int64("bytes", total))
	return blobs, nil
}

func (f *StorageFetcher) Close() error {
	return f.reader.Close()
}

// CloseAll closes every closer and combines their errors.
func CloseAll(closers ...interface{ Close() error }) error {
	var err error
	for _, c := range closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}
