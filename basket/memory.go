package basket

import (
	"context"
	"fmt"

	"github.com/brimdata/arbor/tree"
)

// Memory serves baskets from a byte slice holding the tree's data.
type Memory struct {
	tree *tree.Tree
	data []byte
}

var _ Fetcher = (*Memory)(nil)

func NewMemory(t *tree.Tree, data []byte) *Memory {
	return &Memory{tree: t, data: data}
}

func (m *Memory) Fetch(ctx context.Context, reqs []Request) ([]Blob, error) {
	blobs := make([]Blob, 0, len(reqs))
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		br, basket, err := Locate(m.tree, req)
		if err != nil {
			return nil, err
		}
		end := basket.Seek + int64(basket.Bytes)
		if basket.Seek < 0 || end > int64(len(m.data)) {
			return nil, &rangeError{branch: br.Name, index: req.Index, end: end, size: len(m.data)}
		}
		blob, err := decode(br, req, basket, m.data[basket.Seek:end])
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, blob)
	}
	return blobs, nil
}

type rangeError struct {
	branch string
	index  int
	end    int64
	size   int
}

func (e *rangeError) Error() string {
	return fmt.Sprintf("branch %s basket %d: ends at %d past data of %d bytes", e.branch, e.index, e.end, e.size)
}
