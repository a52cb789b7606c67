//go:generate mockgen -destination=./mock/mock_fetcher.go -package=mock github.com/brimdata/arbor/basket Fetcher

// Package basket fetches basket payloads from storage.  A Fetcher takes a
// batch of (branch, basket) requests and returns the decompressed bytes
// of each, matched back to its request.
package basket

import (
	"context"
	"errors"
	"fmt"

	"github.com/brimdata/arbor/tree"
)

var (
	ErrChecksum    = errors.New("basket checksum mismatch")
	ErrCompression = errors.New("unsupported basket compression")
	ErrBadRequest  = errors.New("bad basket request")
)

// Request names one basket of a branch.
type Request struct {
	Branch tree.BranchID
	Index  int
}

func (r Request) String() string {
	return fmt.Sprintf("%d/%d", r.Branch, r.Index)
}

// Blob is the decompressed payload of a requested basket.
type Blob struct {
	Request
	Data    []byte
	Entries int
}

// Fetcher returns one blob per request in request order.  An error fails
// the whole batch.
type Fetcher interface {
	Fetch(context.Context, []Request) ([]Blob, error)
}

// Locate checks a request against the tree and returns its basket.
func Locate(t *tree.Tree, req Request) (*tree.Branch, tree.Basket, error) {
	br := t.Branch(req.Branch)
	if br == nil {
		return nil, tree.Basket{}, fmt.Errorf("%w: no branch %d", ErrBadRequest, req.Branch)
	}
	if req.Index < 0 || req.Index >= len(br.Baskets) {
		return nil, tree.Basket{}, fmt.Errorf("%w: branch %s has no basket %d", ErrBadRequest, br.Name, req.Index)
	}
	return br, br.Baskets[req.Index], nil
}

// entries is the number of entries a basket holds.
func entries(br *tree.Branch, k int) int {
	return int(br.BasketEnd(k) - br.Baskets[k].FirstEntry)
}

// decode turns the stored bytes of a basket into its blob.
func decode(br *tree.Branch, req Request, basket tree.Basket, stored []byte) (Blob, error) {
	data := stored
	if basket.Compressed() {
		var err error
		data, err = Unzip(stored, int(basket.ObjLen))
		if err != nil {
			return Blob{}, fmt.Errorf("branch %s basket %d: %w", br.Name, req.Index, err)
		}
	}
	return Blob{Request: req, Data: data, Entries: entries(br, req.Index)}, nil
}
