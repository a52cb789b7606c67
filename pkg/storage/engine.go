//go:generate mockgen -destination=./mock/mock_engine.go -package=mock github.com/brimdata/arbor/pkg/storage Engine

package storage

import (
	"context"
	"errors"
	"io"
)

// Reader reads byte ranges of a stored object.  Implementations allow
// concurrent ReadAt calls.
type Reader interface {
	io.ReaderAt
	io.Closer
}

type Sizer interface {
	Size() (int64, error)
}

var (
	ErrNotSupported = errors.New("method call on storage engine not supported")
	ErrNotFound     = errors.New("item does not exist")
)

// Engine opens stored objects for ranged reads.
type Engine interface {
	Get(context.Context, *URI) (Reader, error)
	Size(context.Context, *URI) (int64, error)
}

func NewRemoteEngine() *Router {
	router := NewRouter()
	router.Enable(HTTPScheme)
	router.Enable(HTTPSScheme)
	router.Enable(S3Scheme)
	return router
}

func NewLocalEngine() *Router {
	router := NewRemoteEngine()
	router.Enable(FileScheme)
	return router
}

// ReadAt reads len(b) bytes at off, treating a short read as an error.
func ReadAt(r Reader, b []byte, off int64) error {
	n, err := r.ReadAt(b, off)
	if n == len(b) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func Size(r Reader) (int64, error) {
	if sizer, ok := r.(Sizer); ok {
		return sizer.Size()
	}
	return 0, ErrNotSupported
}
