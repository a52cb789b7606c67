package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
)

type HTTPEngine struct {
	client *http.Client
}

var _ Engine = (*HTTPEngine)(nil)

func NewHTTP() *HTTPEngine {
	return &HTTPEngine{client: http.DefaultClient}
}

// NewHTTPWithClient returns an engine issuing its requests through client.
func NewHTTPWithClient(client *http.Client) *HTTPEngine {
	return &HTTPEngine{client: client}
}

func (h *HTTPEngine) Get(ctx context.Context, u *URI) (Reader, error) {
	size, err := h.Size(ctx, u)
	if err != nil && !errors.Is(err, ErrNotSupported) {
		return nil, err
	}
	if err != nil {
		size = -1
	}
	return &httpReader{ctx: ctx, client: h.client, url: u.String(), size: size}, nil
}

func (h *HTTPEngine) Size(ctx context.Context, u *URI) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return 0, fmt.Errorf("%s: %w", u, ErrNotFound)
	case http.StatusMethodNotAllowed:
		return 0, ErrNotSupported
	default:
		return 0, fmt.Errorf("%s: %s", u, resp.Status)
	}
	if resp.ContentLength < 0 {
		return 0, ErrNotSupported
	}
	return resp.ContentLength, nil
}

// httpReader reads ranges with one Range request per ReadAt.  Once the
// server answers a range with the whole object, later reads are served
// from memory.
type httpReader struct {
	ctx    context.Context
	client *http.Client
	url    string

	mu    sync.Mutex
	size  int64
	whole *BytesReader
}

func (r *httpReader) loaded() *BytesReader {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.whole
}

var _ Sizer = (*httpReader)(nil)

func (r *httpReader) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if whole := r.loaded(); whole != nil {
		return whole.ReadAt(p, off)
	}
	if size, err := r.Size(); err == nil && off >= size {
		return 0, io.EOF
	}
	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", "bytes="+strconv.FormatInt(off, 10)+"-"+strconv.FormatInt(off+int64(len(p))-1, 10))
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return 0, err
		}
		whole := NewBytesReader(b)
		r.mu.Lock()
		r.whole, r.size = whole, int64(len(b))
		r.mu.Unlock()
		return whole.ReadAt(p, off)
	case http.StatusRequestedRangeNotSatisfiable:
		return 0, io.EOF
	case http.StatusNotFound:
		return 0, fmt.Errorf("%s: %w", r.url, ErrNotFound)
	default:
		return 0, fmt.Errorf("%s: %s", r.url, resp.Status)
	}
	n, err := io.ReadFull(resp.Body, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

func (r *httpReader) Size() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size < 0 {
		return 0, ErrNotSupported
	}
	return r.size, nil
}

func (*httpReader) Close() error {
	return nil
}
