package storage

import (
	"bytes"
)

// BytesReader serves an object held in memory.  The http engine falls
// back to one when a server ignores range requests and sends the whole
// object.
type BytesReader struct {
	*bytes.Reader
}

var _ Reader = (*BytesReader)(nil)
var _ Sizer = (*BytesReader)(nil)

func NewBytesReader(b []byte) *BytesReader {
	return &BytesReader{bytes.NewReader(b)}
}

func (*BytesReader) Close() error {
	return nil
}

func (b *BytesReader) Size() (int64, error) {
	return b.Reader.Size(), nil
}
