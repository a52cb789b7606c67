package s3io

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// Reader reads byte ranges of an S3 object.  Each ReadAt is one ranged
// GetObject call, so a Reader is safe for concurrent use.
type Reader struct {
	ctx    context.Context
	client s3iface.S3API
	bucket string
	key    string
	size   int64
}

func NewReader(ctx context.Context, path string, client s3iface.S3API) (*Reader, error) {
	bucket, key, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	info, err := Stat(ctx, path, client)
	if err != nil {
		return nil, err
	}
	return &Reader{
		ctx:    ctx,
		client: client,
		bucket: bucket,
		key:    key,
		size:   aws.Int64Value(info.ContentLength),
	}, nil
}

func (r *Reader) bytesRange(off int64, n int) string {
	return fmt.Sprintf("bytes=%d-%d", off, off+int64(n)-1)
}

func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("s3io.Reader.ReadAt: negative offset")
	}
	if off >= r.size {
		return 0, io.EOF
	}
	n := len(p)
	if rem := r.size - off; int64(n) > rem {
		n = int(rem)
	}
	if n == 0 {
		return 0, nil
	}
	out, err := r.client.GetObjectWithContext(r.ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(r.bytesRange(off, n)),
	})
	if err != nil {
		return 0, err
	}
	defer out.Body.Close()
	got, err := io.ReadFull(out.Body, p[:n])
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return got, err
}

func (r *Reader) Size() (int64, error) {
	return r.size, nil
}

func (r *Reader) Close() error {
	return nil
}
