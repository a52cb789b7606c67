package s3io

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	s3iface.S3API
	data   []byte
	ranges []string
}

func (f *fakeS3) HeadObjectWithContext(_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	if aws.StringValue(in.Bucket) != "bucket" || aws.StringValue(in.Key) != "dir/tree.bin" {
		return nil, fmt.Errorf("no such key %s", aws.StringValue(in.Key))
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(f.data)))}, nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	r := aws.StringValue(in.Range)
	f.ranges = append(f.ranges, r)
	var start, end int
	if _, err := fmt.Sscanf(r, "bytes=%d-%d", &start, &end); err != nil {
		return nil, err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.data[start : end+1]))}, nil
}

func TestInvalidPath(t *testing.T) {
	_, err := NewReader(context.Background(), "http://localhost/file", &fakeS3{})
	require.Equal(t, ErrInvalidS3Path, err)
	assert.False(t, IsS3Path("/tmp/file"))
	assert.True(t, IsS3Path("s3://bucket/key"))
}

func TestReadAt(t *testing.T) {
	client := &fakeS3{data: []byte("0123456789")}
	r, err := NewReader(context.Background(), "s3://bucket/dir/tree.bin", client)
	require.NoError(t, err)
	size, err := r.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 10, size)

	b := make([]byte, 3)
	n, err := r.ReadAt(b, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "234", string(b))

	n, err = r.ReadAt(b, 8)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)
	assert.Equal(t, "89", string(b[:n]))

	_, err = r.ReadAt(b, 10)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"bytes=2-4", "bytes=8-9"}, client.ranges)
}
