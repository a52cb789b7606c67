package treetest

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const maxFrame = 0xffffff

// Frame compresses raw into basket frames of the given algorithm.  It
// returns nil when the data does not compress, in which case the basket
// is stored raw.
func Frame(alg string, raw []byte) ([]byte, error) {
	var out bytes.Buffer
	for len(raw) > 0 {
		n := len(raw)
		if n > maxFrame {
			n = maxFrame
		}
		payload, err := compress(alg, raw[:n])
		if err != nil || payload == nil {
			return nil, err
		}
		header := []byte{alg[0], alg[1], method(alg), 0, 0, 0, 0, 0, 0}
		putUint24(header[3:], len(payload))
		putUint24(header[6:], n)
		out.Write(header)
		out.Write(payload)
		raw = raw[n:]
	}
	return out.Bytes(), nil
}

func method(alg string) byte {
	switch alg {
	case "ZL":
		return 8
	case "L4":
		return 1
	}
	return 5
}

func compress(alg string, src []byte) ([]byte, error) {
	switch alg {
	case "ZL":
		var b bytes.Buffer
		w := zlib.NewWriter(&b)
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	case "ZS":
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(src, nil), nil
	case "L4":
		block := make([]byte, lz4.CompressBlockBound(len(src)))
		var c lz4.Compressor
		n, err := c.CompressBlock(src, block)
		if err != nil || n == 0 {
			return nil, err
		}
		block = block[:n]
		payload := make([]byte, 8, 8+n)
		binary.BigEndian.PutUint64(payload, xxhash.Sum64(block))
		return append(payload, block...), nil
	}
	return nil, fmt.Errorf("unknown compression %q", alg)
}

func putUint24(b []byte, n int) {
	b[0] = byte(n)
	b[1] = byte(n >> 8)
	b[2] = byte(n >> 16)
}
