package basket

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// A compressed basket is a sequence of frames, each with a 9-byte header:
// a two-letter algorithm, a method byte, then the compressed and the
// uncompressed size as 3-byte little-endian integers.
const headerSize = 9

// checksumSize is the xxhash64 prefix of an LZ4 frame payload.
const checksumSize = 8

var zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))

// Unzip decompresses the stored bytes of a basket into objlen bytes.  A
// basket stored without compression is returned as is.
func Unzip(src []byte, objlen int) ([]byte, error) {
	if len(src) == objlen {
		return src, nil
	}
	dst := make([]byte, 0, objlen)
	for len(src) > 0 {
		if len(src) < headerSize {
			return nil, fmt.Errorf("%w: truncated frame header", ErrCompression)
		}
		alg := string(src[:2])
		csize := uint24(src[3:])
		usize := uint24(src[6:])
		if headerSize+csize > len(src) {
			return nil, fmt.Errorf("%w: %s frame of %d bytes exceeds basket", ErrCompression, alg, csize)
		}
		payload := src[headerSize : headerSize+csize]
		if len(dst)+usize > cap(dst) {
			return nil, fmt.Errorf("%w: frames exceed %d bytes", ErrCompression, objlen)
		}
		out := dst[len(dst) : len(dst)+usize : len(dst)+usize]
		if err := unzipFrame(alg, payload, out); err != nil {
			return nil, err
		}
		dst = dst[:len(dst)+usize]
		src = src[headerSize+csize:]
	}
	if len(dst) != objlen {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrCompression, len(dst), objlen)
	}
	return dst, nil
}

func unzipFrame(alg string, payload, out []byte) error {
	switch alg {
	case "ZL":
		r, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("zlib frame: %w", err)
		}
		defer r.Close()
		if _, err := io.ReadFull(r, out); err != nil {
			return fmt.Errorf("zlib frame: %w", err)
		}
	case "ZS":
		b, err := zstdDecoder.DecodeAll(payload, out[:0])
		if err != nil {
			return fmt.Errorf("zstd frame: %w", err)
		}
		if len(b) != len(out) {
			return fmt.Errorf("zstd frame: got %d bytes, expected %d", len(b), len(out))
		}
	case "L4":
		if len(payload) < checksumSize {
			return fmt.Errorf("%w: lz4 frame without checksum", ErrCompression)
		}
		sum := binary.BigEndian.Uint64(payload)
		block := payload[checksumSize:]
		if xxhash.Sum64(block) != sum {
			return ErrChecksum
		}
		n, err := lz4.UncompressBlock(block, out)
		if err != nil {
			return fmt.Errorf("lz4 frame: %w", err)
		}
		if n != len(out) {
			return fmt.Errorf("lz4 frame: got %d bytes, expected %d", n, len(out))
		}
	default:
		return fmt.Errorf("%w: %q", ErrCompression, alg)
	}
	return nil
}

func uint24(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}
