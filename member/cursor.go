package member

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrShortBuffer = errors.New("short basket buffer")

// byteCountMask flags a 32-bit byte count in front of an object version.
const byteCountMask = 0x40000000

// Cursor reads big-endian values from a basket payload.  Reading past the
// end of the buffer never panics: it yields zero values and records a
// sticky error that the caller checks after a batch of reads.
type Cursor struct {
	buf []byte
	off int
	err error
}

func NewCursor(b []byte) *Cursor {
	return &Cursor{buf: b}
}

// Reset points the cursor at a new buffer and clears any error.
func (c *Cursor) Reset(b []byte) {
	c.buf = b
	c.off = 0
	c.err = nil
}

func (c *Cursor) Err() error {
	return c.err
}

func (c *Cursor) Offset() int {
	return c.off
}

func (c *Cursor) Remaining() int {
	return len(c.buf) - c.off
}

func (c *Cursor) next(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.off+n > len(c.buf) {
		c.err = fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrShortBuffer, n, c.off, len(c.buf))
		c.off = len(c.buf)
		return nil
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int) {
	c.next(n)
}

func (c *Cursor) Uint8() uint8 {
	if b := c.next(1); b != nil {
		return b[0]
	}
	return 0
}

func (c *Cursor) Int8() int8 {
	return int8(c.Uint8())
}

func (c *Cursor) Uint16() uint16 {
	if b := c.next(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (c *Cursor) Int16() int16 {
	return int16(c.Uint16())
}

func (c *Cursor) Uint32() uint32 {
	if b := c.next(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (c *Cursor) Int32() int32 {
	return int32(c.Uint32())
}

func (c *Cursor) Uint64() uint64 {
	if b := c.next(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

func (c *Cursor) Int64() int64 {
	return int64(c.Uint64())
}

func (c *Cursor) Float32() float32 {
	return math.Float32frombits(c.Uint32())
}

func (c *Cursor) Float64() float64 {
	return math.Float64frombits(c.Uint64())
}

func (c *Cursor) Bool() bool {
	return c.Uint8() != 0
}

// Bytes returns the next n bytes without copying.
func (c *Cursor) Bytes(n int) []byte {
	return c.next(n)
}

// TString reads a string with a one-byte length, or the marker 255
// followed by a 32-bit length.
func (c *Cursor) TString() string {
	n := int(c.Uint8())
	if n == 255 {
		n = int(c.Uint32())
	}
	return string(c.next(n))
}

// CharStar reads a C string stored with a 32-bit length prefix.
func (c *Cursor) CharStar() string {
	n := int(c.Int32())
	if n <= 0 {
		return ""
	}
	return string(c.next(n))
}

// Version reads an object version header.  The byte count is only
// present when flagged by the mask bit; size is 0 when it is absent.
func (c *Cursor) Version() (version int, size int) {
	if c.Remaining() < 4 {
		return int(c.Int16()), 0
	}
	start := c.off
	count := c.Uint32()
	if count&byteCountMask != 0 {
		size = int(count &^ byteCountMask)
	} else {
		c.off = start
	}
	return int(c.Int16()), size
}
