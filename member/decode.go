// Package member decodes branch entries from basket payloads.  Decoders
// are plain functions chosen once per branch from its element kind, so
// the read loop never inspects a kind per value.
package member

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/brimdata/arbor/tree"
	"github.com/brimdata/arbor/value"
)

var ErrUnsupportedKind = errors.New("unsupported element kind")

// Func decodes one element at the cursor into v.
type Func func(*Cursor, *value.Value)

// For returns the decoder of a scalar kind.  Float holds the packing
// parameters of Float16 and Double32 and is ignored for other kinds.
func For(kind tree.Kind, f tree.Float) (Func, error) {
	switch kind {
	case tree.KindInt8:
		return func(c *Cursor, v *value.Value) { v.SetInt(int64(c.Int8())) }, nil
	case tree.KindInt16:
		return func(c *Cursor, v *value.Value) { v.SetInt(int64(c.Int16())) }, nil
	case tree.KindInt32, tree.KindCounter:
		return func(c *Cursor, v *value.Value) { v.SetInt(int64(c.Int32())) }, nil
	case tree.KindInt64, tree.KindLong64:
		return func(c *Cursor, v *value.Value) { v.SetInt(c.Int64()) }, nil
	case tree.KindUint8, tree.KindLegacyChar:
		return func(c *Cursor, v *value.Value) { v.SetUint(uint64(c.Uint8())) }, nil
	case tree.KindUint16:
		return func(c *Cursor, v *value.Value) { v.SetUint(uint64(c.Uint16())) }, nil
	case tree.KindUint32, tree.KindBits:
		return func(c *Cursor, v *value.Value) { v.SetUint(uint64(c.Uint32())) }, nil
	case tree.KindUint64, tree.KindULong64:
		return func(c *Cursor, v *value.Value) { v.SetUint(c.Uint64()) }, nil
	case tree.KindBool:
		return func(c *Cursor, v *value.Value) { v.SetBool(c.Bool()) }, nil
	case tree.KindFloat32:
		return func(c *Cursor, v *value.Value) { v.SetFloat(float64(c.Float32())) }, nil
	case tree.KindFloat64:
		return func(c *Cursor, v *value.Value) { v.SetFloat(c.Float64()) }, nil
	case tree.KindDouble32, tree.KindFloat16:
		read := packedFloat(kind, f)
		return func(c *Cursor, v *value.Value) { v.SetFloat(read(c)) }, nil
	case tree.KindTString:
		return func(c *Cursor, v *value.Value) { v.SetString(c.TString()) }, nil
	case tree.KindCharStar:
		return func(c *Cursor, v *value.Value) { v.SetString(c.CharStar()) }, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
}

// packedFloat returns the reader of a Float16 or Double32 value.  With a
// scale factor the value is stored as a 32-bit integer offset from Min.
// A Double32 without factor or range is a plain float32.  Otherwise it is
// an exponent byte and a 16-bit mantissa truncated to NBits bits.
func packedFloat(kind tree.Kind, f tree.Float) func(*Cursor) float64 {
	if f.Factor != 0 {
		scale := 1 / f.Factor
		min := f.Min
		return func(c *Cursor) float64 {
			return float64(c.Uint32())*scale + min
		}
	}
	if kind == tree.KindDouble32 && f.Min == 0 && f.NBits == 0 {
		return func(c *Cursor) float64 {
			return float64(c.Float32())
		}
	}
	nbits := f.NBits
	if nbits == 0 {
		// The container keeps the bit count in the range minimum when
		// no range is given.
		nbits = int(math.Round(f.Min))
	}
	if nbits <= 0 || nbits > 23 {
		nbits = 12
	}
	mask := uint32(1)<<(nbits+1) - 1
	sign := uint32(1) << (nbits + 1)
	return func(c *Cursor) float64 {
		exp := uint32(c.Uint8())
		man := uint32(c.Uint16())
		bits := exp<<23 | (man&mask)<<(23-nbits)
		v := float64(math.Float32frombits(bits))
		if man&sign != 0 {
			v = -v
		}
		return v
	}
}

// Chars decodes a fixed-size char array as a string cut at the first NUL.
func Chars(n int) Func {
	return func(c *Cursor, v *value.Value) {
		v.SetString(cstring(c.Bytes(n)))
	}
}

func cstring(b []byte) string {
	if k := bytes.IndexByte(b, 0); k >= 0 {
		b = b[:k]
	}
	return string(b)
}
