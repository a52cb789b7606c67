// Package treetest builds trees and their basket data in memory for
// tests.  Entries are encoded big-endian, split into baskets of a fixed
// number of entries and optionally compressed with basket frames.
package treetest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/brimdata/arbor/tree"
	"github.com/stretchr/testify/require"
)

// Fixture is a built tree together with the bytes its baskets point into.
type Fixture struct {
	Tree *tree.Tree
	Data []byte
}

type Builder struct {
	builder     *tree.Builder
	data        bytes.Buffer
	compression string
	entries     int64
	err         error
}

// New starts a fixture.  The data starts with a small preamble so that no
// basket sits at offset zero.
func New(name string) *Builder {
	b := &Builder{builder: tree.NewBuilder(name, 0)}
	b.data.WriteString("arbor\x00")
	return b
}

// Compress selects the frame algorithm ("ZL", "ZS" or "L4") used for
// baskets added from now on.  The empty string stores them raw.
func (b *Builder) Compress(alg string) *Builder {
	b.compression = alg
	return b
}

// Branch adds a branch whose entries are split into baskets of perBasket
// entries.  Count and Count2 of br default to NoBranch when both are zero.
func (b *Builder) Branch(parent tree.BranchID, br tree.Branch, entries [][]byte, perBasket int) *tree.Branch {
	if perBasket <= 0 {
		perBasket = len(entries)
	}
	br.Baskets = nil
	br.Entries = int64(len(entries))
	for first := 0; first < len(entries); first += perBasket {
		end := first + perBasket
		if end > len(entries) {
			end = len(entries)
		}
		br.Baskets = append(br.Baskets, b.basket(int64(first), entries[first:end]))
	}
	b.track(br.Entries)
	return b.builder.Add(parent, br)
}

// Baskets adds a branch with explicit basket boundaries given as the
// number of entries in each basket.
func (b *Builder) Baskets(parent tree.BranchID, br tree.Branch, entries [][]byte, sizes ...int) *tree.Branch {
	br.Baskets = nil
	br.Entries = int64(len(entries))
	var first int
	for _, n := range sizes {
		if first+n > len(entries) {
			b.fail(fmt.Errorf("branch %s: basket sizes exceed %d entries", br.Name, len(entries)))
			break
		}
		br.Baskets = append(br.Baskets, b.basket(int64(first), entries[first:first+n]))
		first += n
	}
	b.track(br.Entries)
	return b.builder.Add(parent, br)
}

// Direct adds a branch whose entries were never written to a basket.
func (b *Builder) Direct(parent tree.BranchID, br tree.Branch, entries [][]byte) *tree.Branch {
	br.Baskets = nil
	br.Direct = bytes.Join(entries, nil)
	br.DirectEntries = int64(len(entries))
	br.Entries = int64(len(entries))
	b.track(br.Entries)
	return b.builder.Add(parent, br)
}

// Lookup returns an already added branch for further editing.
func (b *Builder) Lookup(name string) *tree.Branch {
	return b.builder.Lookup(name)
}

func (b *Builder) Build(t testing.TB) *Fixture {
	t.Helper()
	require.NoError(t, b.err)
	tr, err := b.builder.Build()
	require.NoError(t, err)
	tr.Entries = b.entries
	return &Fixture{Tree: tr, Data: b.data.Bytes()}
}

func (b *Builder) track(n int64) {
	if n > b.entries {
		b.entries = n
	}
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) basket(first int64, entries [][]byte) tree.Basket {
	raw := bytes.Join(entries, nil)
	stored := raw
	if b.compression != "" && len(raw) > 0 {
		framed, err := Frame(b.compression, raw)
		if err != nil {
			b.fail(err)
		} else if framed != nil {
			stored = framed
		}
	}
	basket := tree.Basket{
		Seek:       int64(b.data.Len()),
		Bytes:      int32(len(stored)),
		ObjLen:     int32(len(raw)),
		FirstEntry: first,
		Entries:    int32(len(entries)),
	}
	b.data.Write(stored)
	return basket
}

// Encode writes each value big-endian.  Strings are written as raw bytes.
func Encode(vals ...interface{}) []byte {
	var buf bytes.Buffer
	for _, v := range vals {
		switch v := v.(type) {
		case string:
			buf.WriteString(v)
		case []byte:
			buf.Write(v)
		default:
			if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
				panic(err)
			}
		}
	}
	return buf.Bytes()
}

// Entries encodes each value as one entry.
func Entries[T any](vals ...T) [][]byte {
	out := make([][]byte, len(vals))
	for k, v := range vals {
		out[k] = Encode(v)
	}
	return out
}

// Arrays encodes each slice as the elements of one entry.
func Arrays[T any](arrs ...[]T) [][]byte {
	out := make([][]byte, len(arrs))
	for k, arr := range arrs {
		vals := make([]interface{}, len(arr))
		for j, v := range arr {
			vals[j] = v
		}
		out[k] = Encode(vals...)
	}
	return out
}

// TString encodes a length-prefixed string.
func TString(s string) []byte {
	if len(s) < 255 {
		return Encode(uint8(len(s)), s)
	}
	return Encode(uint8(255), uint32(len(s)), s)
}
