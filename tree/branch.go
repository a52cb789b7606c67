package tree

import (
	"fmt"
	"strings"
)

// BranchID indexes a branch in its Tree's arena.
type BranchID int

// NoBranch marks an absent branch reference.
const NoBranch BranchID = -1

// Basket locates one independently fetchable chunk of a branch.  Entries
// [FirstEntry, FirstEntry+Entries) are encoded back to back in the
// decompressed basket payload.
type Basket struct {
	Seek       int64
	Bytes      int32
	ObjLen     int32
	FirstEntry int64
	Entries    int32
}

// Compressed is true when the stored bytes need to be unzipped.
func (b Basket) Compressed() bool {
	return b.ObjLen != 0 && b.Bytes != b.ObjLen
}

// Float holds the packing parameters of Float16 and Double32 values.
type Float struct {
	Factor float64
	Min    float64
	NBits  int
}

// Leaf is one elementary leaf of a branch that packs several of them into
// each entry.
type Leaf struct {
	Name     string
	Kind     Kind
	ArrayLen int
}

// Branch is an immutable column descriptor.  Branches are created through
// a Builder and owned by exactly one Tree.
type Branch struct {
	ID     BranchID
	Name   string
	Kind   Kind
	Parent BranchID
	// ArrayLen is the fixed number of elements per entry or 0 for scalars.
	ArrayLen int
	// Count is the branch whose per-entry value gives this branch's
	// element count.  Count2 gives the inner counts of a two-level
	// variable array.
	Count  BranchID
	Count2 BranchID
	// Variable marks a branch whose entries always need a counter.
	Variable bool
	// Streamed marks a per-entry variable branch streamed through its
	// class layout, e.g. a loop of objects inside a collection.
	Streamed bool
	Class    string
	Version  int
	Checksum uint32
	// Member names the class member this branch stores, if any.
	Member   string
	Float    Float
	Leaves   []Leaf
	Entries  int64
	Baskets  []Basket
	Children []BranchID
	// Direct holds entries that were never flushed to a basket.  It is
	// served as a single always-available pseudo-chunk.
	Direct        []byte
	DirectEntries int64
	DirectFirst   int64
}

// HasDirect is true for a branch without baskets that carries in-memory
// data.
func (b *Branch) HasDirect() bool {
	return len(b.Baskets) == 0 && b.Direct != nil && b.DirectEntries > 0
}

// FirstEntry is the first entry stored in the branch.
func (b *Branch) FirstEntry() int64 {
	if b.HasDirect() {
		return b.DirectFirst
	}
	if len(b.Baskets) > 0 {
		return b.Baskets[0].FirstEntry
	}
	return 0
}

// BasketEnd returns the entry after the last one stored in basket k.
func (b *Branch) BasketEnd(k int) int64 {
	basket := b.Baskets[k]
	if basket.Entries > 0 {
		return basket.FirstEntry + int64(basket.Entries)
	}
	if k+1 < len(b.Baskets) {
		return b.Baskets[k+1].FirstEntry
	}
	return b.FirstEntry() + b.Entries
}

// BaseName strips a trailing array dimension such as "[n]" from the name.
func (b *Branch) BaseName() string {
	return trimIndex(b.Name)
}

func (b *Branch) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:%s", b.Name, b.Kind)
	if b.ArrayLen > 0 {
		fmt.Fprintf(&sb, "[%d]", b.ArrayLen)
	}
	if b.Count != NoBranch {
		sb.WriteString("[]")
	}
	return sb.String()
}

func trimIndex(name string) string {
	if strings.HasSuffix(name, "]") {
		if k := strings.IndexByte(name, '['); k >= 0 {
			return name[:k]
		}
	}
	return name
}
