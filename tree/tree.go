// Package tree describes the layout of a columnar tree: named branches,
// their element kinds, their counter relationships and the baskets that
// hold their entries.  Descriptors are immutable once built so that any
// number of read passes can share a Tree.
package tree

import (
	"errors"
	"fmt"
	"strings"
)

type Tree struct {
	Name     string
	Entries  int64
	branches []*Branch
	roots    []BranchID
}

// Branch returns the branch with the given id or nil.
func (t *Tree) Branch(id BranchID) *Branch {
	if id < 0 || int(id) >= len(t.branches) {
		return nil
	}
	return t.branches[id]
}

// Branches returns every branch in arena order.
func (t *Tree) Branches() []*Branch {
	return t.branches
}

// Roots returns the top-level branches.
func (t *Tree) Roots() []*Branch {
	out := make([]*Branch, 0, len(t.roots))
	for _, id := range t.roots {
		out = append(out, t.branches[id])
	}
	return out
}

// Children returns the child branches of b.
func (t *Tree) Children(b *Branch) []*Branch {
	out := make([]*Branch, 0, len(b.Children))
	for _, id := range b.Children {
		out = append(out, t.branches[id])
	}
	return out
}

// Lookup finds a branch by its exact name anywhere in the tree.
func (t *Tree) Lookup(name string) *Branch {
	for _, b := range t.branches {
		if b.Name == name || b.BaseName() == name {
			return b
		}
	}
	return nil
}

// Match is the result of resolving a dotted branch path.  Rest holds the
// part of the path that did not name a branch, e.g. "[]" or ".fX".
type Match struct {
	Branch *Branch
	Rest   string
}

// Find resolves a branch path such as "event.tracks.fPx[]".  The full name
// is tried first, then the leading component is matched and the search
// descends into its children.  When no child matches, the parent name is
// combined with the remainder since sub-branches are often named
// "parent.member".  Whatever is left unmatched is returned in Rest.
func (t *Tree) Find(path string) (Match, bool) {
	search, tail := path, ""
	if k := strings.IndexByte(path, '['); k > 0 {
		search, tail = path[:k], path[k:]
	}
	m, ok := t.find(search, t.roots)
	if ok {
		m.Rest += tail
	}
	return m, ok
}

func (t *Tree) find(name string, list []BranchID) (Match, bool) {
	dot := strings.IndexByte(name, '.')
	arr := strings.Index(name, "[]")
	pos := dot
	if pos < 0 || (arr >= 0 && arr < pos) {
		pos = arr
	}
	if pos < 0 {
		pos = strings.IndexByte(name, '>')
	}
	search := name
	var br *Branch
	for loop := 0; loop < 2; loop++ {
		for _, id := range list {
			if b := t.branches[id]; b.BaseName() == search {
				br = b
				break
			}
		}
		if br != nil {
			if loop == 0 {
				return Match{Branch: br}, true
			}
			break
		}
		if pos <= 0 {
			break
		}
		search = name[:pos]
	}
	if br == nil {
		return Match{}, false
	}
	if pos <= 0 || pos == len(name)-1 {
		return Match{Branch: br}, true
	}
	if dot > 0 {
		if m, ok := t.find(name[dot+1:], br.Children); ok {
			return m, true
		}
		if !strings.ContainsAny(br.Name, ".[") {
			if m, ok := t.find(br.Name+name[dot:], br.Children); ok {
				return m, true
			}
		}
	}
	return Match{Branch: br, Rest: name[pos:]}, true
}

// Builder assembles a Tree.  Branches returned by Add may be modified
// until Build is called.
type Builder struct {
	tree *Tree
	err  error
}

func NewBuilder(name string, entries int64) *Builder {
	return &Builder{tree: &Tree{Name: name, Entries: entries}}
}

// Add appends a branch under parent (NoBranch for a top-level branch) and
// returns it with its ID assigned.
func (b *Builder) Add(parent BranchID, br Branch) *Branch {
	br.ID = BranchID(len(b.tree.branches))
	br.Parent = parent
	br.Children = nil
	if br.Count == 0 && br.Count2 == 0 {
		// The zero value refers to branch 0, which can never be its own
		// counter, so treat it as unset.
		br.Count, br.Count2 = NoBranch, NoBranch
	}
	p := &br
	b.tree.branches = append(b.tree.branches, p)
	if parent == NoBranch {
		b.tree.roots = append(b.tree.roots, p.ID)
	} else if pb := b.tree.Branch(parent); pb != nil {
		pb.Children = append(pb.Children, p.ID)
	} else if b.err == nil {
		b.err = fmt.Errorf("branch %q: unknown parent %d", br.Name, parent)
	}
	return p
}

// Branch returns a branch added so far for further editing.
func (b *Builder) Branch(id BranchID) *Branch {
	return b.tree.Branch(id)
}

// Lookup finds an already added branch by name.
func (b *Builder) Lookup(name string) *Branch {
	return b.tree.Lookup(name)
}

var ErrBadLayout = errors.New("bad tree layout")

// Build validates the descriptors and returns the finished Tree.
func (b *Builder) Build() (*Tree, error) {
	if b.err != nil {
		return nil, b.err
	}
	t := b.tree
	for _, br := range t.branches {
		for _, c := range []BranchID{br.Count, br.Count2} {
			if c == NoBranch {
				continue
			}
			if t.Branch(c) == nil || c == br.ID {
				return nil, fmt.Errorf("%w: branch %q: bad counter reference %d", ErrBadLayout, br.Name, c)
			}
		}
		if br.Count == NoBranch && br.Count2 != NoBranch {
			return nil, fmt.Errorf("%w: branch %q: second counter without first", ErrBadLayout, br.Name)
		}
		for k := 1; k < len(br.Baskets); k++ {
			if br.Baskets[k].FirstEntry < br.Baskets[k-1].FirstEntry {
				return nil, fmt.Errorf("%w: branch %q: basket %d out of order", ErrBadLayout, br.Name, k)
			}
		}
		if br.Entries == 0 {
			br.Entries = countEntries(br)
		}
	}
	b.tree = nil
	return t, nil
}

func countEntries(br *Branch) int64 {
	if br.HasDirect() {
		return br.DirectEntries
	}
	var n int64
	for _, basket := range br.Baskets {
		n += int64(basket.Entries)
	}
	return n
}
