package member

import (
	"errors"
	"fmt"

	"github.com/brimdata/arbor/tree"
	"github.com/brimdata/arbor/value"
)

var ErrNoLayout = errors.New("class layout not found")

// Member describes one data member of a streamed class.  CountName names
// an earlier integer member holding the length of a variable array.
type Member struct {
	Name      string
	Kind      tree.Kind
	ArrayLen  int
	CountName string
	Class     string
	Float     tree.Float
}

// Layout is the ordered member list of one version of a class.
type Layout struct {
	Class    string
	Version  int
	Checksum uint32
	Members  []Member
}

func (l *Layout) Member(name string) *Member {
	for k := range l.Members {
		if l.Members[k].Name == name {
			return &l.Members[k]
		}
	}
	return nil
}

// Registry provides class layouts.  A zero version or checksum matches
// any version of the class.
type Registry interface {
	Layout(class string, version int, checksum uint32) (*Layout, error)
}

type fieldFunc func(c *Cursor, fields []value.Value, v *value.Value)

// ObjectFunc returns the decoder of a streamed object: a version header
// followed by the members of the class layout in order.
func ObjectFunc(reg Registry, class string, version int, checksum uint32) (Func, error) {
	return objectFunc(reg, class, version, checksum, map[string]bool{})
}

func objectFunc(reg Registry, class string, version int, checksum uint32, active map[string]bool) (Func, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoLayout, class)
	}
	if active[class] {
		return nil, fmt.Errorf("class %s contains itself", class)
	}
	active[class] = true
	defer delete(active, class)
	layout, err := reg.Layout(class, version, checksum)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(layout.Members))
	fields := make([]fieldFunc, len(layout.Members))
	for k, m := range layout.Members {
		names[k] = m.Name
		f, err := memberFunc(reg, layout, k, active)
		if err != nil {
			return nil, fmt.Errorf("%s::%s: %w", class, m.Name, err)
		}
		fields[k] = f
	}
	return func(c *Cursor, v *value.Value) {
		start := c.Offset()
		_, size := c.Version()
		elems := v.SetObject(names)
		for k, f := range fields {
			f(c, elems, &elems[k])
		}
		if size > 0 {
			if end := start + 4 + size; c.Offset() < end {
				c.Skip(end - c.Offset())
			}
		}
	}, nil
}

func memberFunc(reg Registry, layout *Layout, k int, active map[string]bool) (fieldFunc, error) {
	m := layout.Members[k]
	var elem Func
	switch m.Kind {
	case tree.KindObject, tree.KindAny:
		f, err := objectFunc(reg, m.Class, 0, 0, active)
		if err != nil {
			return nil, err
		}
		elem = f
	case tree.KindChars:
	default:
		f, err := For(m.Kind, m.Float)
		if err != nil {
			return nil, err
		}
		elem = f
	}
	if m.CountName != "" {
		cnt := -1
		for j := 0; j < k; j++ {
			if layout.Members[j].Name == m.CountName {
				cnt = j
			}
		}
		if cnt < 0 {
			return nil, fmt.Errorf("count member %q must precede the array", m.CountName)
		}
		chars := m.Kind == tree.KindChars
		return func(c *Cursor, fields []value.Value, v *value.Value) {
			n := countOf(&fields[cnt])
			if c.Uint8() != 1 {
				n = 0
			}
			if chars {
				v.SetString(cstring(c.Bytes(n)))
				return
			}
			readArray(c, elem, n, v)
		}, nil
	}
	if m.Kind == tree.KindChars {
		f := Chars(m.ArrayLen)
		return func(c *Cursor, _ []value.Value, v *value.Value) { f(c, v) }, nil
	}
	if m.ArrayLen > 0 {
		n := m.ArrayLen
		return func(c *Cursor, _ []value.Value, v *value.Value) { readArray(c, elem, n, v) }, nil
	}
	return func(c *Cursor, _ []value.Value, v *value.Value) { elem(c, v) }, nil
}

// Leaves decodes a branch that packs several elementary leaves into each
// entry.  The result is an object with one member per leaf.
func Leaves(leaves []tree.Leaf) (Func, error) {
	names := make([]string, len(leaves))
	funcs := make([]Func, len(leaves))
	for k, leaf := range leaves {
		names[k] = leaf.Name
		if leaf.Kind == tree.KindChars {
			funcs[k] = Chars(leaf.ArrayLen)
			continue
		}
		f, err := For(leaf.Kind, tree.Float{})
		if err != nil {
			return nil, fmt.Errorf("leaf %s: %w", leaf.Name, err)
		}
		if n := leaf.ArrayLen; n > 0 {
			elem := f
			f = func(c *Cursor, v *value.Value) { readArray(c, elem, n, v) }
		}
		funcs[k] = f
	}
	return func(c *Cursor, v *value.Value) {
		elems := v.SetObject(names)
		for k, f := range funcs {
			f(c, &elems[k])
		}
	}, nil
}
