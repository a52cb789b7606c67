package member

import (
	"fmt"

	"github.com/brimdata/arbor/tree"
	"github.com/brimdata/arbor/value"
)

// ForBranch chooses the entry decoder of a branch from its kind, array
// shape and counters.  Class layouts come from reg and are only needed for
// object and streamed branches.
func ForBranch(br *tree.Branch, reg Registry) (Entry, error) {
	elem, err := Element(br, reg)
	if err != nil {
		return nil, fmt.Errorf("branch %s: %w", br.Name, err)
	}
	switch {
	case br.Count2 != tree.NoBranch:
		return Counted2(elem), nil
	case br.Count != tree.NoBranch:
		if br.Kind == tree.KindChars {
			return CountedChars(), nil
		}
		return Counted(elem), nil
	case br.Kind == tree.KindChars:
		return Scalar(elem), nil
	case br.ArrayLen > 0 && len(br.Leaves) <= 1:
		return Fixed(elem, br.ArrayLen), nil
	}
	return Scalar(elem), nil
}

// Element returns the decoder of one element of a branch, ignoring its
// array shape and counters.
func Element(br *tree.Branch, reg Registry) (Func, error) {
	if len(br.Leaves) > 1 {
		return Leaves(br.Leaves)
	}
	if br.Streamed {
		return streamedMember(br, reg)
	}
	switch br.Kind {
	case tree.KindObject, tree.KindAny:
		return ObjectFunc(reg, br.Class, br.Version, br.Checksum)
	case tree.KindChars:
		return Chars(br.ArrayLen), nil
	}
	return For(br.Kind, br.Float)
}

// streamedMember decodes the class member a streamed branch stores.  The
// member's array length is supplied per element by the caller through the
// second counter, so only the element decoder is needed here.
func streamedMember(br *tree.Branch, reg Registry) (Func, error) {
	if reg == nil || br.Class == "" || br.Member == "" {
		return For(br.Kind, br.Float)
	}
	layout, err := reg.Layout(br.Class, br.Version, br.Checksum)
	if err != nil {
		return nil, err
	}
	m := layout.Member(br.Member)
	if m == nil {
		return nil, fmt.Errorf("%w: %s has no member %s", ErrNoLayout, br.Class, br.Member)
	}
	switch m.Kind {
	case tree.KindObject, tree.KindAny:
		return ObjectFunc(reg, m.Class, 0, 0)
	}
	f := m.Float
	if f == (tree.Float{}) {
		f = br.Float
	}
	return For(m.Kind, f)
}

// Floats decodes n consecutive numeric entries into dst.
type Floats func(c *Cursor, dst []float64)

// FloatsFunc returns the bulk decoder of a numeric scalar kind.
func FloatsFunc(kind tree.Kind, f tree.Float) (Floats, error) {
	if !kind.IsNumeric() {
		return nil, fmt.Errorf("%w: %s is not numeric", ErrUnsupportedKind, kind)
	}
	switch kind {
	case tree.KindFloat64:
		return func(c *Cursor, dst []float64) {
			for k := range dst {
				dst[k] = c.Float64()
			}
		}, nil
	case tree.KindFloat32:
		return func(c *Cursor, dst []float64) {
			for k := range dst {
				dst[k] = float64(c.Float32())
			}
		}, nil
	case tree.KindInt32, tree.KindCounter:
		return func(c *Cursor, dst []float64) {
			for k := range dst {
				dst[k] = float64(c.Int32())
			}
		}, nil
	}
	elem, err := For(kind, f)
	if err != nil {
		return nil, err
	}
	return func(c *Cursor, dst []float64) {
		var v value.Value
		for k := range dst {
			elem(c, &v)
			dst[k], _ = v.Float64()
		}
	}, nil
}
