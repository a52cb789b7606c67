package value

import (
	"fmt"
	"strconv"
)

type StepKind uint8

const (
	StepAll StepKind = iota
	StepIndex
	StepFirst
	StepLast
	StepSize
	StepMember
)

// Step selects part of a value at one nesting level.  Array steps apply
// to successive array levels; a Member step selects a member of an
// object.  Levels without an explicit step are iterated in full.
type Step struct {
	Kind  StepKind
	Index int
	Name  string
}

func (s Step) String() string {
	switch s.Kind {
	case StepAll:
		return "[$all$]"
	case StepIndex:
		return "[" + strconv.Itoa(s.Index) + "]"
	case StepFirst:
		return "[$first$]"
	case StepLast:
		return "[$last$]"
	case StepSize:
		return "[$size$]"
	case StepMember:
		return "." + s.Name
	}
	return fmt.Sprintf("step(%d)", s.Kind)
}

// Projection transforms each leaf before it is yielded.
type Projection func(Value) Value

// Iterator flattens a decoded value into its leaf scalars, depth first in
// row-major order.  An Iterator is meant to be Reset with each entry's
// value; its leaf buffer is kept between entries.
type Iterator struct {
	steps   []Step
	project Projection
	leaves  []Value
	pos     int
}

func NewIterator(steps []Step, project Projection) *Iterator {
	return &Iterator{steps: steps, project: project}
}

// Reset starts iteration over v.
func (i *Iterator) Reset(v *Value) {
	i.leaves = i.leaves[:0]
	i.pos = -1
	if v != nil {
		i.walk(v, i.steps)
	}
}

func (i *Iterator) Next() bool {
	i.pos++
	return i.pos < len(i.leaves)
}

func (i *Iterator) Value() Value {
	return i.leaves[i.pos]
}

// Len is the number of leaves of the current entry.
func (i *Iterator) Len() int {
	return len(i.leaves)
}

func (i *Iterator) emit(v Value) {
	if i.project != nil {
		v = i.project(v)
	}
	i.leaves = append(i.leaves, v)
}

func (i *Iterator) walk(v *Value, steps []Step) {
	switch v.Kind {
	case Null:
	case Object:
		if len(steps) > 0 && steps[0].Kind == StepMember {
			if f := v.Field(steps[0].Name); f != nil {
				i.walk(f, steps[1:])
			}
			return
		}
		i.emit(*v)
	case Array:
		step := Step{Kind: StepAll}
		rest := steps
		if len(steps) > 0 && steps[0].Kind != StepMember {
			step, rest = steps[0], steps[1:]
		}
		switch step.Kind {
		case StepAll:
			for k := range v.Elems {
				i.walk(&v.Elems[k], rest)
			}
		case StepSize:
			i.emit(Value{Kind: Int, I: int64(len(v.Elems))})
		default:
			if k := index(step, len(v.Elems)); k >= 0 {
				i.walk(&v.Elems[k], rest)
			}
		}
	default:
		// A scalar behaves as an array of one element so that a
		// selection written for arrays still applies to it.
		if len(steps) > 0 {
			switch steps[0].Kind {
			case StepMember:
				return
			case StepSize:
				i.emit(Value{Kind: Int, I: 1})
				return
			case StepIndex, StepFirst, StepLast:
				if index(steps[0], 1) < 0 {
					return
				}
			}
		}
		i.emit(*v)
	}
}

func index(s Step, n int) int {
	var k int
	switch s.Kind {
	case StepIndex:
		k = s.Index
	case StepFirst:
		k = 0
	case StepLast:
		k = n - 1
	}
	if k < 0 || k >= n {
		return -1
	}
	return k
}
