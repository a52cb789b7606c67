// Package value holds decoded branch values.  A Value is a small tagged
// union that is decoded into in place so that the arrays of one entry are
// reused by the next.
package value

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

type Kind uint8

const (
	Null Kind = iota
	Int
	Uint
	Float
	Bool
	String
	Array
	Object
)

var kindNames = [...]string{"null", "int", "uint", "float", "bool", "string", "array", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is one decoded item.  Only the field matching Kind is meaningful.
// Objects keep their member names in Names, parallel to Elems.
type Value struct {
	Kind  Kind
	I     int64
	U     uint64
	F     float64
	B     bool
	S     string
	Names []string
	Elems []Value
}

func (v *Value) SetNull() { v.Kind = Null }
func (v *Value) SetInt(i int64) { v.Kind, v.I = Int, i }
func (v *Value) SetUint(u uint64) { v.Kind, v.U = Uint, u }
func (v *Value) SetFloat(f float64) { v.Kind, v.F = Float, f }
func (v *Value) SetBool(b bool) { v.Kind, v.B = Bool, b }
func (v *Value) SetString(s string) { v.Kind, v.S = String, s }

// SetArray turns v into an array of n elements and returns them.  The
// element storage of a previous entry is reused when it is large enough.
func (v *Value) SetArray(n int) []Value {
	if n < 0 {
		n = 0
	}
	v.Kind = Array
	v.Names = nil
	if cap(v.Elems) < n {
		elems := make([]Value, n)
		copy(elems, v.Elems[:cap(v.Elems)])
		v.Elems = elems
	}
	v.Elems = v.Elems[:n]
	return v.Elems
}

// SetObject turns v into an object with the given member names and
// returns the member values.
func (v *Value) SetObject(names []string) []Value {
	elems := v.SetArray(len(names))
	v.Kind = Object
	v.Names = names
	return elems
}

// Len is the number of elements of an array or object and 1 otherwise.
func (v *Value) Len() int {
	switch v.Kind {
	case Array, Object:
		return len(v.Elems)
	case Null:
		return 0
	}
	return 1
}

// Field returns the named member of an object or nil.
func (v *Value) Field(name string) *Value {
	if v.Kind != Object {
		return nil
	}
	for k, n := range v.Names {
		if n == name {
			return &v.Elems[k]
		}
	}
	return nil
}

func (v Value) IsNumeric() bool {
	switch v.Kind {
	case Int, Uint, Float, Bool:
		return true
	}
	return false
}

// Float64 converts a numeric value.  The second result is false for
// values that are not numbers.
func (v Value) Float64() (float64, bool) {
	switch v.Kind {
	case Int:
		return float64(v.I), true
	case Uint:
		return float64(v.U), true
	case Float:
		return v.F, true
	case Bool:
		if v.B {
			return 1, true
		}
		return 0, true
	}
	return math.NaN(), false
}

// Int64 converts a numeric value, truncating floats.  It is used for
// array counts where a missing or non-numeric counter means zero.
func (v Value) Int64() int64 {
	switch v.Kind {
	case Int:
		return v.I
	case Uint:
		return int64(v.U)
	case Float:
		return int64(v.F)
	case Bool:
		if v.B {
			return 1
		}
	}
	return 0
}

// Text formats a scalar for use as a label.
func (v Value) Text() string {
	switch v.Kind {
	case String:
		return v.S
	case Int:
		return strconv.FormatInt(v.I, 10)
	case Uint:
		return strconv.FormatUint(v.U, 10)
	case Float:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(v.B)
	case Null:
		return ""
	}
	return v.String()
}

func (v Value) String() string {
	var b strings.Builder
	v.format(&b)
	return b.String()
}

func (v Value) format(b *strings.Builder) {
	switch v.Kind {
	case Null:
		b.WriteString("null")
	case String:
		b.WriteString(strconv.Quote(v.S))
	case Array:
		b.WriteByte('[')
		for k, e := range v.Elems {
			if k > 0 {
				b.WriteByte(',')
			}
			e.format(b)
		}
		b.WriteByte(']')
	case Object:
		b.WriteByte('{')
		for k, e := range v.Elems {
			if k > 0 {
				b.WriteByte(',')
			}
			b.WriteString(v.Names[k])
			b.WriteByte(':')
			e.format(b)
		}
		b.WriteByte('}')
	default:
		b.WriteString(v.Text())
	}
}

// Copy returns a deep copy of v that does not share element storage with
// the decoder.
func (v Value) Copy() Value {
	out := v
	if v.Elems != nil {
		out.Elems = make([]Value, len(v.Elems))
		for k := range v.Elems {
			out.Elems[k] = v.Elems[k].Copy()
		}
	}
	return out
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case Null:
		return []byte("null"), nil
	case Int:
		return strconv.AppendInt(nil, v.I, 10), nil
	case Uint:
		return strconv.AppendUint(nil, v.U, 10), nil
	case Float:
		if math.IsNaN(v.F) || math.IsInf(v.F, 0) {
			return json.Marshal(strconv.FormatFloat(v.F, 'g', -1, 64))
		}
		return json.Marshal(v.F)
	case Bool:
		return json.Marshal(v.B)
	case String:
		return json.Marshal(v.S)
	case Array:
		if len(v.Elems) == 0 {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Elems)
	case Object:
		m := make(map[string]Value, len(v.Elems))
		for k, e := range v.Elems {
			m[v.Names[k]] = e
		}
		return json.Marshal(m)
	}
	return nil, &json.UnsupportedValueError{Str: v.Kind.String()}
}
