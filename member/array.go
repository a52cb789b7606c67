package member

import (
	"github.com/brimdata/arbor/value"
)

// Entry decodes one entry of a branch.  count and count2 hold the values
// already decoded for the entry from the branch's counters; they are nil
// for branches without counters.
type Entry func(c *Cursor, count, count2 *value.Value, v *value.Value)

// Scalar lifts an element decoder to an entry decoder.
func Scalar(elem Func) Entry {
	return func(c *Cursor, _, _ *value.Value, v *value.Value) {
		elem(c, v)
	}
}

// Fixed decodes n elements per entry.
func Fixed(elem Func, n int) Entry {
	return func(c *Cursor, _, _ *value.Value, v *value.Value) {
		readArray(c, elem, n, v)
	}
}

// Counted decodes as many elements as the counter value of the entry.
func Counted(elem Func) Entry {
	return func(c *Cursor, count, _ *value.Value, v *value.Value) {
		readArray(c, elem, countOf(count), v)
	}
}

// Counted2 decodes a two-level variable array.  The counter gives the
// number of inner arrays and the second counter, itself an array sized by
// the first, gives the length of each inner array.  Every inner array is
// preceded by a presence byte; an absent one decodes as empty.
func Counted2(elem Func) Entry {
	return func(c *Cursor, count, count2 *value.Value, v *value.Value) {
		m := countOf(count)
		if m > c.Remaining() {
			// Each inner array takes at least its presence byte.
			c.Skip(m)
			m = 0
		}
		outer := v.SetArray(m)
		for k := range outer {
			n := 0
			if count2 != nil && k < len(count2.Elems) {
				n = countOf(&count2.Elems[k])
			}
			if c.Uint8() != 1 {
				n = 0
			}
			readArray(c, elem, n, &outer[k])
		}
	}
}

// CountedChars decodes a variable char array as a string.
func CountedChars() Entry {
	return func(c *Cursor, count, _ *value.Value, v *value.Value) {
		v.SetString(cstring(c.Bytes(countOf(count))))
	}
}

func readArray(c *Cursor, elem Func, n int, v *value.Value) {
	if n > c.Remaining() {
		// Every element takes at least one byte so a larger count can
		// only come from a corrupt counter.
		c.Skip(n)
		n = 0
	}
	elems := v.SetArray(n)
	for k := range elems {
		elem(c, &elems[k])
	}
}

func countOf(v *value.Value) int {
	if v == nil {
		return 0
	}
	n := v.Int64()
	if n < 0 {
		return 0
	}
	return int(n)
}
