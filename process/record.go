package process

import (
	"github.com/brimdata/arbor/plan"
	"github.com/brimdata/arbor/value"
)

// Record is the working record of one entry: the decoded value of every
// requested expression.  A Record and the values it returns are reused
// for the next entry, so selectors that keep them must copy.
type Record struct {
	outputs []*plan.Output
	columns []*column
	iters   []*value.Iterator
	scratch []value.Value
}

func newRecord(outputs []*plan.Output, columns []*column) *Record {
	r := &Record{
		outputs: outputs,
		columns: columns,
		iters:   make([]*value.Iterator, len(outputs)),
		scratch: make([]value.Value, len(outputs)),
	}
	for k, o := range outputs {
		r.iters[k] = o.Iterator()
	}
	return r
}

// Len is the number of outputs.
func (r *Record) Len() int {
	return len(r.outputs)
}

func (r *Record) Name(i int) string {
	return r.outputs[i].Name
}

// Lookup returns the index of the named output or -1.
func (r *Record) Lookup(name string) int {
	for k, o := range r.outputs {
		if o.Name == name {
			return k
		}
	}
	return -1
}

// Column is the decoded branch value of output i before any selection.
func (r *Record) Column(i int) *value.Value {
	return &r.columns[r.outputs[i].Column].value
}

// Leaves returns the iterator over the leaf values of output i, reset to
// the current entry.
func (r *Record) Leaves(i int) *value.Iterator {
	it := r.iters[i]
	it.Reset(r.Column(i))
	return it
}

// Value is output i with its selection applied.  Without a selection it is
// the decoded value itself; otherwise a single selected leaf is returned
// as is and several leaves as an array.
func (r *Record) Value(i int) value.Value {
	o := r.outputs[i]
	if len(o.Steps) == 0 && o.Project == nil {
		return *r.Column(i)
	}
	it := r.Leaves(i)
	v := &r.scratch[i]
	if !selectsMany(o.Steps) {
		switch it.Len() {
		case 0:
			return value.Value{}
		case 1:
			it.Next()
			return it.Value()
		}
	}
	elems := v.SetArray(it.Len())
	for k := 0; it.Next(); k++ {
		elems[k] = it.Value()
	}
	return *v
}

func selectsMany(steps []value.Step) bool {
	for _, s := range steps {
		if s.Kind == value.StepAll {
			return true
		}
	}
	return false
}

// Batch is a run of consecutive entries decoded a basket at a time.  The
// slices returned by Values are reused for the next batch.
type Batch struct {
	First   int64
	Len     int
	outputs []*plan.Output
	columns [][]float64
}

func (b *Batch) Names() []string {
	names := make([]string, len(b.outputs))
	for k, o := range b.outputs {
		names[k] = o.Name
	}
	return names
}

// Values returns the values of output i for entries [First, First+Len).
func (b *Batch) Values(i int) []float64 {
	return b.columns[b.outputs[i].Column]
}
