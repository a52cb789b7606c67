// Package selector holds the stock consumers of a read pass: a raw
// per-entry callback, a record dump, column statistics and the histogram
// drawing selector.
package selector

import (
	"github.com/brimdata/arbor/process"
)

// Raw hands every entry to a function.  The record passed to Func is
// reused for the next entry.
type Raw struct {
	Func func(entry int64, rec *process.Record)
	// Finish, when set, is called once the pass ends with its status.
	Finish func(ok bool)
	pass   *process.Pass
}

var _ process.Selector = (*Raw)(nil)

func NewRaw(fn func(int64, *process.Record)) *Raw {
	return &Raw{Func: fn}
}

func (r *Raw) Begin(p *process.Pass) error {
	r.pass = p
	return nil
}

func (r *Raw) Process(entry int64, rec *process.Record) {
	r.Func(entry, rec)
}

func (r *Raw) Terminate(ok bool) {
	if r.Finish != nil {
		r.Finish(ok)
	}
}

// Pass returns the running pass or nil before it begins.
func (r *Raw) Pass() *process.Pass {
	return r.pass
}
