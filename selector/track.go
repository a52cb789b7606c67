package selector

import "github.com/brimdata/arbor/process"

// Tracked forwards to a selector and keeps the pass it was started with.
type Tracked interface {
	process.Selector
	Pass() *process.Pass
}

type tracker struct {
	process.Selector
	pass *process.Pass
}

func (t *tracker) Begin(p *process.Pass) error {
	t.pass = p
	return t.Selector.Begin(p)
}

func (t *tracker) Pass() *process.Pass {
	return t.pass
}

type bulkTracker struct {
	*tracker
	bulk process.BulkSelector
}

func (b *bulkTracker) ProcessBulk(batch *process.Batch) {
	b.bulk.ProcessBulk(batch)
}

// Track wraps sel.  The result is a BulkSelector when sel is one.  Pass
// is nil until Begin.
func Track(sel process.Selector) Tracked {
	t := &tracker{Selector: sel}
	if bulk, ok := sel.(process.BulkSelector); ok {
		return &bulkTracker{tracker: t, bulk: bulk}
	}
	return t
}
