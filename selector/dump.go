package selector

import (
	"github.com/brimdata/arbor/process"
	"github.com/brimdata/arbor/value"
)

// Dump collects copies of the first Limit records of a pass.  Records
// collected before a failure or an abort are kept with Complete unset.
type Dump struct {
	Limit    int
	Entries  []int64
	Records  []map[string]value.Value
	Complete bool
}

var _ process.Selector = (*Dump)(nil)

func NewDump(limit int) *Dump {
	return &Dump{Limit: limit}
}

func (d *Dump) Begin(*process.Pass) error {
	d.Entries = d.Entries[:0]
	d.Records = d.Records[:0]
	d.Complete = false
	return nil
}

func (d *Dump) Process(entry int64, rec *process.Record) {
	if d.Limit > 0 && len(d.Records) >= d.Limit {
		return
	}
	m := make(map[string]value.Value, rec.Len())
	for k := 0; k < rec.Len(); k++ {
		m[rec.Name(k)] = rec.Value(k).Copy()
	}
	d.Entries = append(d.Entries, entry)
	d.Records = append(d.Records, m)
}

func (d *Dump) Terminate(ok bool) {
	d.Complete = ok
}
