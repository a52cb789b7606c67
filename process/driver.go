package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brimdata/arbor/basket"
	"github.com/brimdata/arbor/member"
	"github.com/brimdata/arbor/plan"
	"github.com/brimdata/arbor/sched"
	"github.com/brimdata/arbor/value"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

type state int

const (
	scheduling state = iota
	fetching
	decoding
	done
)

func (s state) String() string {
	switch s {
	case scheduling:
		return "scheduling"
	case fetching:
		return "fetching"
	case decoding:
		return "decoding"
	case done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// column is the pass-scoped read state of one planned branch.
type column struct {
	plan   *plan.Column
	cursor member.Cursor
	chunk  sched.Chunk
	loaded bool
	// entry is the next entry this column decodes.
	entry  int64
	value  value.Value
	count  *value.Value
	count2 *value.Value
	bulk   []float64
}

func (c *column) load(chunk sched.Chunk) {
	c.chunk = chunk
	c.loaded = true
	c.cursor.Reset(chunk.Data)
	if c.entry < chunk.First {
		c.entry = chunk.First
	}
}

type driver struct {
	pass     *Pass
	logger   *zap.Logger
	fetcher  basket.Fetcher
	sel      Selector
	bulkSel  BulkSelector
	opts     Options
	sched    *sched.Scheduler
	columns  []*column
	record   *Record
	batch    Batch
	requests []basket.Request
	started  bool
	// current is the entry being assembled.
	current int64
	// Bulk decoding is suspended before perEntryUntil after a mismatch.
	perEntryUntil int64
	processed     int64
	lastReport    time.Time
}

func newDriver(pass *Pass, fetcher basket.Fetcher, sel Selector, opts Options) *driver {
	p := pass.Plan
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	d := &driver{
		pass:    pass,
		logger:  pass.logger,
		fetcher: fetcher,
		sel:     sel,
		opts:    opts,
		sched:   sched.New(p, opts.Budget),
	}
	if bs, ok := sel.(BulkSelector); ok {
		d.bulkSel = bs
	}
	for _, pc := range p.Columns {
		d.columns = append(d.columns, &column{plan: pc})
	}
	for _, col := range d.columns {
		if col.plan.Count >= 0 {
			col.count = &d.columns[col.plan.Count].value
		}
		if col.plan.Count2 >= 0 {
			col.count2 = &d.columns[col.plan.Count2].value
		}
	}
	d.record = newRecord(p.Outputs, d.columns)
	d.batch = Batch{outputs: p.Outputs, columns: make([][]float64, len(d.columns))}
	return d
}

func (d *driver) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := d.pass.Plan
	d.logger.Debug("pass started",
		zap.Int("columns", len(d.columns)),
		zap.Int64("first", p.First),
		zap.Int64("end", p.End),
		zap.Bool("bulk", p.Bulk && d.bulkSel != nil))
	if err := d.sel.Begin(d.pass); err != nil {
		return d.finish(err)
	}
	d.report(true)
	st := scheduling
	for {
		var err error
		switch st {
		case scheduling:
			st = d.schedule()
		case fetching:
			st, err = d.fetch(ctx)
		case decoding:
			st, err = d.decode()
		case done:
			return d.finish(nil)
		}
		if err != nil {
			return d.finish(err)
		}
	}
}

func (d *driver) finish(err error) error {
	if err == nil && d.processed == 0 {
		err = ErrNoData
	}
	status := "done"
	switch {
	case errors.Is(err, ErrAborted):
		status = "aborted"
	case err != nil:
		status = "failed"
	}
	if err != nil {
		d.sched.Release()
	}
	d.report(true)
	d.sel.Terminate(err == nil)
	d.opts.Metrics.processed(int(d.processed))
	d.opts.Metrics.finished(status)
	d.logger.Debug("pass finished",
		zap.String("status", status),
		zap.Int64("entries", d.processed),
		zap.Int64("staged", d.sched.StagedBytes()),
		zap.Error(err))
	return err
}

func (d *driver) report(force bool) {
	if d.opts.Progress == nil {
		return
	}
	now := time.Now()
	if !force && now.Sub(d.lastReport) < d.opts.ProgressInterval {
		return
	}
	d.lastReport = now
	d.opts.Progress(d.sched.Progress())
}

func (d *driver) schedule() state {
	d.report(false)
	d.requests = d.sched.Stage()
	if len(d.requests) == 0 {
		// Nothing is left to fetch so every waiting column is exhausted.
		return decoding
	}
	return fetching
}

type fetchResult struct {
	blobs []basket.Blob
	err   error
}

// fetch issues the staged batch and waits for it, the context or an abort,
// whichever comes first.
func (d *driver) fetch(ctx context.Context) (state, error) {
	reqs := d.requests
	d.requests = nil
	ch := make(chan fetchResult, 1)
	go func() {
		blobs, err := d.fetcher.Fetch(ctx, reqs)
		ch <- fetchResult{blobs, err}
	}()
	var r fetchResult
	select {
	case r = <-ch:
	case <-ctx.Done():
		return done, ctx.Err()
	case <-d.pass.abort:
		return done, ErrAborted
	}
	if r.err != nil {
		return done, fmt.Errorf("fetching %d baskets: %w", len(reqs), r.err)
	}
	if d.pass.Aborted() {
		return done, ErrAborted
	}
	if len(r.blobs) != len(reqs) {
		return done, fmt.Errorf("fetcher returned %d baskets for %d requests", len(r.blobs), len(reqs))
	}
	if err := d.sched.Deliver(r.blobs); err != nil {
		return done, err
	}
	d.logger.Debug("baskets fetched", zap.Int("baskets", len(reqs)), zap.Int64("staged", d.sched.StagedBytes()))
	return decoding, nil
}

// needs is true when col has to acquire a chunk before the current entry
// can be decoded.
func (d *driver) needs(col *column) bool {
	if !col.loaded {
		return true
	}
	return col.entry >= col.chunk.End() && col.entry == d.current
}

func (d *driver) decode() (state, error) {
	p := d.pass.Plan
	for {
		if d.pass.Aborted() {
			return done, ErrAborted
		}
		if d.started && d.current >= p.End {
			return done, nil
		}
		for k, col := range d.columns {
			for d.needs(col) {
				chunk, st := d.sched.Acquire(k)
				switch st {
				case sched.NeedFetch:
					return scheduling, nil
				case sched.Exhausted:
					return d.exhausted(col)
				}
				col.load(chunk)
			}
		}
		if !d.started {
			d.current = d.columns[0].entry
			for _, col := range d.columns[1:] {
				d.current = min(d.current, col.entry)
			}
			d.started = true
			continue
		}
		ok, err := d.bulk()
		if err != nil {
			return done, err
		}
		if !ok {
			if err := d.entry(); err != nil {
				return done, err
			}
		}
	}
}

func (d *driver) exhausted(col *column) (state, error) {
	if d.processed == 0 {
		return done, ErrNoData
	}
	d.logger.Warn("data ended before the end of the window",
		zap.String("column", col.plan.Name),
		zap.Int64("entry", d.current),
		zap.Int64("end", d.pass.Plan.End))
	return done, nil
}

// bulk decodes the rest of the current chunks at once when they all end
// at the same entry.  It reports false when the current entry must be
// decoded on its own.
func (d *driver) bulk() (bool, error) {
	p := d.pass.Plan
	if !p.Bulk || d.bulkSel == nil || d.current < d.perEntryUntil {
		return false, nil
	}
	end := d.columns[0].chunk.End()
	limit := end
	for _, col := range d.columns {
		if col.entry != d.current {
			return false, nil
		}
		limit = min(limit, col.chunk.End())
	}
	if !d.aligned(end) {
		if d.opts.Mismatch == Fail {
			return false, fmt.Errorf("%w at entry %d", ErrMismatch, d.current)
		}
		d.logger.Warn("bulk chunks not aligned, decoding entry by entry",
			zap.Int64("entry", d.current),
			zap.Int64("until", limit))
		d.perEntryUntil = limit
		return false, nil
	}
	n := int(end - d.current)
	if n <= 1 {
		return false, nil
	}
	for _, col := range d.columns {
		col.bulk = slices.Grow(col.bulk[:0], n)[:n]
		col.plan.Bulk(&col.cursor, col.bulk)
		if err := col.cursor.Err(); err != nil {
			return false, fmt.Errorf("column %s basket %d: %w", col.plan.Name, col.chunk.Index, err)
		}
		col.entry = end
	}
	lo, hi := max(d.current, p.First), min(end, p.End)
	if hi > lo {
		d.batch.First = lo
		d.batch.Len = int(hi - lo)
		for k, col := range d.columns {
			d.batch.columns[k] = col.bulk[lo-d.current : hi-d.current]
		}
		d.bulkSel.ProcessBulk(&d.batch)
		d.count(int64(d.batch.Len))
	}
	d.current = end
	return true, nil
}

func (d *driver) aligned(end int64) bool {
	for _, col := range d.columns {
		if col.chunk.End() != end {
			return false
		}
	}
	return true
}

// entry decodes the current entry of every column in plan order so that
// counters are decoded before the arrays they size.
func (d *driver) entry() error {
	for _, col := range d.columns {
		if col.entry != d.current {
			// The column has no data for this entry.
			col.value.SetNull()
			continue
		}
		col.plan.Decode(&col.cursor, col.count, col.count2, &col.value)
		if err := col.cursor.Err(); err != nil {
			return fmt.Errorf("column %s entry %d: %w", col.plan.Name, d.current, err)
		}
		col.entry++
	}
	if d.current >= d.pass.Plan.First {
		d.sel.Process(d.current, d.record)
		d.count(1)
	}
	d.current++
	return nil
}

func (d *driver) count(n int64) {
	d.processed += n
	d.pass.entries.Add(n)
}
