// Package sched decides which baskets a read pass fetches next.  It keeps
// the per-branch read state of one pass: the next basket to stage, the
// baskets requested but not yet delivered, and the delivered chunks
// waiting to be decoded.  Branch descriptors are never modified.
package sched

import (
	"fmt"

	"github.com/brimdata/arbor/basket"
	"github.com/brimdata/arbor/plan"
	"github.com/brimdata/arbor/tree"
)

// DefaultBudget is the batch size at which staging stops and a fetch is
// issued.
const DefaultBudget = 1 << 20

// DirectIndex is the basket index of a branch's in-memory pseudo-chunk.
const DirectIndex = -1

// Chunk is a delivered basket, or the direct data of a branch, holding
// the entries [First, First+Entries).
type Chunk struct {
	Branch  tree.BranchID
	Index   int
	First   int64
	Entries int
	Data    []byte
}

func (c Chunk) End() int64 {
	return c.First + int64(c.Entries)
}

type State int

const (
	// Ready means a chunk is available.
	Ready State = iota
	// NeedFetch means the next chunk must be staged and fetched first.
	NeedFetch
	// Exhausted means the branch has no more chunks in the window.
	Exhausted
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case NeedFetch:
		return "need-fetch"
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type branchState struct {
	branch *tree.Branch
	// next is the next basket to consider for staging.
	next int
	// firstRead is the first entry of the first staged basket or -1
	// before anything is staged.
	firstRead int64
	// dependents index the branches this one is a counter for.
	dependents []int
	pending    []int
	ready      []Chunk
	direct     bool
	done       bool
	stagedEnd  int64
}

type Scheduler struct {
	branches []*branchState
	min, max int64
	budget   int64
	staged   int64
}

// New creates the read state of a pass over the columns of p.
func New(p *plan.Plan, budget int64) *Scheduler {
	if budget <= 0 {
		budget = DefaultBudget
	}
	s := &Scheduler{min: p.First, max: p.End, budget: budget}
	for _, col := range p.Columns {
		br := col.Branch
		s.branches = append(s.branches, &branchState{
			branch:    br,
			firstRead: -1,
			direct:    br.HasDirect(),
			stagedEnd: br.FirstEntry(),
		})
	}
	for k, col := range p.Columns {
		for _, c := range []int{col.Count, col.Count2} {
			if c >= 0 {
				s.branches[c].dependents = append(s.branches[c].dependents, k)
			}
		}
	}
	return s
}

// FirstRead is the first entry decoded for branch i, which precedes the
// window when the basket holding the window start begins earlier.
func (s *Scheduler) FirstRead(i int) int64 {
	b := s.branches[i]
	if b.direct {
		return b.branch.FirstEntry()
	}
	return b.firstRead
}

// Stage selects the next batch of baskets to fetch.  Branches left with
// nothing to decode are served first, one basket each, so no branch waits
// on the others.  The rest of the budget goes to the branches whose staged
// entries lag furthest behind, one basket per branch per round.  Branches
// are visited in reverse plan order so that dependents fix their first
// entry before their counters are staged.  Staging stops once the batch
// reaches the budget, which it thus exceeds by less than one basket.
func (s *Scheduler) Stage() []basket.Request {
	var reqs []basket.Request
	var total int64
	stage := func(b *branchState) bool {
		k, ok := s.stageOne(b)
		if ok {
			reqs = append(reqs, basket.Request{Branch: b.branch.ID, Index: k})
			total += int64(b.branch.Baskets[k].Bytes)
		}
		return ok
	}
	for n := len(s.branches) - 1; n >= 0 && total < s.budget; n-- {
		if b := s.branches[n]; s.starved(b) {
			stage(b)
		}
	}
	for total < s.budget {
		lag, ok := s.lag()
		if !ok {
			break
		}
		for n := len(s.branches) - 1; n >= 0 && total < s.budget; n-- {
			if b := s.branches[n]; s.active(b) && b.stagedEnd <= lag {
				stage(b)
			}
		}
	}
	s.staged += total
	return reqs
}

func (s *Scheduler) active(b *branchState) bool {
	return !b.direct && !b.done
}

// starved is true when branch b has no chunk delivered or on its way.
func (s *Scheduler) starved(b *branchState) bool {
	return s.active(b) && len(b.ready) == 0 && len(b.pending) == 0
}

// lag is the smallest staged end among the branches with baskets left.
func (s *Scheduler) lag() (int64, bool) {
	var end int64
	var ok bool
	for _, b := range s.branches {
		if s.active(b) && (!ok || b.stagedEnd < end) {
			end, ok = b.stagedEnd, true
		}
	}
	return end, ok
}

func (s *Scheduler) stageOne(b *branchState) (int, bool) {
	if b.direct || b.done {
		return 0, false
	}
	br := b.branch
	for b.next < len(br.Baskets) {
		k := b.next
		b.next++
		if br.Baskets[k].FirstEntry >= s.max {
			break
		}
		end := br.BasketEnd(k)
		if b.firstRead < 0 {
			needed := end > s.min
			for _, d := range b.dependents {
				if dep := s.branches[d]; dep.firstRead >= 0 && dep.firstRead < end {
					needed = true
				}
			}
			if !needed {
				continue
			}
			b.firstRead = br.Baskets[k].FirstEntry
		}
		b.pending = append(b.pending, k)
		b.stagedEnd = end
		return k, true
	}
	b.done = true
	return 0, false
}

// Deliver hands fetched blobs to their branches.  Blobs must answer
// requests returned by Stage.
func (s *Scheduler) Deliver(blobs []basket.Blob) error {
	for _, blob := range blobs {
		b := s.lookup(blob.Branch)
		if b == nil || len(b.pending) == 0 {
			return fmt.Errorf("unexpected basket %s", blob.Request)
		}
		k := -1
		for j, idx := range b.pending {
			if idx == blob.Index {
				k = j
				break
			}
		}
		if k < 0 {
			return fmt.Errorf("unexpected basket %s", blob.Request)
		}
		b.pending = append(b.pending[:k], b.pending[k+1:]...)
		b.ready = append(b.ready, Chunk{
			Branch:  blob.Branch,
			Index:   blob.Index,
			First:   b.branch.Baskets[blob.Index].FirstEntry,
			Entries: blob.Entries,
			Data:    blob.Data,
		})
		sortChunks(b.ready)
	}
	return nil
}

func sortChunks(chunks []Chunk) {
	for i := len(chunks) - 1; i > 0 && chunks[i].Index < chunks[i-1].Index; i-- {
		chunks[i], chunks[i-1] = chunks[i-1], chunks[i]
	}
}

func (s *Scheduler) lookup(id tree.BranchID) *branchState {
	for _, b := range s.branches {
		if b.branch.ID == id {
			return b
		}
	}
	return nil
}

// Acquire returns the next chunk of branch i in entry order.  Chunks are
// handed out once; a branch whose next basket is still pending reports
// NeedFetch.
func (s *Scheduler) Acquire(i int) (Chunk, State) {
	b := s.branches[i]
	if b.direct {
		if b.done {
			return Chunk{}, Exhausted
		}
		b.done = true
		br := b.branch
		return Chunk{
			Branch:  br.ID,
			Index:   DirectIndex,
			First:   br.FirstEntry(),
			Entries: int(br.DirectEntries),
			Data:    br.Direct,
		}, Ready
	}
	if len(b.ready) > 0 && (len(b.pending) == 0 || b.ready[0].Index < b.pending[0]) {
		c := b.ready[0]
		b.ready[0] = Chunk{}
		b.ready = b.ready[1:]
		return c, Ready
	}
	if len(b.pending) > 0 || !b.done && s.hasMore(b) {
		return Chunk{}, NeedFetch
	}
	return Chunk{}, Exhausted
}

// hasMore is true when branch b still has a basket starting in the
// window.
func (s *Scheduler) hasMore(b *branchState) bool {
	br := b.branch
	return b.next < len(br.Baskets) && br.Baskets[b.next].FirstEntry < s.max
}

// Release drops every chunk not yet handed out.
func (s *Scheduler) Release() {
	for _, b := range s.branches {
		b.ready = nil
		b.pending = nil
		b.done = true
	}
}

// Buffered is the number of delivered chunks not yet acquired.
func (s *Scheduler) Buffered() int {
	var n int
	for _, b := range s.branches {
		n += len(b.ready)
	}
	return n
}

// StagedBytes is the total size of all baskets staged so far.
func (s *Scheduler) StagedBytes() int64 {
	return s.staged
}

// Progress is the fraction of the window covered by staged baskets of
// the branch lagging furthest behind.
func (s *Scheduler) Progress() float64 {
	if s.max <= s.min {
		return 1
	}
	end, ok := s.lag()
	if !ok {
		end = s.max
	}
	p := float64(end-s.min) / float64(s.max-s.min)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
