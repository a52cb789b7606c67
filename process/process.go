// Package process runs read passes over a tree.  A pass resolves a set of
// column expressions, fetches the baskets it needs in budget-bounded
// batches and decodes entries in order, handing each one (or whole aligned
// baskets) to a Selector.
package process

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brimdata/arbor/basket"
	"github.com/brimdata/arbor/member"
	"github.com/brimdata/arbor/plan"
	"github.com/brimdata/arbor/tree"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

var (
	ErrNoData   = errors.New("no entries processed")
	ErrAborted  = errors.New("read pass aborted")
	ErrMismatch = errors.New("bulk chunks are not aligned")
)

// Selector consumes the entries of a pass.  Begin is called before any
// fetch and Terminate exactly once after Begin, with ok false when the
// pass failed or was aborted.
type Selector interface {
	Begin(*Pass) error
	Process(entry int64, rec *Record)
	Terminate(ok bool)
}

// BulkSelector is a Selector that can take whole baskets of plain numeric
// columns at once.
type BulkSelector interface {
	Selector
	ProcessBulk(*Batch)
}

// MismatchPolicy decides what a pass does when the baskets of a bulk plan
// turn out not to be aligned.
type MismatchPolicy int

const (
	// Degrade decodes entry by entry up to the next common basket
	// boundary.
	Degrade MismatchPolicy = iota
	// Fail ends the pass with ErrMismatch.
	Fail
)

func (m MismatchPolicy) String() string {
	if m == Fail {
		return "fail"
	}
	return "degrade"
}

func ParseMismatchPolicy(s string) (MismatchPolicy, error) {
	switch strings.ToLower(s) {
	case "", "degrade":
		return Degrade, nil
	case "fail":
		return Fail, nil
	}
	return Degrade, fmt.Errorf("unknown mismatch policy %q", s)
}

func (m MismatchPolicy) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MismatchPolicy) UnmarshalText(b []byte) error {
	var err error
	*m, err = ParseMismatchPolicy(string(b))
	return err
}

const DefaultProgressInterval = 500 * time.Millisecond

type Options struct {
	// First is the first entry to process.
	First int64
	// Entries limits the number of entries processed when positive.
	Entries int64
	// Budget is the number of stored bytes staged before a fetch.
	Budget   int64
	Mismatch MismatchPolicy
	// Registry provides class layouts for object and streamed branches.
	Registry member.Registry
	Logger   *zap.Logger
	Metrics  *Metrics
	// Progress is called with the staged fraction of the window, at
	// most once per ProgressInterval and always at the start and end.
	Progress         func(float64)
	ProgressInterval time.Duration
}

// Pass is the handle of one running read pass.
type Pass struct {
	ID      ksuid.KSUID
	Plan    *plan.Plan
	Tree    *tree.Tree
	logger  *zap.Logger
	entries atomic.Int64
	aborted atomic.Bool
	once    sync.Once
	abort   chan struct{}
}

func newPass(t *tree.Tree, p *plan.Plan, logger *zap.Logger) *Pass {
	id := ksuid.New()
	return &Pass{
		ID:     id,
		Plan:   p,
		Tree:   t,
		logger: logger.With(zap.Stringer("pass", id), zap.String("tree", t.Name)),
		abort:  make(chan struct{}),
	}
}

// Abort asks the pass to stop.  It may be called from any goroutine and
// takes effect before the next decode step or when a pending fetch is
// awaited.
func (p *Pass) Abort() {
	p.once.Do(func() {
		p.aborted.Store(true)
		close(p.abort)
	})
}

func (p *Pass) Aborted() bool {
	return p.aborted.Load()
}

// Entries is the number of entries handed to the selector so far.
func (p *Pass) Entries() int64 {
	return p.entries.Load()
}

func (p *Pass) Logger() *zap.Logger {
	return p.logger
}

// Run reads the entries of exprs from t.  Expressions that cannot be
// resolved fail the call before the selector is started or anything is
// fetched.
func Run(ctx context.Context, t *tree.Tree, fetcher basket.Fetcher, sel Selector, exprs []plan.Expr, opts Options) error {
	p, err := plan.Resolve(t, opts.Registry, exprs, plan.Options{First: opts.First, Entries: opts.Entries})
	if err != nil {
		return err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pass := newPass(t, p, logger.Named("process"))
	return newDriver(pass, fetcher, sel, opts).run(ctx)
}
