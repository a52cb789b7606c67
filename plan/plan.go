// Package plan resolves column expressions against a tree into a decode
// plan: the branches to read in an order where every counter precedes the
// branches it sizes, one decoder per branch, and the entry window common
// to all of them.
package plan

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/agnivade/levenshtein"
	"github.com/brimdata/arbor/member"
	"github.com/brimdata/arbor/tree"
	"github.com/brimdata/arbor/value"
	"golang.org/x/exp/slices"
)

var (
	ErrNoBranch        = errors.New("branch not found")
	ErrNoCounter       = errors.New("no counter branch for variable array")
	ErrNoCommonEntries = errors.New("branches have no common entries")
	ErrSyntax          = errors.New("bad expression syntax")
	ErrDuplicate       = errors.New("duplicate expression name")
)

// Error is a resolution failure of one expression.
type Error struct {
	Expr string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%q: %s", e.Expr, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Expr requests a column.  Name keys the decoded value in each record and
// defaults to Path.
type Expr struct {
	Name    string
	Path    string
	Project value.Projection
}

// Column is one branch decoded per entry.  Count and Count2 index the
// columns holding its counters or are -1.
type Column struct {
	Name   string
	Branch *tree.Branch
	Decode member.Entry
	Bulk   member.Floats
	Count  int
	Count2 int
}

// Output is one requested expression: a view of a decoded column.
type Output struct {
	Name    string
	Path    string
	Column  int
	Steps   []value.Step
	Project value.Projection
}

// Iterator returns a new iterator flattening this output's values.
func (o *Output) Iterator() *value.Iterator {
	return value.NewIterator(o.Steps, o.Project)
}

type Options struct {
	// First is the first entry to read.
	First int64
	// Entries limits the number of entries read when positive.
	Entries int64
}

type Plan struct {
	Tree    *tree.Tree
	Columns []*Column
	Outputs []*Output
	// Bulk is set when every column can be decoded a basket at a time.
	Bulk bool
	// First and End bound the entries read, End excluded.
	First int64
	End   int64
}

func (p *Plan) Entries() int64 {
	return p.End - p.First
}

// Output returns the output with the given name or nil.
func (p *Plan) Output(name string) *Output {
	if k := slices.IndexFunc(p.Outputs, func(o *Output) bool { return o.Name == name }); k >= 0 {
		return p.Outputs[k]
	}
	return nil
}

type resolver struct {
	tree     *tree.Tree
	registry member.Registry
	plan     *Plan
	index    map[tree.BranchID]int
	active   map[tree.BranchID]bool
	counters int
}

// Resolve builds the plan of exprs.  Any unresolvable expression fails
// the whole plan.
func Resolve(t *tree.Tree, reg member.Registry, exprs []Expr, opts Options) (*Plan, error) {
	if len(exprs) == 0 {
		return nil, errors.New("no expressions to read")
	}
	r := &resolver{
		tree:     t,
		registry: reg,
		plan:     &Plan{Tree: t},
		index:    make(map[tree.BranchID]int),
		active:   make(map[tree.BranchID]bool),
	}
	names := make(map[string]bool)
	for _, e := range exprs {
		out, err := r.expr(e)
		if err != nil {
			return nil, &Error{Expr: e.Path, Err: err}
		}
		if names[out.Name] {
			return nil, &Error{Expr: e.Path, Err: fmt.Errorf("%w: %s", ErrDuplicate, out.Name)}
		}
		names[out.Name] = true
		r.plan.Outputs = append(r.plan.Outputs, out)
	}
	if err := r.window(opts); err != nil {
		return nil, err
	}
	r.plan.Bulk = r.bulk()
	return r.plan, nil
}

// nearest returns the branch name closest to path by edit distance, or ""
// if none is within a third of the path's length.
func nearest(t *tree.Tree, path string) string {
	var best string
	limit := len(path)/3 + 1
	for _, b := range t.Branches() {
		if d := levenshtein.ComputeDistance(path, b.Name); d < limit {
			best, limit = b.Name, d
		}
	}
	return best
}

func (r *resolver) expr(e Expr) (*Output, error) {
	branchPath, sel := splitPath(e.Path)
	if branchPath == "" {
		return nil, fmt.Errorf("%w: %q", ErrNoBranch, e.Path)
	}
	m, ok := r.tree.Find(branchPath)
	if !ok {
		if near := nearest(r.tree, branchPath); near != "" {
			return nil, fmt.Errorf("%w: %q (did you mean %q?)", ErrNoBranch, branchPath, near)
		}
		return nil, fmt.Errorf("%w: %q", ErrNoBranch, branchPath)
	}
	steps, err := parseSteps(m.Rest + sel)
	if err != nil {
		return nil, err
	}
	name := e.Name
	if name == "" {
		name = e.Path
	}
	col, err := r.add(m.Branch, name)
	if err != nil {
		return nil, err
	}
	return &Output{
		Name:    name,
		Path:    e.Path,
		Column:  col,
		Steps:   steps,
		Project: e.Project,
	}, nil
}

// add appends br to the plan after its counters and returns its column
// index.  A branch already in the plan is not added again.
func (r *resolver) add(br *tree.Branch, name string) (int, error) {
	if k, ok := r.index[br.ID]; ok {
		return k, nil
	}
	if r.active[br.ID] {
		return 0, fmt.Errorf("%w: counter loop at %s", ErrNoCounter, br.Name)
	}
	r.active[br.ID] = true
	defer delete(r.active, br.ID)
	col := &Column{Name: name, Branch: br, Count: -1, Count2: -1}
	if (br.Variable || br.Streamed) && br.Count == tree.NoBranch {
		return 0, fmt.Errorf("%w: %s", ErrNoCounter, br.Name)
	}
	var count2 *tree.Branch
	if br.Count != tree.NoBranch {
		cnt := r.tree.Branch(br.Count)
		k, err := r.counter(cnt)
		if err != nil {
			return 0, err
		}
		col.Count = k
		if br.Count2 != tree.NoBranch {
			count2 = r.tree.Branch(br.Count2)
		} else if br.Streamed {
			if count2, err = r.probeCount(br, cnt); err != nil {
				return 0, err
			}
		}
	}
	if count2 != nil {
		k, err := r.counter(count2)
		if err != nil {
			return 0, err
		}
		col.Count2 = k
	}
	if err := r.decoder(col, count2 != nil && br.Count2 == tree.NoBranch); err != nil {
		return 0, err
	}
	r.index[br.ID] = len(r.plan.Columns)
	r.plan.Columns = append(r.plan.Columns, col)
	return len(r.plan.Columns) - 1, nil
}

// counter adds a counter branch under a synthesized name unless the branch
// is already planned.
func (r *resolver) counter(br *tree.Branch) (int, error) {
	if k, ok := r.index[br.ID]; ok {
		return k, nil
	}
	name := "$counter" + strconv.Itoa(r.counters)
	r.counters++
	return r.add(br, name)
}

// probeCount finds the second counter of a streamed branch whose metadata
// does not name one.  The class member the branch stores names its count
// member, and the counter branch carries it as a child called
// "<counter>.<count member>".  A member without count needs no second
// counter.
func (r *resolver) probeCount(br, cnt *tree.Branch) (*tree.Branch, error) {
	if r.registry == nil || br.Class == "" || br.Member == "" {
		return nil, nil
	}
	layout, err := r.registry.Layout(br.Class, br.Version, br.Checksum)
	if err != nil {
		return nil, err
	}
	m := layout.Member(br.Member)
	if m == nil || m.CountName == "" {
		return nil, nil
	}
	want := cnt.Name + "." + m.CountName
	for _, child := range r.tree.Children(cnt) {
		if child.Name == want {
			return child, nil
		}
	}
	return nil, fmt.Errorf("%w: %s needs %s", ErrNoCounter, br.Name, want)
}

func (r *resolver) decoder(col *Column, probed bool) error {
	br := col.Branch
	var err error
	if probed {
		var elem member.Func
		elem, err = member.Element(br, r.registry)
		if err == nil {
			col.Decode = member.Counted2(elem)
		}
	} else {
		col.Decode, err = member.ForBranch(br, r.registry)
	}
	if err != nil {
		return err
	}
	if bulkable(br) {
		col.Bulk, err = member.FloatsFunc(br.Kind, br.Float)
	}
	return err
}

func bulkable(br *tree.Branch) bool {
	return br.Kind.IsNumeric() && br.ArrayLen == 0 && br.Count == tree.NoBranch &&
		!br.Streamed && !br.Variable && len(br.Leaves) <= 1
}

// window computes the entries present in every planned branch, clipped by
// the requested range.
func (r *resolver) window(opts Options) error {
	p := r.plan
	for k, col := range p.Columns {
		first := col.Branch.FirstEntry()
		end := first + col.Branch.Entries
		if k == 0 || first > p.First {
			p.First = first
		}
		if k == 0 || end < p.End {
			p.End = end
		}
	}
	if opts.First > p.First {
		p.First = opts.First
	}
	if opts.Entries > 0 && p.First+opts.Entries < p.End {
		p.End = p.First + opts.Entries
	}
	if p.End <= p.First {
		return fmt.Errorf("%w: [%d,%d)", ErrNoCommonEntries, p.First, p.End)
	}
	return nil
}

// bulk decides whether whole baskets can be decoded at once: every column
// is a plain numeric scalar read without selection, and all branches hold
// the same entries split at the same basket boundaries.
func (r *resolver) bulk() bool {
	p := r.plan
	for _, out := range p.Outputs {
		if len(out.Steps) != 0 || out.Project != nil {
			return false
		}
	}
	first := p.Columns[0].Branch
	for _, col := range p.Columns {
		br := col.Branch
		if col.Bulk == nil || col.Count >= 0 {
			return false
		}
		if br.Entries != first.Entries || br.HasDirect() != first.HasDirect() {
			return false
		}
		if !slices.EqualFunc(br.Baskets, first.Baskets, func(a, b tree.Basket) bool {
			return a.FirstEntry == b.FirstEntry && a.Entries == b.Entries
		}) {
			return false
		}
	}
	return true
}
