package service

import (
	"errors"
	"net/http"

	"github.com/brimdata/arbor/api"
	"github.com/brimdata/arbor/plan"
	"github.com/brimdata/arbor/process"
	"github.com/brimdata/arbor/selector"
	"github.com/brimdata/arbor/tree"
	"go.uber.org/zap"
)

const (
	DefaultDumpRecords = 100
	MaxDumpRecords     = 10000
)

func handleTreeList(c *Core, w *ResponseWriter, r *Request) {
	infos := make([]api.TreeInfo, 0, len(c.names))
	for _, name := range c.names {
		infos = append(infos, treeInfo(c.sources[name]))
	}
	w.Respond(http.StatusOK, infos)
}

func handleTreeGet(c *Core, w *ResponseWriter, r *Request) {
	src, ok := r.source(c, w)
	if !ok {
		return
	}
	w.Respond(http.StatusOK, treeInfo(src))
}

func treeInfo(src *source) api.TreeInfo {
	info := api.TreeInfo{
		Name:     src.catalog.Tree.Name,
		Entries:  src.catalog.Tree.Entries,
		Branches: len(src.catalog.Tree.Branches()),
	}
	if src.catalog.Data != nil {
		info.Data = src.catalog.Data.String()
	}
	return info
}

func handleBranchList(c *Core, w *ResponseWriter, r *Request) {
	src, ok := r.source(c, w)
	if !ok {
		return
	}
	t := src.catalog.Tree
	infos := make([]api.BranchInfo, 0, len(t.Branches()))
	for _, br := range t.Branches() {
		infos = append(infos, BranchInfo(t, br))
	}
	w.Respond(http.StatusOK, infos)
}

// BranchInfo describes br for listings.
func BranchInfo(t *tree.Tree, br *tree.Branch) api.BranchInfo {
	info := api.BranchInfo{
		Name:     br.Name,
		Entries:  br.Entries,
		Baskets:  len(br.Baskets),
		Class:    br.Class,
		Streamed: br.Streamed,
	}
	if br.Kind != tree.KindInvalid {
		info.Kind = br.Kind.String()
	}
	if p := t.Branch(br.Parent); p != nil {
		info.Parent = p.Name
	}
	if cnt := t.Branch(br.Count); cnt != nil {
		info.Count = cnt.Name
	}
	for _, b := range br.Baskets {
		info.Bytes += int64(b.Bytes)
	}
	if br.HasDirect() {
		info.Bytes += int64(len(br.Direct))
	}
	return info
}

func handleDraw(c *Core, w *ResponseWriter, r *Request) {
	src, ok := r.source(c, w)
	if !ok {
		return
	}
	q := r.URL.Query()
	x := q.Get("x")
	if x == "" {
		w.Error(errInvalid("missing query param \"x\""))
		return
	}
	draw := selector.NewDraw(x, q.Get("y"))
	draw.Weight = q.Get("weight")
	draw.Title = q.Get("title")
	if c.conf.Accum > 0 {
		draw.Accum = c.conf.Accum
	}
	if draw.Ranges[0], ok = r.RangeFromQuery(w, ""); !ok {
		return
	}
	if draw.Ranges[1], ok = r.RangeFromQuery(w, "y"); !ok {
		return
	}
	first, entries, ok := r.Window(w)
	if !ok {
		return
	}
	pass, err := c.run(r, src, draw, draw.Exprs(), first, entries)
	if !c.partial(w, r, err, draw.Hist() != nil) {
		return
	}
	w.Respond(http.StatusOK, api.DrawResponse{
		Pass: passInfo(pass, err),
		Hist: draw.Hist(),
	})
}

func handleDump(c *Core, w *ResponseWriter, r *Request) {
	src, ok := r.source(c, w)
	if !ok {
		return
	}
	exprs, ok := r.exprs(w)
	if !ok {
		return
	}
	n, ok := r.IntFromQuery(w, "n", DefaultDumpRecords)
	if !ok {
		return
	}
	if n <= 0 || n > MaxDumpRecords {
		w.Error(errInvalid("record count must be between 1 and %d", MaxDumpRecords))
		return
	}
	first, entries, ok := r.Window(w)
	if !ok {
		return
	}
	if entries == 0 || entries > n {
		entries = n
	}
	dump := selector.NewDump(int(n))
	pass, err := c.run(r, src, dump, exprs, first, entries)
	if !c.partial(w, r, err, len(dump.Records) > 0) {
		return
	}
	w.Respond(http.StatusOK, api.DumpResponse{
		Pass:    passInfo(pass, err),
		Entries: dump.Entries,
		Records: dump.Records,
	})
}

func handleStats(c *Core, w *ResponseWriter, r *Request) {
	src, ok := r.source(c, w)
	if !ok {
		return
	}
	exprs, ok := r.exprs(w)
	if !ok {
		return
	}
	first, entries, ok := r.Window(w)
	if !ok {
		return
	}
	stats := selector.NewStats()
	pass, err := c.run(r, src, stats, exprs, first, entries)
	if !c.partial(w, r, err, stats.Entries > 0) {
		return
	}
	w.Respond(http.StatusOK, api.StatsResponse{
		Pass:    passInfo(pass, err),
		Columns: stats.Summaries,
	})
}

func (r *Request) source(c *Core, w *ResponseWriter) (*source, bool) {
	name, ok := r.StringFromPath(w, "tree")
	if !ok {
		return nil, false
	}
	src, err := c.source(name)
	if err != nil {
		w.Error(err)
		return nil, false
	}
	return src, true
}

func (r *Request) exprs(w *ResponseWriter) ([]plan.Expr, bool) {
	cols := r.Strings("col")
	if len(cols) == 0 {
		w.Error(errInvalid("missing query param \"col\""))
		return nil, false
	}
	exprs := make([]plan.Expr, len(cols))
	for k, col := range cols {
		exprs[k] = plan.Expr{Path: col}
	}
	return exprs, true
}

// run executes a pass for the request.  The pass is nil when it never
// started.
func (c *Core) run(r *Request, src *source, sel process.Selector, exprs []plan.Expr, first, entries int64) (*process.Pass, error) {
	t := selector.Track(sel)
	opts := c.options(src, r.Logger, first, entries)
	err := process.Run(r.Context(), src.catalog.Tree, src.fetcher, t, exprs, opts)
	return t.Pass(), err
}

// partial decides whether a pass that ended with err still has a result
// worth sending.  Errors raised before any entry was read are reported as
// such.
func (c *Core) partial(w *ResponseWriter, r *Request, err error, hasData bool) bool {
	if err == nil {
		return true
	}
	var pe *plan.Error
	if !hasData || errors.As(err, &pe) || r.Context().Err() != nil {
		w.Error(err)
		return false
	}
	w.Logger.Warn("Pass ended early", zap.Error(err))
	return true
}

func passInfo(pass *process.Pass, err error) api.PassInfo {
	info := api.PassInfo{Complete: err == nil}
	if pass != nil {
		info.ID = pass.ID.String()
		info.Entries = pass.Entries()
	}
	if err != nil {
		info.Error = err.Error()
	}
	return info
}
