package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/brimdata/arbor/api"
	"github.com/brimdata/arbor/hist"
	"github.com/brimdata/arbor/pkg/storage"
	"github.com/brimdata/arbor/plan"
	"github.com/brimdata/arbor/process"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Request struct {
	*http.Request
	Logger *zap.Logger
}

func newRequest(w http.ResponseWriter, r *http.Request, c *Core) (*ResponseWriter, *Request) {
	req := &Request{Request: r}
	req.Logger = c.logger.With(zap.String("request_id", req.ID()))
	res := &ResponseWriter{
		ResponseWriter: w,
		Logger:         req.Logger,
		request:        req,
	}
	return res, req
}

func (r *Request) ID() string {
	return api.RequestIDFromContext(r.Context())
}

func (r *Request) StringFromPath(w *ResponseWriter, arg string) (string, bool) {
	v := mux.Vars(r.Request)
	s, ok := v[arg]
	if !ok {
		w.Error(errInvalid("no arg %q in path", arg))
		return "", false
	}
	decoded, err := url.PathUnescape(s)
	if err != nil {
		w.Error(errInvalid("invalid path param %q: %w", arg, err))
		return "", false
	}
	return decoded, true
}

// Strings returns the values of a repeatable query parameter.  Each value
// may itself be a comma separated list.
func (r *Request) Strings(param string) []string {
	var out []string
	for _, v := range r.URL.Query()[param] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func (r *Request) IntFromQuery(w *ResponseWriter, param string, dflt int64) (int64, bool) {
	s := r.URL.Query().Get(param)
	if s == "" {
		return dflt, true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		w.Error(errInvalid("invalid query param %q: %w", param, err))
		return 0, false
	}
	return n, true
}

func (r *Request) FloatFromQuery(w *ResponseWriter, param string) (float64, bool) {
	s := r.URL.Query().Get(param)
	if s == "" {
		return 0, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		w.Error(errInvalid("invalid query param %q: %w", param, err))
		return 0, false
	}
	return f, true
}

// RangeFromQuery reads the bins, min and max of an axis, each parameter
// name carrying prefix.
func (r *Request) RangeFromQuery(w *ResponseWriter, prefix string) (hist.Range, bool) {
	bins, ok := r.IntFromQuery(w, prefix+"bins", 0)
	if !ok {
		return hist.Range{}, false
	}
	if bins < 0 {
		w.Error(errInvalid("invalid query param %q: negative bin count", prefix+"bins"))
		return hist.Range{}, false
	}
	min, ok := r.FloatFromQuery(w, prefix+"min")
	if !ok {
		return hist.Range{}, false
	}
	max, ok := r.FloatFromQuery(w, prefix+"max")
	if !ok {
		return hist.Range{}, false
	}
	return hist.Range{Bins: int(bins), Min: min, Max: max}, true
}

// Window reads the first and entries parameters of a pass.
func (r *Request) Window(w *ResponseWriter) (first, entries int64, ok bool) {
	if first, ok = r.IntFromQuery(w, "first", 0); !ok {
		return
	}
	if entries, ok = r.IntFromQuery(w, "entries", 0); !ok {
		return
	}
	if first < 0 || entries < 0 {
		w.Error(errInvalid("entry window must not be negative"))
		return 0, 0, false
	}
	return first, entries, true
}

type ResponseWriter struct {
	http.ResponseWriter
	Logger  *zap.Logger
	request *Request
	written int32
}

func (w *ResponseWriter) Respond(status int, body interface{}) bool {
	if !atomic.CompareAndSwapInt32(&w.written, 0, 1) {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		w.Logger.Warn("Error writing response", zap.Error(err))
		return false
	}
	return true
}

func (w *ResponseWriter) Error(err error) {
	if errors.Is(err, context.Canceled) && w.request.Context().Err() != nil {
		w.Logger.Info("Request context canceled")
		return
	}
	status, res := errorResponse(err)
	if status >= 500 {
		w.Logger.Warn("Error", zap.Int("status", status), zap.Error(err))
	}
	w.Respond(status, res)
}

func errorResponse(e error) (status int, ae *api.Error) {
	status = http.StatusInternalServerError
	ae = &api.Error{Type: "Error"}

	kind := kindOf(e)
	var pe *plan.Error
	if errors.As(e, &pe) {
		kind = Invalid
		ae.Info = map[string]string{"expr": pe.Expr}
	}
	switch {
	case errors.Is(e, process.ErrNoData) || errors.Is(e, storage.ErrNotFound):
		kind = NotFound
	case errors.Is(e, process.ErrMismatch):
		kind = Invalid
	}

	switch kind {
	case Invalid:
		status = http.StatusBadRequest
	case NotFound:
		status = http.StatusNotFound
	}
	ae.Kind = kind.String()
	ae.Message = e.Error()
	return
}
