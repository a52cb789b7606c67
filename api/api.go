// Package api defines the JSON messages of the arbor service.
package api

import (
	"context"

	"github.com/brimdata/arbor/hist"
	"github.com/brimdata/arbor/selector"
	"github.com/brimdata/arbor/value"
)

const RequestIDHeader = "X-Request-ID"

type contextKey struct{}

// WithRequestID returns a context carrying a request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextKey{}).(string); ok {
		return v
	}
	return ""
}

type Error struct {
	Type    string      `json:"type"`
	Kind    string      `json:"kind"`
	Message string      `json:"error"`
	Info    interface{} `json:"info,omitempty"`
}

func (e Error) Error() string {
	return e.Message
}

type VersionResponse struct {
	Version string `json:"version"`
}

type TreeInfo struct {
	Name     string `json:"name"`
	Entries  int64  `json:"entries"`
	Branches int    `json:"branches"`
	Data     string `json:"data,omitempty"`
}

type BranchInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Parent   string `json:"parent,omitempty"`
	Count    string `json:"count,omitempty"`
	Entries  int64  `json:"entries"`
	Baskets  int    `json:"baskets"`
	Bytes    int64  `json:"bytes"`
	Class    string `json:"class,omitempty"`
	Streamed bool   `json:"streamed,omitempty"`
}

// PassInfo describes how a read pass ended.
type PassInfo struct {
	ID       string `json:"id"`
	Complete bool   `json:"complete"`
	Entries  int64  `json:"entries"`
	Error    string `json:"error,omitempty"`
}

type DrawResponse struct {
	Pass PassInfo   `json:"pass"`
	Hist *hist.Hist `json:"hist"`
}

type DumpResponse struct {
	Pass    PassInfo                 `json:"pass"`
	Entries []int64                  `json:"entries"`
	Records []map[string]value.Value `json:"records"`
}

type StatsResponse struct {
	Pass    PassInfo            `json:"pass"`
	Columns []*selector.Summary `json:"columns"`
}
