package storage

import (
	"context"
	"fmt"
)

type Scheme string

const (
	FileScheme  Scheme = "file"
	HTTPScheme  Scheme = "http"
	HTTPSScheme Scheme = "https"
	S3Scheme    Scheme = "s3"
)

func knownScheme(s Scheme) bool {
	switch s {
	case FileScheme, HTTPScheme, HTTPSScheme, S3Scheme:
		return true
	}
	return false
}

// Router dispatches to the engine enabled for a URI's scheme.
type Router struct {
	engines map[Scheme]Engine
}

var _ Engine = (*Router)(nil)

func NewRouter() *Router {
	return &Router{engines: make(map[Scheme]Engine)}
}

func (r *Router) Enable(scheme Scheme) {
	var engine Engine
	switch scheme {
	case FileScheme:
		engine = NewFileSystem()
	case HTTPScheme, HTTPSScheme:
		engine = NewHTTP()
	case S3Scheme:
		engine = NewS3()
	default:
		panic(fmt.Sprintf("unknown storage scheme %q", scheme))
	}
	r.engines[scheme] = engine
}

// Set installs engine for scheme, replacing any enabled one.
func (r *Router) Set(scheme Scheme, engine Engine) {
	r.engines[scheme] = engine
}

func (r *Router) lookup(u *URI) (Engine, error) {
	scheme := Scheme(u.Scheme)
	if scheme == "" {
		scheme = FileScheme
	}
	engine, ok := r.engines[scheme]
	if !ok {
		return nil, fmt.Errorf("%s: %w: scheme %q", u, ErrNotSupported, scheme)
	}
	return engine, nil
}

func (r *Router) Get(ctx context.Context, u *URI) (Reader, error) {
	engine, err := r.lookup(u)
	if err != nil {
		return nil, err
	}
	return engine.Get(ctx, u)
}

func (r *Router) Size(ctx context.Context, u *URI) (int64, error) {
	engine, err := r.lookup(u)
	if err != nil {
		return 0, err
	}
	return engine.Size(ctx, u)
}
