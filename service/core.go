package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/brimdata/arbor/api"
	"github.com/brimdata/arbor/basket"
	"github.com/brimdata/arbor/catalog"
	"github.com/brimdata/arbor/pkg/storage"
	"github.com/brimdata/arbor/process"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Config struct {
	// Catalogs locate the tree descriptors to serve.  Tree names must be
	// unique.
	Catalogs []*storage.URI
	Engine   storage.Engine
	// CacheSize is the number of decompressed basket bytes kept per tree.
	// Zero disables the cache.
	CacheSize          int64
	Budget             int64
	Mismatch           process.MismatchPolicy
	Accum              int
	CORSAllowedOrigins []string
	Logger             *zap.Logger
	Version            string
}

type source struct {
	catalog *catalog.Catalog
	uri     *storage.URI
	fetcher basket.Fetcher
	close   func() error
}

type Core struct {
	conf           Config
	engine         storage.Engine
	logger         *zap.Logger
	registry       *prometheus.Registry
	basketMetrics  *basket.Metrics
	processMetrics *process.Metrics
	sources        map[string]*source
	names          []string
	handler        http.Handler
}

func NewCore(ctx context.Context, conf Config) (*Core, error) {
	logger := conf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := conf.Engine
	if engine == nil {
		engine = storage.NewLocalEngine()
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	c := &Core{
		conf:           conf,
		engine:         engine,
		logger:         logger.Named("service"),
		registry:       registry,
		basketMetrics:  basket.NewMetrics(registry),
		processMetrics: process.NewMetrics(registry),
		sources:        make(map[string]*source),
	}
	for _, u := range conf.Catalogs {
		if err := c.open(ctx, u); err != nil {
			return nil, multierr.Append(err, c.Shutdown())
		}
	}
	sort.Strings(c.names)

	router := mux.NewRouter()
	router.Use(requestIDMiddleware())
	router.Use(accessLogMiddleware(logger))
	router.Use(panicCatchMiddleware(logger))
	c.handle(router, "/trees", handleTreeList)
	c.handle(router, "/trees/{tree}", handleTreeGet)
	c.handle(router, "/trees/{tree}/branches", handleBranchList)
	c.handle(router, "/trees/{tree}/draw", handleDraw)
	c.handle(router, "/trees/{tree}/dump", handleDump)
	c.handle(router, "/trees/{tree}/stats", handleStats)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods("GET")
	router.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		res, _ := newRequest(w, r, c)
		res.Respond(http.StatusOK, api.VersionResponse{Version: c.conf.Version})
	}).Methods("GET")
	c.handler = cors.New(cors.Options{
		AllowedOrigins: conf.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		ExposedHeaders: []string{api.RequestIDHeader},
	}).Handler(router)
	c.logger.Info("Started", zap.Strings("trees", c.names))
	return c, nil
}

type handlerFunc func(c *Core, w *ResponseWriter, r *Request)

func (c *Core) handle(router *mux.Router, path string, f handlerFunc) {
	router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		res, req := newRequest(w, r, c)
		f(c, res, req)
	}).Methods("GET")
}

func (c *Core) open(ctx context.Context, u *storage.URI) error {
	cat, err := catalog.Load(ctx, c.engine, u)
	if err != nil {
		return err
	}
	name := cat.Tree.Name
	if _, ok := c.sources[name]; ok {
		return fmt.Errorf("%s: tree %q is already served", u, name)
	}
	logger := c.logger.With(zap.String("tree", name))
	fetcher, closer, err := cat.Open(ctx, c.engine, logger, c.basketMetrics)
	if err != nil {
		return err
	}
	if c.conf.CacheSize > 0 {
		cache, err := basket.NewCache(fetcher, name, c.conf.CacheSize, c.basketMetrics)
		if err != nil {
			return multierr.Append(err, closer())
		}
		fetcher = cache
	}
	c.sources[name] = &source{catalog: cat, uri: u, fetcher: fetcher, close: closer}
	c.names = append(c.names, name)
	logger.Debug("Tree opened",
		zap.Stringer("catalog", u),
		zap.Int("branches", len(cat.Tree.Branches())))
	return nil
}

func (c *Core) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.handler.ServeHTTP(w, r)
}

// Trees returns the names of the served trees in order.
func (c *Core) Trees() []string {
	return c.names
}

func (c *Core) source(name string) (*source, error) {
	src, ok := c.sources[name]
	if !ok {
		return nil, errNotFound("tree %q not found", name)
	}
	return src, nil
}

// options returns the pass options of a request.  Passes run on the
// request goroutine and share only the fetchers and metrics.
func (c *Core) options(src *source, logger *zap.Logger, first, entries int64) process.Options {
	return process.Options{
		First:    first,
		Entries:  entries,
		Budget:   c.conf.Budget,
		Mismatch: c.conf.Mismatch,
		Registry: src.catalog,
		Logger:   logger,
		Metrics:  c.processMetrics,
	}
}

// Shutdown closes the storage of every tree.
func (c *Core) Shutdown() error {
	var err error
	for _, name := range c.names {
		err = multierr.Append(err, c.sources[name].close())
	}
	return err
}
