// Package command implements the arbor command line tool.
package command

import (
	"context"
	"os"

	"github.com/brimdata/arbor/basket"
	"github.com/brimdata/arbor/catalog"
	"github.com/brimdata/arbor/cli"
	"github.com/brimdata/arbor/cli/cacheflags"
	"github.com/brimdata/arbor/cli/logflags"
	"github.com/brimdata/arbor/cli/outputflags"
	"github.com/brimdata/arbor/cli/procflags"
	"github.com/brimdata/arbor/pkg/display"
	"github.com/brimdata/arbor/pkg/storage"
	"github.com/brimdata/arbor/plan"
	"github.com/brimdata/arbor/process"
	"github.com/brimdata/arbor/selector"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Root holds the flags shared by every command.
type Root struct {
	Cmd      *cobra.Command
	cli      cli.Flags
	logflags logflags.Flags
	progress bool
	logger   *zap.Logger
	engine   storage.Engine
}

func New() *cobra.Command {
	r := &Root{engine: storage.NewLocalEngine()}
	r.Cmd = &cobra.Command{
		Use:   "arbor",
		Short: "query columnar trees",
		Long: `
arbor reads the branches of columnar trees described by YAML catalogs.
Only the baskets holding the requested columns are fetched, in batches
bounded by --batch bytes, from files, http servers or s3.
`,
		Version:      cli.Version(),
		SilenceUsage: true,
	}
	fs := r.Cmd.PersistentFlags()
	r.cli.SetFlags(fs)
	r.logflags.SetFlags(fs)
	fs.BoolVar(&r.progress, "progress", false, "show pass progress on a terminal")
	r.Cmd.AddCommand(
		newLs(r),
		newDraw(r),
		newDump(r),
		newStats(r),
		newServe(r),
	)
	return r.Cmd
}

// passFlags are the flags of commands that run read passes.
type passFlags struct {
	proc   procflags.Flags
	cache  cacheflags.Flags
	output outputflags.Flags
}

func (p *passFlags) SetFlags(fs *pflag.FlagSet, format string) {
	p.proc.SetFlags(fs)
	p.cache.SetFlags(fs)
	p.output.DefaultFormat = format
	p.output.SetFlags(fs)
}

func (p *passFlags) configure(fs *pflag.FlagSet, conf *cli.Config) {
	p.proc.Configure(fs, conf.Process)
	p.cache.Configure(fs, conf.Cache)
}

// init applies the config file, initializes the flag bundles and opens
// the logger.  configure, which may be nil, receives the config file.
func (r *Root) init(cmd *cobra.Command, configure func(*cli.Config), all ...cli.Initializer) (context.Context, func(), error) {
	fs := cmd.Flags()
	if r.cli.ConfigPath != "" {
		conf, err := cli.LoadConfig(r.cli.ConfigPath)
		if err != nil {
			return nil, nil, err
		}
		r.logflags.Configure(fs, conf.Log)
		if configure != nil {
			configure(conf)
		}
	}
	ctx, cleanup, err := r.cli.Init(all...)
	if err != nil {
		return nil, nil, err
	}
	logger, err := r.logflags.Open()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	r.logger = logger
	return ctx, func() {
		logger.Sync()
		cleanup()
	}, nil
}

func (r *Root) initPass(cmd *cobra.Command, p *passFlags) (context.Context, func(), error) {
	return r.init(cmd, func(conf *cli.Config) { p.configure(cmd.Flags(), conf) }, &p.proc, &p.output)
}

// source is an opened catalog and the fetcher of its baskets.
type source struct {
	catalog *catalog.Catalog
	fetcher basket.Fetcher
	close   func() error
}

func (r *Root) open(ctx context.Context, path string, cache *cacheflags.Flags) (*source, error) {
	u, err := storage.ParseURI(path)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(ctx, r.engine, u)
	if err != nil {
		return nil, err
	}
	logger := r.logger.With(zap.String("tree", cat.Tree.Name))
	fetcher, closer, err := cat.Open(ctx, r.engine, logger, nil)
	if err != nil {
		return nil, err
	}
	cached, err := cache.Wrap(fetcher, cat.Tree.Name, nil)
	if err != nil {
		return nil, multierr.Append(err, closer())
	}
	return &source{catalog: cat, fetcher: cached, close: closer}, nil
}

// run executes one pass, showing its progress on stderr when asked to and
// stderr is a terminal.
func (r *Root) run(ctx context.Context, src *source, sel process.Selector, exprs []plan.Expr, proc *procflags.Flags) error {
	tracked := selector.Track(sel)
	opts := proc.Options()
	opts.Registry = src.catalog
	opts.Logger = r.logger
	if r.progress && term.IsTerminal(int(os.Stderr.Fd())) {
		progress := display.NewProgress(src.catalog.Tree.Name)
		opts.Progress = func(fraction float64) {
			var entries int64
			if pass := tracked.Pass(); pass != nil {
				entries = pass.Entries()
			}
			progress.Update(fraction, entries)
		}
		d := display.New(progress, process.DefaultProgressInterval, os.Stderr)
		d.Start()
		defer func() {
			progress.Finish()
			d.Close()
		}()
	}
	return process.Run(ctx, src.catalog.Tree, src.fetcher, tracked, exprs, opts)
}
