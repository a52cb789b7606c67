package command

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/brimdata/arbor/cli"
	"github.com/brimdata/arbor/cli/cacheflags"
	"github.com/brimdata/arbor/cli/procflags"
	"github.com/brimdata/arbor/pkg/rlimit"
	"github.com/brimdata/arbor/pkg/storage"
	"github.com/brimdata/arbor/service"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type serveCommand struct {
	root       *Root
	conf       service.Config
	proc       procflags.Flags
	cache      cacheflags.Flags
	listenAddr string
}

func newServe(r *Root) *cobra.Command {
	c := &serveCommand{root: r}
	cmd := &cobra.Command{
		Use:   "serve <catalog>...",
		Short: "serve trees over HTTP",
		Long: `
The serve command answers draw, dump and stats requests for the trees of
the given catalogs and exposes pass and basket metrics at /metrics.
Baskets are cached across requests up to --cache bytes.
`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.run,
	}
	fs := cmd.Flags()
	c.proc.SetFlags(fs)
	c.cache.SetFlags(fs)
	fs.StringVarP(&c.listenAddr, "listen", "l", ":9870", "[addr]:port to listen on")
	fs.StringArrayVar(&c.conf.CORSAllowedOrigins, "cors.origin", nil, "CORS allowed origin (may be repeated)")
	return cmd
}

func (c *serveCommand) run(cmd *cobra.Command, args []string) error {
	configure := func(conf *cli.Config) {
		c.proc.Configure(cmd.Flags(), conf.Process)
		c.cache.Configure(cmd.Flags(), conf.Cache)
	}
	ctx, cleanup, err := c.root.init(cmd, configure, &c.proc)
	if err != nil {
		return err
	}
	defer cleanup()
	for _, path := range args {
		u, err := storage.ParseURI(path)
		if err != nil {
			return err
		}
		c.conf.Catalogs = append(c.conf.Catalogs, u)
	}
	c.conf.Engine = c.root.engine
	c.conf.CacheSize = int64(c.cache.Size)
	c.conf.Budget = int64(c.proc.Budget)
	c.conf.Mismatch = c.proc.Mismatch
	c.conf.Accum = c.proc.Accum
	c.conf.Logger = c.root.logger
	c.conf.Version = cli.Version()
	if n, err := rlimit.RaiseOpenFilesLimit(); err != nil {
		c.root.logger.Warn("Open files limit not raised", zap.Int("limit", n), zap.Error(err))
	} else {
		c.root.logger.Debug("Open files limit raised", zap.Int("limit", n))
	}
	core, err := service.NewCore(ctx, c.conf)
	if err != nil {
		return err
	}
	err = serve(ctx, c.listenAddr, core, c.root.logger.Named("httpd"))
	return multierr.Append(err, core.Shutdown())
}

func serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(logger),
	}
	logger.Info("Listening", zap.Stringer("addr", ln.Addr()))
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
