package command

import (
	"io"

	"github.com/brimdata/arbor/plan"
	"github.com/brimdata/arbor/selector"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

type statsCommand struct {
	root *Root
	pass passFlags
}

func newStats(r *Root) *cobra.Command {
	c := &statsCommand{root: r}
	cmd := &cobra.Command{
		Use:   "stats <catalog> <path>...",
		Short: "summarize columns",
		Long: `
Print the count, range, mean, standard deviation and an estimate of the
distinct leaves of each column path.  String leaves are counted apart.
`,
		Args: cobra.MinimumNArgs(2),
		RunE: c.run,
	}
	c.pass.SetFlags(cmd.Flags(), "table")
	return cmd
}

func (c *statsCommand) run(cmd *cobra.Command, args []string) error {
	ctx, cleanup, err := c.root.initPass(cmd, &c.pass)
	if err != nil {
		return err
	}
	defer cleanup()
	exprs := make([]plan.Expr, 0, len(args)-1)
	for _, path := range args[1:] {
		exprs = append(exprs, plan.Expr{Path: path})
	}
	src, err := c.root.open(ctx, args[0], &c.pass.cache)
	if err != nil {
		return err
	}
	stats := selector.NewStats()
	err = c.root.run(ctx, src, stats, exprs, &c.pass.proc)
	if err = multierr.Append(err, src.close()); err != nil {
		return err
	}
	return c.pass.output.Write(cmd.OutOrStdout(), func(w io.Writer) error {
		return writeStats(w, c.pass.output.Format, stats)
	})
}
