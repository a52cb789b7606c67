package command

import (
	"io"

	"github.com/brimdata/arbor/plan"
	"github.com/brimdata/arbor/selector"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

type dumpCommand struct {
	root  *Root
	pass  passFlags
	limit int
}

func newDump(r *Root) *cobra.Command {
	c := &dumpCommand{root: r}
	cmd := &cobra.Command{
		Use:   "dump <catalog> <path>...",
		Short: "print decoded entries",
		Long: `
Print the decoded values of the given column paths, one row per entry,
starting at --first.
`,
		Args: cobra.MinimumNArgs(2),
		RunE: c.run,
	}
	c.pass.SetFlags(cmd.Flags(), "table")
	cmd.Flags().IntVarP(&c.limit, "limit", "n", 10, "number of entries to print")
	return cmd
}

func (c *dumpCommand) run(cmd *cobra.Command, args []string) error {
	ctx, cleanup, err := c.root.initPass(cmd, &c.pass)
	if err != nil {
		return err
	}
	defer cleanup()
	if c.limit > 0 && (c.pass.proc.Entries == 0 || c.pass.proc.Entries > int64(c.limit)) {
		c.pass.proc.Entries = int64(c.limit)
	}
	exprs := make([]plan.Expr, 0, len(args)-1)
	for _, path := range args[1:] {
		exprs = append(exprs, plan.Expr{Path: path})
	}
	src, err := c.root.open(ctx, args[0], &c.pass.cache)
	if err != nil {
		return err
	}
	dump := selector.NewDump(c.limit)
	err = c.root.run(ctx, src, dump, exprs, &c.pass.proc)
	err = multierr.Append(err, src.close())
	if len(dump.Records) == 0 {
		return err
	}
	writeErr := c.pass.output.Write(cmd.OutOrStdout(), func(w io.Writer) error {
		return writeDump(w, c.pass.output.Format, args[1:], dump)
	})
	return multierr.Append(err, writeErr)
}
