package command

import (
	"fmt"
	"io"

	"github.com/brimdata/arbor/hist"
	"github.com/brimdata/arbor/selector"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type drawCommand struct {
	root   *Root
	pass   passFlags
	draw   *selector.Draw
	ranges [2]hist.Range
}

func newDraw(r *Root) *cobra.Command {
	c := &drawCommand{root: r, draw: selector.NewDraw("", "")}
	cmd := &cobra.Command{
		Use:   "draw <catalog> <x> [<y>]",
		Short: "histogram one or two columns",
		Long: `
Fill a one or two dimensional histogram with the leaves of the x (and y)
column paths.  Unless --bins, --min and --max are given, the first
--accum leaves are sampled to choose each axis: string leaves give one
bin per distinct label, integer leaves one bin per value when the range
is small.  Paths select array elements with [n], [$first$], [$last$],
[$size$] or [] and object members with .name.
`,
		Args: cobra.RangeArgs(2, 3),
		RunE: c.run,
	}
	fs := cmd.Flags()
	c.pass.SetFlags(fs, "ascii")
	fs.StringVar(&c.draw.Weight, "weight", "", "column path weighting each entry")
	fs.StringVar(&c.draw.Title, "title", "", "histogram title")
	fs.IntVar(&c.ranges[0].Bins, "bins", 0, "number of x bins (0 to derive)")
	fs.Float64Var(&c.ranges[0].Min, "min", 0, "x axis minimum")
	fs.Float64Var(&c.ranges[0].Max, "max", 0, "x axis maximum")
	fs.IntVar(&c.ranges[1].Bins, "ybins", 0, "number of y bins (0 to derive)")
	fs.Float64Var(&c.ranges[1].Min, "ymin", 0, "y axis minimum")
	fs.Float64Var(&c.ranges[1].Max, "ymax", 0, "y axis maximum")
	return cmd
}

func (c *drawCommand) run(cmd *cobra.Command, args []string) error {
	ctx, cleanup, err := c.root.initPass(cmd, &c.pass)
	if err != nil {
		return err
	}
	defer cleanup()
	d := c.draw
	d.X = args[1]
	if len(args) == 3 {
		d.Y = args[2]
	}
	d.Ranges = c.ranges
	d.Accum = c.pass.proc.Accum
	if c.pass.proc.Monitor > 0 {
		d.Monitor = c.pass.proc.Monitor
		logger := c.root.logger.Named("monitor")
		d.OnMonitor = func(h *hist.Hist) {
			logger.Info("Histogram updated", zap.Int64("entries", h.Entries), zap.Float64("sum", h.Sum()))
		}
	}
	src, err := c.root.open(ctx, args[0], &c.pass.cache)
	if err != nil {
		return err
	}
	err = c.root.run(ctx, src, d, d.Exprs(), &c.pass.proc)
	err = multierr.Append(err, src.close())
	h := d.Hist()
	if h == nil {
		if err == nil {
			err = fmt.Errorf("%s: nothing drawn", args[1])
		}
		return err
	}
	// A failed pass still shows the entries binned before the failure.
	writeErr := c.pass.output.Write(cmd.OutOrStdout(), func(w io.Writer) error {
		return writeHist(w, c.pass.output.Format, c.pass.output.Height, h)
	})
	return multierr.Append(err, writeErr)
}
