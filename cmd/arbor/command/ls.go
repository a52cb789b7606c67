package command

import (
	"io"

	"github.com/brimdata/arbor/api"
	"github.com/brimdata/arbor/catalog"
	"github.com/brimdata/arbor/cli/outputflags"
	"github.com/brimdata/arbor/pkg/storage"
	"github.com/brimdata/arbor/service"
	"github.com/spf13/cobra"
)

type lsCommand struct {
	root   *Root
	output outputflags.Flags
}

func newLs(r *Root) *cobra.Command {
	c := &lsCommand{root: r}
	cmd := &cobra.Command{
		Use:   "ls <catalog>",
		Short: "list the branches of a tree",
		Long: `
List every branch of the tree described by a catalog with its element
kind, counter branch, number of entries and baskets and stored size.
`,
		Args: cobra.ExactArgs(1),
		RunE: c.run,
	}
	c.output.DefaultFormat = outputflags.FormatTable
	c.output.SetFlags(cmd.Flags())
	return cmd
}

func (c *lsCommand) run(cmd *cobra.Command, args []string) error {
	ctx, cleanup, err := c.root.init(cmd, nil, &c.output)
	if err != nil {
		return err
	}
	defer cleanup()
	u, err := storage.ParseURI(args[0])
	if err != nil {
		return err
	}
	cat, err := catalog.Load(ctx, c.root.engine, u)
	if err != nil {
		return err
	}
	t := cat.Tree
	infos := make([]api.BranchInfo, 0, len(t.Branches()))
	for _, br := range t.Branches() {
		infos = append(infos, service.BranchInfo(t, br))
	}
	return c.output.Write(cmd.OutOrStdout(), func(w io.Writer) error {
		return writeBranches(w, c.output.Format, infos)
	})
}
