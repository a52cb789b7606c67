// Package outputflags selects how a command renders its result.
package outputflags

import (
	"fmt"
	"io"

	"github.com/brimdata/arbor/pkg/fs"
	"github.com/spf13/pflag"
)

const (
	FormatJSON  = "json"
	FormatASCII = "ascii"
	FormatTable = "table"
)

type Flags struct {
	Format        string
	Output        string
	Height        int
	DefaultFormat string
}

func (f *Flags) SetFlags(fs *pflag.FlagSet) {
	if f.DefaultFormat == "" {
		f.DefaultFormat = FormatTable
	}
	fs.StringVarP(&f.Format, "format", "f", f.DefaultFormat, "output format (values: json, ascii, table)")
	fs.StringVarP(&f.Output, "output", "o", "", "write output to file instead of stdout")
	fs.IntVar(&f.Height, "height", 15, "height of ascii plots")
}

func (f *Flags) Init() error {
	switch f.Format {
	case FormatJSON, FormatASCII, FormatTable:
		return nil
	}
	return fmt.Errorf("unknown output format %q", f.Format)
}

// Write runs fn on the selected output.  A file is only replaced when fn
// succeeds.
func (f *Flags) Write(stdout io.Writer, fn func(io.Writer) error) error {
	return fs.Output(f.Output, stdout, fn)
}
