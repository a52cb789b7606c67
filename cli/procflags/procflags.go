// Package procflags holds the flags that shape a read pass.
package procflags

import (
	"errors"
	"time"

	"github.com/brimdata/arbor/pkg/units"
	"github.com/brimdata/arbor/process"
	"github.com/brimdata/arbor/sched"
	"github.com/brimdata/arbor/selector"
	"github.com/spf13/pflag"
)

type Config struct {
	First    int64                  `yaml:"first"`
	Entries  int64                  `yaml:"entries"`
	Budget   units.Bytes            `yaml:"budget"`
	Mismatch process.MismatchPolicy `yaml:"mismatch"`
	Accum    int                    `yaml:"accum"`
	Monitor  time.Duration          `yaml:"monitor"`
}

type Flags struct {
	Config
}

// mismatchValue adapts a MismatchPolicy to pflag.
type mismatchValue struct {
	*process.MismatchPolicy
}

func (m mismatchValue) Set(s string) error {
	return m.UnmarshalText([]byte(s))
}

func (mismatchValue) Type() string {
	return "policy"
}

func (f *Flags) SetFlags(fs *pflag.FlagSet) {
	fs.Int64Var(&f.First, "first", 0, "first entry to process")
	fs.Int64Var(&f.Entries, "entries", 0, "maximum number of entries to process (0 for all)")
	f.Budget = units.Bytes(sched.DefaultBudget)
	fs.Var(&f.Budget, "batch", "stored bytes fetched per batch, as '1MiB', '500KB', etc.")
	fs.Var(mismatchValue{&f.Mismatch}, "mismatch", "handling of misaligned bulk baskets (values: degrade, fail)")
	fs.IntVar(&f.Accum, "accum", selector.DefaultAccum, "samples taken before histogram axes are fixed")
	fs.DurationVar(&f.Monitor, "monitor", 0, "interval of intermediate histogram updates (0 to disable)")
}

// Configure takes the settings of c that were not given as flags.
func (f *Flags) Configure(fs *pflag.FlagSet, c Config) {
	if !fs.Changed("first") && c.First != 0 {
		f.First = c.First
	}
	if !fs.Changed("entries") && c.Entries != 0 {
		f.Entries = c.Entries
	}
	if !fs.Changed("batch") && c.Budget != 0 {
		f.Budget = c.Budget
	}
	if !fs.Changed("mismatch") && c.Mismatch != process.Degrade {
		f.Mismatch = c.Mismatch
	}
	if !fs.Changed("accum") && c.Accum != 0 {
		f.Accum = c.Accum
	}
	if !fs.Changed("monitor") && c.Monitor != 0 {
		f.Monitor = c.Monitor
	}
}

func (f *Flags) Init() error {
	if f.Budget <= 0 {
		return errors.New("batch value must be greater than zero")
	}
	if f.First < 0 || f.Entries < 0 {
		return errors.New("first and entries must not be negative")
	}
	return nil
}

// Options returns the process options of the flags.
func (f *Flags) Options() process.Options {
	return process.Options{
		First:    f.First,
		Entries:  f.Entries,
		Budget:   int64(f.Budget),
		Mismatch: f.Mismatch,
	}
}
