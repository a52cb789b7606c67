// Package cacheflags sizes the basket cache shared by the passes of a
// command or the service.
package cacheflags

import (
	"github.com/brimdata/arbor/basket"
	"github.com/brimdata/arbor/pkg/units"
	"github.com/pbnjay/memory"
	"github.com/spf13/pflag"
)

type Config struct {
	Size units.Bytes `yaml:"size"`
}

type Flags struct {
	Config
}

// DefaultSize is a sixteenth of system memory, capped at 1GiB.
func DefaultSize() units.Bytes {
	size := units.Bytes(memory.TotalMemory() / 16)
	if size <= 0 || size > 1<<30 {
		size = 1 << 30
	}
	return size
}

func (f *Flags) SetFlags(fs *pflag.FlagSet) {
	f.Size = DefaultSize()
	fs.Var(&f.Size, "cache", "decompressed basket bytes kept in memory, as '256MiB', etc. (0 to disable)")
}

func (f *Flags) Configure(fs *pflag.FlagSet, c Config) {
	if !fs.Changed("cache") && c.Size != 0 {
		f.Size = c.Size
	}
}

// Wrap puts a cache in front of fetcher unless caching is disabled.
func (f *Flags) Wrap(fetcher basket.Fetcher, treeName string, metrics *basket.Metrics) (basket.Fetcher, error) {
	if f.Size <= 0 {
		return fetcher, nil
	}
	return basket.NewCache(fetcher, treeName, int64(f.Size), metrics)
}
