package logflags

import (
	"github.com/brimdata/arbor/service/logger"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Flags struct {
	Config logger.Config
}

// levelValue adapts a zapcore.Level to pflag.
type levelValue struct {
	*zapcore.Level
}

func (levelValue) Type() string {
	return "level"
}

func (f *Flags) SetFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&f.Config.DevMode, "log.devmode", false, "development mode (if enabled dpanic level logs will cause a panic)")
	f.Config.Level = zap.InfoLevel
	fs.Var(levelValue{&f.Config.Level}, "log.level", "logging level")
	fs.StringVar(&f.Config.Path, "log.path", "stderr", "path to send logs (values: stderr, stdout, path in file system)")
	f.Config.Mode = logger.FileModeTruncate
	fs.Var(&f.Config.Mode, "log.filemode", "logger file write mode (values: append, truncate, rotate)")
}

// Configure takes the settings of c that were not given as flags.
func (f *Flags) Configure(fs *pflag.FlagSet, c logger.Config) {
	if !fs.Changed("log.devmode") {
		f.Config.DevMode = c.DevMode
	}
	if !fs.Changed("log.level") && c.Level != zapcore.InfoLevel {
		f.Config.Level = c.Level
	}
	if !fs.Changed("log.path") && c.Path != "" {
		f.Config.Path = c.Path
	}
	if !fs.Changed("log.filemode") && c.Mode != "" {
		f.Config.Mode = c.Mode
	}
}

func (f *Flags) Open() (*zap.Logger, error) {
	return logger.New(f.Config)
}
