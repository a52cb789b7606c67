// Package logger builds the zap loggers of arbor commands and the
// service from a Config.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	// Path is a file path or one of stderr, stdout and /dev/null.
	Path    string        `yaml:"path"`
	Mode    FileMode      `yaml:"mode"`
	Level   zapcore.Level `yaml:"level"`
	DevMode bool          `yaml:"devmode"`
}

// New returns a logger writing JSON lines to a file or console text to a
// terminal stream.
func New(conf Config) (*zap.Logger, error) {
	w, err := OpenFile(conf.Path, conf.Mode)
	if err != nil {
		return nil, err
	}
	var enc zapcore.Encoder
	if IsTerminal(conf.Path) {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	} else {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	}
	opts := []zap.Option{zap.ErrorOutput(w)}
	if conf.DevMode {
		opts = append(opts, zap.Development())
	}
	return zap.New(zapcore.NewCore(enc, w, zap.NewAtomicLevelAt(conf.Level)), opts...), nil
}
