// Package logging builds the diagnostic zap logger. Operator output does not
// go through here; it is written by the console printer.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	// Path of the log file. Empty discards file output.
	Path       string
	MaxSizeMB  int
	MaxBackups int
	Debug      bool
}

// New returns a JSON logger writing to a size-rotated file.
func New(o Options) (*zap.Logger, error) {
	if o.Path == "" {
		return zap.NewNop(), nil
	}
	if err := os.MkdirAll(filepath.Dir(o.Path), 0o755); err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	level := zapcore.InfoLevel
	if o.Debug {
		level = zapcore.DebugLevel
	}
	sink := &lumberjack.Logger{
		Filename:   o.Path,
		MaxSize:    o.MaxSizeMB,
		MaxBackups: o.MaxBackups,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), zapcore.AddSync(sink), level)
	return zap.New(core, zap.AddCaller()), nil
}
