package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const fileName = "sitehealth.log"

type Options struct {
	Dir     string
	Level   string // debug | info | warn | error; unknown values mean info
	Console bool   // tee human-readable output to stderr
}

// NewLogger writes JSON lines to a rotating file under opts.Dir.
func NewLogger(opts Options) (*zap.Logger, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}
	level := parseLevel(opts.Level)

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, fileName),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, level)

	if opts.Console {
		ccfg := zap.NewDevelopmentEncoderConfig()
		console := zapcore.NewCore(zapcore.NewConsoleEncoder(ccfg), zapcore.Lock(os.Stderr), level)
		core = zapcore.NewTee(core, console)
	}
	return zap.New(core), nil
}

func parseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
