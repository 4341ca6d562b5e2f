package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const FileName = "sitewatch.log"

// NewLogger writes JSON lines to a rotated file under logDir. When console
// is set, the same entries are also written to stderr.
func NewLogger(logDir, level string, console bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, FileName),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, lvl)
	if console {
		cc := zap.NewDevelopmentEncoderConfig()
		core = zapcore.NewTee(core,
			zapcore.NewCore(zapcore.NewConsoleEncoder(cc), zapcore.Lock(os.Stderr), lvl))
	}
	return zap.New(core), nil
}
