// Package observability owns the process-wide CLI logger.
package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging profiles.
const (
	ProfileConsole    = "console"
	ProfileStructured = "structured"
)

// CLILogger is the logger used by commands. It is a no-op until
// InitCLILogger runs so packages and tests can log unconditionally.
var CLILogger = zap.NewNop()

// InitCLILogger builds CLILogger for a console session. verbose lowers the
// level to debug.
func InitCLILogger(name string, verbose bool) {
	level := "info"
	if verbose {
		level = "debug"
	}
	CLILogger = NewLogger(name, level, ProfileConsole)
}

// NewLogger builds a logger writing to stderr. Profile "structured" emits
// JSON lines; anything else uses the human console encoder. Unknown levels
// fall back to info.
func NewLogger(name, level, profile string) *zap.Logger {
	lvl := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		lvl.SetLevel(zapcore.InfoLevel)
	}

	var enc zapcore.Encoder
	if strings.EqualFold(profile, ProfileStructured) {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cfg.EncodeCaller = nil
		cfg.CallerKey = ""
		enc = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl)
	return zap.New(core).Named(name)
}

// Sync flushes CLILogger. Errors from syncing a terminal are ignored.
func Sync() {
	_ = CLILogger.Sync()
}
