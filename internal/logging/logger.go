package logging

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "ESP32AQ_LOG_LEVEL"

// Encodings accepted by Options.Encoding
const (
	EncodingConsole = "console"
	EncodingJSON    = "json"
)

// current is swapped whole; components log from many goroutines
var current atomic.Pointer[zap.Logger]

// Options configures the global logger
type Options struct {
	// Level is a level name; empty falls back to ESP32AQ_LOG_LEVEL, and
	// logging stays silent when both are empty
	Level string
	// Encoding is EncodingConsole (default) or EncodingJSON
	Encoding string
}

// ParseLevel maps a level name to a zap level. Unknown names fall back to info.
func ParseLevel(level string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// Initialize sets up console logging at level, see Options.Level
func Initialize(level string) error {
	return Configure(Options{Level: level})
}

// Configure replaces the global logger according to opts. Logs go to stderr
// so command output on stdout stays parseable.
func Configure(opts Options) error {
	level := opts.Level
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		SetLogger(nil)
		return nil
	}

	// Unknown level names still enable logging, at info
	zapLevel, _ := ParseLevel(level)

	var encoder zapcore.EncoderConfig
	switch opts.Encoding {
	case "", EncodingConsole:
		opts.Encoding = EncodingConsole
		encoder = zap.NewDevelopmentEncoderConfig()
		encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case EncodingJSON:
		encoder = zap.NewProductionEncoderConfig()
	default:
		return fmt.Errorf("unknown log encoding %q (want console or json)", opts.Encoding)
	}
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder.EncodeCaller = zapcore.ShortCallerEncoder

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         opts.Encoding,
		EncoderConfig:    encoder,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	l, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetLogger(l)
	return nil
}

// SetLogger replaces the global logger. Passing nil restores silent mode.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

// GetLogger returns the global logger; silent until configured
func GetLogger() *zap.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Named returns a child logger for a component, e.g. "coordinator"
func Named(component string) *zap.Logger {
	return GetLogger().Named(component)
}

func Info(msg string, fields ...zap.Field)  { GetLogger().Info(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }

// LogRefresh logs the outcome of one coordinator refresh. Failures are
// logged at warn since the stale snapshot keeps being served.
func LogRefresh(host string, elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.String("host", host),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		Warn("Refresh failed", append(fields, zap.Error(err))...)
		return
	}
	Debug("Refresh completed", fields...)
}

// LogHTTPRequest logs a served API request
func LogHTTPRequest(remoteAddr, method, path string, statusCode int, elapsed time.Duration) {
	Info("HTTP request",
		zap.String("remote_addr", remoteAddr),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", statusCode),
		zap.Duration("elapsed", elapsed),
	)
}

// LogConnection logs a websocket subscriber lifecycle event
func LogConnection(remoteAddr string, event string) {
	Info("Connection event",
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// Sync flushes any buffered log entries
func Sync() {
	_ = GetLogger().Sync()
}
