// pkg/logging/logging.go - Leveled logging for cimisweep.
//
// Every component receives an explicit *Logger instead of reaching for a
// package-level singleton, so tests can observe output without touching
// global state. The file sink writes one line per entry:
//
//	2025-07-12 14:03:11 [INFO] SUCCESS: Uninstall Contoso Agent
//
// and is created, together with its directory, on the first write.

package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of the log message.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the string representation of the LogLevel.
func (ll LogLevel) String() string {
	switch ll {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// zapLevel maps a LogLevel onto the zap level used by the cores.
func (ll LogLevel) zapLevel() zapcore.Level {
	switch ll {
	case LevelError:
		return zapcore.ErrorLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel converts "ERROR", "WARN", "INFO" or "DEBUG" (any case) into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "", "INFO":
		return LevelInfo, nil
	case "DEBUG":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// VerbosityLevel maps the number of -v flags onto a console level.
// 0 => ERROR, 1 => WARN, 2 => INFO, 3+ => DEBUG
func VerbosityLevel(verbosity int) LogLevel {
	switch {
	case verbosity <= 0:
		return LevelError
	case verbosity == 1:
		return LevelWarn
	case verbosity == 2:
		return LevelInfo
	default:
		return LevelDebug
	}
}

// LoggerConfig holds configuration for a Logger.
type LoggerConfig struct {
	FilePath     string   // append-only log file; empty disables the file sink
	FileLevel    LogLevel // minimum level written to the file
	Console      bool     // mirror entries to stderr
	ConsoleLevel LogLevel // minimum level written to the console
}

// Logger is safe for concurrent use by batch jobs.
type Logger struct {
	zap  *zap.Logger
	file *lazyFile
}

// New builds a Logger from cfg.
func New(cfg LoggerConfig) *Logger {
	var cores []zapcore.Core
	var file *lazyFile

	if cfg.FilePath != "" {
		file = newLazyFile(cfg.FilePath)
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(lineEncoderConfig()),
			zapcore.Lock(file),
			cfg.FileLevel.zapLevel(),
		))
	}
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(lineEncoderConfig()),
			zapcore.Lock(os.Stderr),
			cfg.ConsoleLevel.zapLevel(),
		))
	}

	return &Logger{zap: zap.New(zapcore.NewTee(cores...)), file: file}
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// lineEncoderConfig produces "{timestamp} [{LEVEL}] {message} {fields}".
func lineEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeLevel:      bracketLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

func bracketLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + l.CapitalString() + "]")
}

// fields converts alternating key/value pairs into zap fields.
// A trailing key without a value is kept under "_extra".
func fields(keyValues []interface{}) []zap.Field {
	if len(keyValues) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(keyValues)/2+1)
	for i := 0; i < len(keyValues); i += 2 {
		if i+1 >= len(keyValues) {
			out = append(out, zap.Any("_extra", keyValues[i]))
			break
		}
		key := fmt.Sprintf("%v", keyValues[i])
		if err, ok := keyValues[i+1].(error); ok {
			out = append(out, zap.String(key, err.Error()))
			continue
		}
		out = append(out, zap.Any(key, keyValues[i+1]))
	}
	return out
}

// Info logs informational messages.
func (l *Logger) Info(message string, keyValues ...interface{}) {
	l.zap.Info(message, fields(keyValues)...)
}

// Warn logs warning messages.
func (l *Logger) Warn(message string, keyValues ...interface{}) {
	l.zap.Warn(message, fields(keyValues)...)
}

// Error logs error messages.
func (l *Logger) Error(message string, keyValues ...interface{}) {
	l.zap.Error(message, fields(keyValues)...)
}

// Debug logs debug messages.
func (l *Logger) Debug(message string, keyValues ...interface{}) {
	l.zap.Debug(message, fields(keyValues)...)
}

// Log writes at an explicit level.
func (l *Logger) Log(level LogLevel, message string, keyValues ...interface{}) {
	l.zap.Log(level.zapLevel(), message, fields(keyValues)...)
}

// With returns a child logger that stamps every entry with keyValues.
func (l *Logger) With(keyValues ...interface{}) *Logger {
	return &Logger{zap: l.zap.With(fields(keyValues)...), file: l.file}
}

// Path returns the file sink location, or "" when logging to console only.
func (l *Logger) Path() string {
	if l.file == nil {
		return ""
	}
	return l.file.path
}

// Close flushes and closes the file sink.
func (l *Logger) Close() error {
	_ = l.zap.Sync()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
