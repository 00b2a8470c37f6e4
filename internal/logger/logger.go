// Package logger owns the process-wide zap logger. Engine packages take a component logger from
// Named when they are constructed; the host installs the real sinks with Init before that.
package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the installed logger. It discards everything until Init runs, so packages and tests
// can log without setup.
var Log = zap.NewNop()

// FileConfig describes a rotating log file. Zero limits take the rotation defaults.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func (c FileConfig) writer() *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   c.Path,
		MaxSize:    orDefault(c.MaxSizeMB, 50),
		MaxBackups: orDefault(c.MaxBackups, 3),
		MaxAge:     orDefault(c.MaxAgeDays, 7),
		Compress:   c.Compress,
		LocalTime:  true,
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type sinks struct {
	console io.Writer
	file    *FileConfig
}

// Option selects where Init sends log entries.
type Option func(*sinks)

// WithConsole replaces the colored console sink, stdout by default. A nil writer disables it.
//
// Parameters:
//   - w: the console writer, or nil
//
// Returns:
//   - Option: a function that sets the console sink
func WithConsole(w io.Writer) Option {
	return func(s *sinks) {
		s.console = w
	}
}

// WithFile adds a rotating file sink. An empty path adds nothing.
//
// Parameters:
//   - cfg: the file and rotation settings
//
// Returns:
//   - Option: a function that adds the file sink
func WithFile(cfg FileConfig) Option {
	return func(s *sinks) {
		if cfg.Path != "" {
			s.file = &cfg
		}
	}
}

// Init installs a logger at level writing to the selected sinks. Component loggers obtained
// from Named afterwards write through it.
//
// Parameters:
//   - level: a zap level name such as "debug", "info", "warn" or "error"; empty means info
//   - options: sink options, WithConsole and WithFile
//
// Returns:
//   - error: an error if the level name is unknown
func Init(level string, options ...Option) error {
	lvl := zapcore.InfoLevel
	if level != "" {
		var err error
		if lvl, err = zapcore.ParseLevel(level); err != nil {
			return fmt.Errorf("logger: %w", err)
		}
	}

	s := sinks{console: os.Stdout}
	for _, option := range options {
		option(&s)
	}

	var cores []zapcore.Core
	if s.console != nil {
		cores = append(cores, zapcore.NewCore(encoder(true), zapcore.AddSync(s.console), lvl))
	}
	if s.file != nil {
		cores = append(cores, zapcore.NewCore(encoder(false), zapcore.AddSync(s.file.writer()), lvl))
	}
	if len(cores) == 0 {
		Log = zap.NewNop()
		return nil
	}
	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return nil
}

// encoder lays entries out as "time LEVEL component caller msg fields". The console variant
// colors the level and keeps only the wall-clock time.
func encoder(console bool) zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "component",
		MessageKey:       "msg",
		CallerKey:        "caller",
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	}
	if console {
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(cfg)
}

// Named returns a logger for one engine component, e.g. "renderer" or "light". It is bound to
// the logger installed when it is called.
//
// Parameters:
//   - component: the component name
//
// Returns:
//   - *zap.Logger: the component logger
func Named(component string) *zap.Logger {
	return Log.Named(component)
}

// Sync flushes buffered entries.
func Sync() {
	_ = Log.Sync()
}

func Debug(msg string, fields ...zap.Field) { Log.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { Log.Info(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Log.Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { Log.Fatal(msg, fields...) }
