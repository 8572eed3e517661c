// Package logger initialises the global zerolog logger: console and rolling file
// writers split by level band and a Prometheus hook counting statements per level.
package logger

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelWriter routes an event to the writer of its level band:
// trace, debug and info, warn, error and above.
type LevelWriter struct {
	io.Writer
	Trace io.Writer
	Info  io.Writer
	Warn  io.Writer
	Error io.Writer
}

// WriteLevel implements zerolog.LevelWriter.
func (lw *LevelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	var w io.Writer

	switch {
	case l == zerolog.Disabled:
		return 0, nil
	case l == zerolog.TraceLevel:
		w = lw.Trace
	case l == zerolog.WarnLevel:
		w = lw.Warn
	case l > zerolog.WarnLevel && l != zerolog.NoLevel:
		w = lw.Error
	default:
		w = lw.Info
	}

	if w == nil {
		return len(p), nil
	}

	return w.Write(p) //nolint:wrapcheck
}

// Init replaces the global logger according to cfg.
// Without an enabled console or file writer nothing is logged.
func Init(cfg Log) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("loglevel %s is not supported", cfg.LogLevel))
	}

	if cfg.ServiceName == "" {
		return ErrServiceNameIsEmpty
	}

	if cfg.AppName == "" {
		return ErrAppNameIsEmpty
	}

	if cfg.File.Enabled && cfg.File.Path == "" {
		return ErrFilePathIsEmpty
	}

	zerolog.SetGlobalLevel(level)
	zerolog.ErrorHandler = ErrorHandler //nolint:reassign

	// stack traces of pkg/errors values at trace level
	stack := level == zerolog.TraceLevel
	if stack {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack //nolint:reassign
	}

	var writers []io.Writer

	if cfg.Console.Enabled {
		writers = append(writers, NewConsoleWriter(cfg))
	}

	if cfg.File.Enabled {
		if w := newRollingLevelFiles(cfg.File); w != nil {
			writers = append(writers, w)
		}
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Hook(NewPrometheusHook(cfg.ServiceName)).
		With().
		Timestamp().
		Str("app", cfg.AppName)

	if cfg.LogEnv != "" {
		ctx = ctx.Str("env", cfg.LogEnv)
	}

	switch {
	case cfg.ReportCaller && stack:
		ctx = ctx.Stack().Caller()
	case cfg.ReportCaller:
		ctx = ctx.Caller()
	case stack:
		ctx = ctx.Stack()
	}

	log.Logger = ctx.Logger()

	return nil
}

// RollingFile returns a lumberjack writer for name below cfg.Path using the shared rotation settings.
func RollingFile(cfg LogFile, name string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path.Join(cfg.Path, name),
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
}

func newRollingLevelFiles(cfg LogFile) io.Writer {
	if err := os.MkdirAll(cfg.Path, 0o750); err != nil { //nolint: mnd
		log.Error().Err(err).Str("path", cfg.Path).Msg("can't create log directory")

		return nil
	}

	return &LevelWriter{
		Trace: RollingFile(cfg, cfg.TraceLog),
		Info:  RollingFile(cfg, cfg.InfoLog),
		Warn:  RollingFile(cfg, cfg.WarnLog),
		Error: RollingFile(cfg, cfg.ErrorLog),
	}
}

// NewConsoleWriter writes info to stdout and everything else to stderr,
// human readable when Console.UseConsoleWriter is set and JSON otherwise.
func NewConsoleWriter(cfg Log) io.Writer {
	wrap := func(out io.Writer) io.Writer {
		if !cfg.Console.UseConsoleWriter {
			return out
		}

		return zerolog.ConsoleWriter{Out: out, TimeFormat: zerolog.TimeFieldFormat}
	}

	stderr := wrap(os.Stderr)

	return &LevelWriter{
		Trace: stderr,
		Info:  wrap(os.Stdout),
		Warn:  stderr,
		Error: stderr,
	}
}
