// Package stdlogger exposes the global zerolog logger through the printf style
// interface expected by libraries such as gorm.
package stdlogger

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger forwards printf style calls to the global zerolog logger.
type Logger struct {
	// PrintLevel is the level used by Printf.
	PrintLevel zerolog.Level
}

// New returns a Logger printing at info level.
func New() *Logger {
	return &Logger{PrintLevel: zerolog.InfoLevel}
}

// Printf logs at PrintLevel.
func (l *Logger) Printf(format string, v ...any) {
	log.WithLevel(l.PrintLevel).Msgf(strings.TrimSpace(format), v...)
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, v ...any) {
	log.Debug().Msgf(format, v...)
}

// Infof logs at info level.
func (l *Logger) Infof(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

// Warningf logs at warn level.
func (l *Logger) Warningf(format string, v ...any) {
	log.Warn().Msgf(format, v...)
}

// Errorf logs at error level.
func (l *Logger) Errorf(format string, v ...any) {
	log.Error().Msgf(format, v...)
}
