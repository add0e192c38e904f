package rtc

import (
	"github.com/pion/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggerFactory routes pion's internal logging into zerolog so the
// whole process logs through one sink.
type LoggerFactory struct{}

func NewLoggerFactory() logging.LoggerFactory { return LoggerFactory{} }

func (LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	l := log.With().Str("module", "pion").Str("scope", scope).Logger()
	return &leveledLogger{l: l}
}

type leveledLogger struct {
	l zerolog.Logger
}

func (z *leveledLogger) Trace(msg string)             { z.l.Trace().Msg(msg) }
func (z *leveledLogger) Tracef(f string, args ...any) { z.l.Trace().Msgf(f, args...) }
func (z *leveledLogger) Debug(msg string)             { z.l.Debug().Msg(msg) }
func (z *leveledLogger) Debugf(f string, args ...any) { z.l.Debug().Msgf(f, args...) }
func (z *leveledLogger) Info(msg string)              { z.l.Info().Msg(msg) }
func (z *leveledLogger) Infof(f string, args ...any)  { z.l.Info().Msgf(f, args...) }
func (z *leveledLogger) Warn(msg string)              { z.l.Warn().Msg(msg) }
func (z *leveledLogger) Warnf(f string, args ...any)  { z.l.Warn().Msgf(f, args...) }
func (z *leveledLogger) Error(msg string)             { z.l.Error().Msg(msg) }
func (z *leveledLogger) Errorf(f string, args ...any) { z.l.Error().Msgf(f, args...) }
