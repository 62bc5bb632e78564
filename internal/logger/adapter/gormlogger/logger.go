// Package gormlogger sends gorm's statement log to zerolog.
package gormlogger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config of the adapter.
type Config struct {
	// SlowThreshold marks statements at or above it as slow. Zero disables the check.
	SlowThreshold time.Duration

	// LogSQL logs every statement at debug level.
	LogSQL bool

	// IgnoreRecordNotFound keeps lookups that find nothing out of the error log.
	IgnoreRecordNotFound bool
}

// Logger implements gorm's logger.Interface on top of a zerolog logger.
type Logger struct {
	cfg   Config
	level gormlogger.LogLevel
	zl    *zerolog.Logger
}

// New returns a Logger writing to the global zerolog logger.
func New(cfg Config) *Logger {
	return &Logger{cfg: cfg, level: gormlogger.Info, zl: &log.Logger}
}

// WithLogger returns a copy writing to zl.
func (l *Logger) WithLogger(zl zerolog.Logger) *Logger {
	c := *l
	c.zl = &zl

	return &c
}

// LogMode implements logger.Interface.
func (l *Logger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level

	return &c
}

// Info implements logger.Interface.
func (l *Logger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.zl.Info().Str("component", "gorm").Msg(fmt.Sprintf(msg, args...))
	}
}

// Warn implements logger.Interface.
func (l *Logger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.zl.Warn().Str("component", "gorm").Msg(fmt.Sprintf(msg, args...))
	}
}

// Error implements logger.Interface.
func (l *Logger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.zl.Error().Str("component", "gorm").Msg(fmt.Sprintf(msg, args...))
	}
}

// Trace implements logger.Interface. Failures are logged at error level, slow statements at
// warn level and everything else at debug level when LogSQL is set.
func (l *Logger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)

	var ev *zerolog.Event

	switch {
	case err != nil && l.level >= gormlogger.Error &&
		!(l.cfg.IgnoreRecordNotFound && errors.Is(err, gorm.ErrRecordNotFound)):
		ev = l.zl.Error().Err(err)
	case l.cfg.SlowThreshold > 0 && elapsed >= l.cfg.SlowThreshold && l.level >= gormlogger.Warn:
		ev = l.zl.Warn().Dur("threshold", l.cfg.SlowThreshold)
	case l.cfg.LogSQL && l.level >= gormlogger.Info:
		ev = l.zl.Debug()
	default:
		return
	}

	sql, rows := fc()

	ev.Str("component", "gorm").
		Str("sql", sql).
		Int64("rows", rows).
		Dur("elapsed", elapsed).
		Msg("statement")
}

var _ gormlogger.Interface = (*Logger)(nil)
