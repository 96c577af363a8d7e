package db

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormLogger sends gorm's messages to logrus at the matching level.
// Failed statements are errors, slow ones warnings, and with echo on every
// statement is logged at info.
type gormLogger struct {
	level         logger.LogLevel
	slowThreshold time.Duration
}

func newGormLogger(echo bool) *gormLogger {
	level := logger.Warn
	if echo {
		level = logger.Info
	}
	return &gormLogger{level: level, slowThreshold: slowQueryThreshold}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		log.WithContext(ctx).Infof(msg, args...)
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		log.WithContext(ctx).Warnf(msg, args...)
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		log.WithContext(ctx).Errorf(msg, args...)
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	fields := func() log.Fields {
		sql, rows := fc()
		return log.Fields{"sql": sql, "rows": rows, "elapsed": elapsed}
	}

	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		log.WithContext(ctx).WithFields(fields()).WithError(err).Error("query failed")
	case l.slowThreshold != 0 && elapsed > l.slowThreshold && l.level >= logger.Warn:
		log.WithContext(ctx).WithFields(fields()).Warn("slow query")
	case l.level >= logger.Info:
		log.WithContext(ctx).WithFields(fields()).Info("query")
	}
}
