package logger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// GormLogger 将 gorm 的日志输出转接到 slog。
type GormLogger struct {
	LogLevel logger.LogLevel
}

// NewGormLogger 创建 GormLogger，默认只记录 Warn 及以上的日志。
func NewGormLogger() *GormLogger {
	return &GormLogger{LogLevel: logger.Warn}
}

func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.LogLevel = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Info {
		slog.InfoContext(ctx, msg, "data", data)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Warn {
		slog.WarnContext(ctx, msg, "data", data)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Error {
		slog.ErrorContext(ctx, msg, "data", data)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	operation := "QUERY"
	if fields := strings.Fields(sql); len(fields) > 0 {
		operation = strings.ToUpper(fields[0])
	}

	attrs := []any{
		slog.String("sql", sql),
		slog.Duration("latency", elapsed),
		slog.Int64("rows", rows),
	}

	switch {
	case err != nil && !errors.Is(err, logger.ErrRecordNotFound) && l.LogLevel >= logger.Error:
		slog.ErrorContext(ctx, "sql "+operation+" failed", append(attrs, slog.Any("err", err))...)
	case elapsed > slowQueryThreshold && l.LogLevel >= logger.Warn:
		slog.WarnContext(ctx, "sql "+operation+" slow", attrs...)
	case l.LogLevel >= logger.Info:
		slog.DebugContext(ctx, "sql "+operation, attrs...)
	}
}
