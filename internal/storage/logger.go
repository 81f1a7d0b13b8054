package storage

import (
	"context"
	"time"

	"gorm.io/gorm/logger"

	ilog "tagscope/internal/logger"
)

// GormLogger 将 GORM 日志桥接到项目日志器
type GormLogger struct {
	ilog.Logger
	LogLevel logger.LogLevel
}

// NewGormLogger 创建 GormLogger 实例
func NewGormLogger(l ilog.Logger) *GormLogger {
	if l == nil {
		l = ilog.NewNop()
	}
	return &GormLogger{
		Logger:   l,
		LogLevel: logger.Warn,
	}
}

// LogMode 设置日志级别
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info 打印 info 级别日志
func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Info {
		l.Logger.Info(msg, data...)
	}
}

// Warn 打印 warn 级别日志
func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Warn {
		l.Logger.Warn(msg, data...)
	}
}

// Error 打印 error 级别日志
func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Error {
		l.Logger.Warn(msg, data...)
	}
}

// Trace 打印 SQL 日志
func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []any{"sql", sql, "rows", rows, "timeMs", float64(elapsed.Nanoseconds()) / 1e6}
	switch {
	case err != nil && l.LogLevel >= logger.Error:
		l.Logger.Warn("SQL执行错误", append(fields, "error", err)...)
	case elapsed > time.Second && l.LogLevel >= logger.Warn:
		l.Logger.Warn("慢SQL查询", append(fields, "threshold", "1s")...)
	case l.LogLevel == logger.Info:
		l.Logger.Debug("SQL执行", fields...)
	}
}
