// Package zaplog adapts go.uber.org/zap to the core logging seam.
//
// The core packages only know the small core.Logger interface; this
// package is the production backend for it. Plug it in through the
// config structs:
//
//	logger, _ := zaplog.NewProduction()
//	executor := core.NewTaskExecutor("api-pool", core.ExecutorConfig{
//		Logger: logger,
//	})
package zaplog

import (
	"go.uber.org/zap"

	"github.com/example/guithread/core"
)

// Logger wraps a *zap.Logger behind core.Logger.
type Logger struct {
	l *zap.Logger
}

var _ core.Logger = (*Logger)(nil)

// New wraps an existing zap logger. The caller keeps ownership: Sync and
// level control stay on the wrapped logger.
func New(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{l: l}
}

// NewDevelopment builds an adapter over zap's development preset
// (human-readable console output, debug level enabled).
func NewDevelopment() (*Logger, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &Logger{l: l}, nil
}

// NewProduction builds an adapter over zap's production preset
// (JSON output, info level and up).
func NewProduction() (*Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &Logger{l: l}, nil
}

// Unwrap returns the underlying zap logger.
func (z *Logger) Unwrap() *zap.Logger {
	return z.l
}

// Sync flushes buffered entries on the wrapped logger.
func (z *Logger) Sync() error {
	return z.l.Sync()
}

func (z *Logger) Debug(msg string, fields ...core.Field) {
	z.l.Debug(msg, zapFields(fields)...)
}

func (z *Logger) Info(msg string, fields ...core.Field) {
	z.l.Info(msg, zapFields(fields)...)
}

func (z *Logger) Warn(msg string, fields ...core.Field) {
	z.l.Warn(msg, zapFields(fields)...)
}

func (z *Logger) Error(msg string, fields ...core.Field) {
	z.l.Error(msg, zapFields(fields)...)
}

func zapFields(fields []core.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
