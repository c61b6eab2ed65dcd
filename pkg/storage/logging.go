package storage

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type loggingBackend struct {
	next Backend
	log  logrus.FieldLogger
}

// WithLogging wraps b so every call is logged at debug level. Failures other
// than ErrNotFound are logged as warnings.
func WithLogging(b Backend, log logrus.FieldLogger) Backend {
	if log == nil {
		return b
	}
	return &loggingBackend{next: b, log: log}
}

func (l *loggingBackend) observe(op, p string, size int, start time.Time, err error) {
	entry := l.log.WithFields(logrus.Fields{
		"op":       op,
		"path":     p,
		"duration": time.Since(start),
	})
	if size >= 0 {
		entry = entry.WithField("bytes", size)
	}
	switch {
	case err == nil:
		entry.Debug("storage")
	case IsNotFound(err):
		entry.Debug("storage: not found")
	default:
		entry.WithError(err).Warn("storage failed")
	}
}

func (l *loggingBackend) ReadFile(ctx context.Context, p string) ([]byte, error) {
	start := time.Now()
	data, err := l.next.ReadFile(ctx, p)
	l.observe("read", p, len(data), start, err)
	return data, err
}

func (l *loggingBackend) WriteFile(ctx context.Context, p string, data []byte) error {
	start := time.Now()
	err := l.next.WriteFile(ctx, p, data)
	l.observe("write", p, len(data), start, err)
	return err
}

func (l *loggingBackend) DeleteFile(ctx context.Context, p string) error {
	start := time.Now()
	err := l.next.DeleteFile(ctx, p)
	l.observe("delete", p, -1, start, err)
	return err
}

func (l *loggingBackend) ListDirectory(ctx context.Context, dir string) ([]string, error) {
	start := time.Now()
	names, err := l.next.ListDirectory(ctx, dir)
	l.observe("list", dir, -1, start, err)
	return names, err
}
