// Package cyrelog provides the structured logger every other package logs
// through: blocked channels at compile time, call rejections and handler
// errors, and formation lifecycle transitions. It ports the teacher's internal/log Logger
// interface (leveled, WithField/WithFields/WithError) onto logrus, with an
// optional lumberjack-rotated file sink and Loki HTTP batch sink.
package cyrelog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/neuralline/cyre-go/internal/config"
)

// Logger is the leveled, structured logging interface every Cyre subsystem
// depends on instead of *logrus.Logger directly, so the backing
// implementation can be swapped without touching call sites.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)

	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	WithError(err error) Logger
}

type logrusAdapter struct {
	entry *logrus.Entry
}

// New builds a Logger from the global log configuration: level, format
// (text/json), optional lumberjack file rotation, and an optional Loki
// sink layered on with a MultiWriter the way the teacher composes
// appenders.
func New(cfg config.LogConfig) Logger {
	l := logrus.New()

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	writers := []io.Writer{os.Stdout}
	if cfg.File.Enabled {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxAge:     cfg.File.MaxAgeDays,
			MaxBackups: cfg.File.MaxBackups,
			Compress:   cfg.File.Compress,
		})
	}
	if cfg.Loki.Enabled {
		if loki, err := NewLokiWriter(LokiConfig{
			Endpoint:      cfg.Loki.URL,
			BatchSize:     cfg.Loki.BatchSize,
			FlushInterval: cfg.Loki.FlushInterval,
			Labels:        map[string]string{"app": "cyre"},
		}); err == nil {
			writers = append(writers, loki)
		}
	}
	l.SetOutput(io.MultiWriter(writers...))

	return &logrusAdapter{entry: logrus.NewEntry(l)}
}

// NewNop returns a logger that discards everything, for tests and
// embedders that have not configured logging.
func NewNop() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &logrusAdapter{entry: logrus.NewEntry(l)}
}

func (l *logrusAdapter) Debug(args ...any)                 { l.entry.Debug(args...) }
func (l *logrusAdapter) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logrusAdapter) Info(args ...any)                  { l.entry.Info(args...) }
func (l *logrusAdapter) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logrusAdapter) Warn(args ...any)                  { l.entry.Warn(args...) }
func (l *logrusAdapter) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logrusAdapter) Error(args ...any)                 { l.entry.Error(args...) }
func (l *logrusAdapter) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *logrusAdapter) WithField(key string, value any) Logger {
	return &logrusAdapter{entry: l.entry.WithField(key, value)}
}

func (l *logrusAdapter) WithFields(fields map[string]any) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}

func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}
