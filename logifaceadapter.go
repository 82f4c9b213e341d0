package engine

import (
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// logifaceLogger adapts a github.com/joeycumines/logiface logger onto the
// engine's Logger interface, so diagnostics route through a structured,
// leveled logger instead of DefaultLogger's plain text formatting.
type logifaceLogger struct {
	logger *logiface.Logger[*stumpy.Event]
}

// NewLogifaceLogger builds a Logger backed by stumpy, logiface's JSON
// logger implementation, writing to w (os.Stderr if nil).
func NewLogifaceLogger(w *os.File) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &logifaceLogger{
		logger: stumpy.L.New(
			stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		),
	}
}

func (l *logifaceLogger) IsEnabled(level LogLevel) bool {
	return l.logger.Build(toLogifaceLevel(level)) != nil
}

func (l *logifaceLogger) Log(entry LogEntry) {
	b := l.logger.Build(toLogifaceLevel(entry.Level))
	if b == nil {
		return
	}
	b = b.Str("category", entry.Category)
	if entry.EngineID != 0 {
		b = b.Int("engine", int(entry.EngineID))
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	for k, v := range entry.Context {
		b = b.Interface(k, v)
	}
	b.Log(entry.Message)
}

func toLogifaceLevel(level LogLevel) logiface.Level {
	switch level {
	case LogLevelDebug:
		return logiface.LevelDebug
	case LogLevelInfo:
		return logiface.LevelInformational
	case LogLevelWarn:
		return logiface.LevelWarning
	case LogLevelError:
		return logiface.LevelError
	case LogLevelCrit:
		return logiface.LevelCritical
	default:
		return logiface.LevelInformational
	}
}
