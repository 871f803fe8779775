package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// Fields is the structured payload attached to a log line.
type Fields map[string]any

// Logger is the logging interface used by the library.
type Logger interface {
	Info(msg string, obj any)
	Warn(msg string, obj any)
	Debug(msg string, obj any)
	Error(msg string, obj any)
}

// NopLogger discards all log messages.
type NopLogger struct{}

func (NopLogger) Info(string, any)  {}
func (NopLogger) Warn(string, any)  {}
func (NopLogger) Debug(string, any) {}
func (NopLogger) Error(string, any) {}

// WriterOption configures a writer logger.
type WriterOption func(*writerLogger)

// WithMinLevel drops lines below the given level.
func WithMinLevel(level Level) WriterOption {
	return func(l *writerLogger) {
		l.min = level
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) WriterOption {
	return func(l *writerLogger) {
		if now != nil {
			l.now = now
		}
	}
}

type writerLogger struct {
	mu  *sync.Mutex
	w   io.Writer
	min Level
	now func() time.Time
}

// NewWriterLogger builds a logger that writes one line per entry to w.
func NewWriterLogger(w io.Writer, opts ...WriterOption) Logger {
	l := &writerLogger{mu: &sync.Mutex{}, w: w, min: LevelDebug, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *writerLogger) write(level Level, msg string, obj any) {
	if l.w == nil || level < l.min {
		return
	}

	var b strings.Builder
	b.WriteString(l.now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&b, " %-5s %s", level, msg)
	if obj != nil {
		payload, err := json.Marshal(obj)
		if err != nil {
			_, _ = fmt.Fprintf(&b, " obj=%q", fmt.Sprintf("%+v", obj))
		} else {
			b.WriteString(" obj=")
			b.Write(payload)
		}
	}
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.w, b.String())
}

func (l *writerLogger) Info(msg string, obj any)  { l.write(LevelInfo, msg, obj) }
func (l *writerLogger) Warn(msg string, obj any)  { l.write(LevelWarn, msg, obj) }
func (l *writerLogger) Debug(msg string, obj any) { l.write(LevelDebug, msg, obj) }
func (l *writerLogger) Error(msg string, obj any) { l.write(LevelError, msg, obj) }

// With returns a logger that merges base into every map payload it logs.
// Non-map payloads are nested under "data".
func With(logger Logger, base Fields) Logger {
	if logger == nil {
		logger = NopLogger{}
	}
	if len(base) == 0 {
		return logger
	}
	return fieldLogger{next: logger, base: base}
}

type fieldLogger struct {
	next Logger
	base Fields
}

func (l fieldLogger) merge(obj any) Fields {
	out := make(Fields, len(l.base)+4)
	for k, v := range l.base {
		out[k] = v
	}
	switch v := obj.(type) {
	case nil:
	case Fields:
		for k, val := range v {
			out[k] = val
		}
	case map[string]any:
		for k, val := range v {
			out[k] = val
		}
	default:
		out["data"] = v
	}
	return out
}

func (l fieldLogger) Info(msg string, obj any)  { l.next.Info(msg, l.merge(obj)) }
func (l fieldLogger) Warn(msg string, obj any)  { l.next.Warn(msg, l.merge(obj)) }
func (l fieldLogger) Debug(msg string, obj any) { l.next.Debug(msg, l.merge(obj)) }
func (l fieldLogger) Error(msg string, obj any) { l.next.Error(msg, l.merge(obj)) }

// Debug writes a debug log when enabled and logger is non-nil.
func Debug(enabled bool, logger Logger, msg string, obj any) {
	if !enabled || logger == nil {
		return
	}
	logger.Debug(msg, obj)
}

// Info writes an info log when logger is non-nil.
func Info(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Info(msg, obj)
}

// Warn writes a warning log when logger is non-nil.
func Warn(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Warn(msg, obj)
}

// Error writes an error log when logger is non-nil.
func Error(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Error(msg, obj)
}
