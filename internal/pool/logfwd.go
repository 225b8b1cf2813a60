package pool

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/tidwall/gjson"
)

// maxLogLine is the longest line kept pending before it is logged as is.
const maxLogLine = 1 << 20

// logWriter receives the stderr of a worker in arbitrary fragments and logs
// every complete line on the parent logger. JSON lines written by
// slog.JSONHandler keep their message and attributes and are logged at the
// higher of their own level and level. Other lines are logged at level.
type logWriter struct {
	ctx     context.Context
	logger  *slog.Logger
	level   slog.Level
	pending []byte
}

func newLogWriter(ctx context.Context, logger *slog.Logger, level slog.Level) *logWriter {
	return &logWriter{
		ctx:    ctx,
		logger: logger,
		level:  level,
	}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	rest := w.pending
	for {
		line, tail, ok := bytes.Cut(rest, []byte{'\n'})
		if !ok {
			break
		}
		w.emit(line)
		rest = tail
	}
	if len(rest) >= maxLogLine {
		w.emit(rest)
		rest = nil
	}
	w.pending = append(w.pending[:0], rest...)
	return len(p), nil
}

// Flush logs an unterminated last line.
func (w *logWriter) Flush() {
	if len(w.pending) > 0 {
		w.emit(w.pending)
		w.pending = w.pending[:0]
	}
}

func (w *logWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	if !gjson.ValidBytes(line) {
		w.logger.LogAttrs(w.ctx, w.level, string(line))
		return
	}
	rec := gjson.ParseBytes(line)
	if !rec.IsObject() {
		w.logger.LogAttrs(w.ctx, w.level, string(line))
		return
	}

	level := w.level
	var recLevel slog.Level
	if err := recLevel.UnmarshalText([]byte(rec.Get(slog.LevelKey).String())); err == nil {
		level = max(level, recLevel)
	}

	var attrs []slog.Attr
	rec.ForEach(func(key, value gjson.Result) bool {
		switch k := key.String(); k {
		case slog.TimeKey, slog.LevelKey, slog.MessageKey:
		default:
			attrs = append(attrs, slog.Any(k, value.Value()))
		}
		return true
	})
	w.logger.LogAttrs(w.ctx, level, rec.Get(slog.MessageKey).String(), attrs...)
}
