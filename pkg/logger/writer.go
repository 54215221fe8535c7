package logger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// LineWriter превращает построчный вывод (например, log.Logger) в записи slog.
// Каждая строка, оканчивающаяся на '\n', становится одной записью;
// '\r' отбрасывается. Незавершённая строка ждёт следующего Write или Flush.
type LineWriter struct {
	logger *slog.Logger
	level  slog.Level
	prefix string

	mu  sync.Mutex
	buf strings.Builder
}

func NewLineWriter(logger *slog.Logger, level slog.Level, prefix string) *LineWriter {
	if logger == nil {
		logger = slog.Default()
	}

	return &LineWriter{logger: logger, level: level, prefix: prefix}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, b := range p {
		switch b {
		case '\n':
			w.emit()
		case '\r':
		default:
			w.buf.WriteByte(b)
		}
	}

	return len(p), nil
}

// Flush пишет незавершённую строку, если она есть.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.emit()
	}
}

func (w *LineWriter) emit() {
	msg := w.buf.String()
	w.buf.Reset()

	if w.prefix != "" {
		msg = w.prefix + " " + msg
	}

	w.logger.Log(context.Background(), w.level, msg)
}
