package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const logTimeLayout = "[2006/01/02 15:04:05]"

// bracketHandler writes one line per record to the terminal:
//
//	[2025/01/22 10:53:11] [run] Run 7: 5 hits, 3 events
//
// Attribute keys are dropped, only their values are printed. Level and
// group handling are delegated to a text handler on the same writer.
type bracketHandler struct {
	next  slog.Handler
	out   io.Writer
	mu    *sync.Mutex
	attrs []slog.Attr
}

func newBracketHandler(out io.Writer, level slog.Leveler) *bracketHandler {
	return &bracketHandler{
		next: slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}),
		out:  out,
		mu:   &sync.Mutex{},
	}
}

func (h *bracketHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *bracketHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &c
}

func (h *bracketHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.next = h.next.WithGroup(name)
	return &c
}

func (h *bracketHandler) Handle(_ context.Context, r slog.Record) error {
	var line strings.Builder
	line.WriteString(r.Time.Format(logTimeLayout))
	writeValue := func(a slog.Attr) bool {
		line.WriteString(" [")
		line.WriteString(a.Value.String())
		line.WriteByte(']')
		return true
	}
	for _, a := range h.attrs {
		writeValue(a)
	}
	r.Attrs(writeValue)
	line.WriteByte(' ')
	line.WriteString(r.Message)
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, line.String())
	return err
}

// Logger feeds pipeline messages to slog: progress on the terminal handler,
// failures as JSON for whatever collects stderr.
type Logger struct {
	InfoLog  *slog.Logger
	ErrorLog *slog.Logger
}

func (l Logger) Info(message string, module string) {
	l.InfoLog.Info(message, "module", module)
}

func (l Logger) Error(message string) {
	l.ErrorLog.Error(message)
}

func newLogger(stdout io.Writer, stderr io.Writer) Logger {
	return Logger{
		InfoLog:  slog.New(newBracketHandler(stdout, slog.LevelDebug)),
		ErrorLog: slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
}
