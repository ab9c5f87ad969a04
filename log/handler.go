package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

const timeFormat = "01-02|15:04:05.000"

type discardHandler struct{}

// DiscardHandler returns a no-op handler
func DiscardHandler() slog.Handler {
	return &discardHandler{}
}

func (h *discardHandler) Handle(_ context.Context, r slog.Record) error {
	return nil
}

func (h *discardHandler) Enabled(_ context.Context, level slog.Level) bool {
	return false
}

func (h *discardHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *discardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

// TerminalHandler formats records for terminal output: aligned level,
// timestamp, message, then key=value pairs.
type TerminalHandler struct {
	mu    sync.Mutex
	wr    io.Writer
	lvl   slog.Level
	attrs []slog.Attr
}

// NewTerminalHandlerWithLevel returns a handler that only emits records
// at the provided level or higher.
func NewTerminalHandlerWithLevel(wr io.Writer, lvl slog.Level) *TerminalHandler {
	return &TerminalHandler{wr: wr, lvl: lvl}
}

func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf := make([]byte, 0, 128)
	buf = append(buf, LevelAlignedString(r.Level)...)
	buf = append(buf, '[')
	buf = r.Time.AppendFormat(buf, timeFormat)
	buf = append(buf, "] "...)
	buf = append(buf, r.Message...)

	appendAttr := func(a slog.Attr) bool {
		buf = append(buf, ' ')
		buf = append(buf, a.Key...)
		buf = append(buf, '=')
		buf = fmt.Appendf(buf, "%v", a.Value.Any())
		return true
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(appendAttr)
	buf = append(buf, '\n')

	_, err := h.wr.Write(buf)
	return err
}

func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.lvl
}

func (h *TerminalHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TerminalHandler{
		wr:    h.wr,
		lvl:   h.lvl,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}
