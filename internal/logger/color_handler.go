package logger

import (
	"context"
	"io"
	"log/slog"
)

// ColorHandler decorates slog.TextHandler with an ANSI-colored level
// prefix so supervisor output is scannable in a terminal.
type ColorHandler struct {
	*slog.TextHandler
}

func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	return &ColorHandler{TextHandler: slog.NewTextHandler(w, opts)}
}

func (h *ColorHandler) Handle(ctx context.Context, r slog.Record) error {
	var color string
	switch {
	case r.Level >= slog.LevelError:
		color = "\033[31m" // red
	case r.Level >= slog.LevelWarn:
		color = "\033[33m" // yellow
	case r.Level >= slog.LevelInfo:
		color = "\033[32m" // green
	default:
		color = "\033[36m" // cyan
	}
	r.Message = color + r.Level.String() + "\033[0m " + r.Message
	return h.TextHandler.Handle(ctx, r)
}
