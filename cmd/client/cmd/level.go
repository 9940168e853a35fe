package cmd

import (
	"context"

	"golang.org/x/exp/slog"
)

type discardBelowWarn struct {
	slog.Handler
}

func (h discardBelowWarn) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn && h.Handler.Enabled(ctx, level)
}

func (h discardBelowWarn) WithAttrs(attrs []slog.Attr) slog.Handler {
	return discardBelowWarn{h.Handler.WithAttrs(attrs)}
}

func (h discardBelowWarn) WithGroup(name string) slog.Handler {
	return discardBelowWarn{h.Handler.WithGroup(name)}
}
