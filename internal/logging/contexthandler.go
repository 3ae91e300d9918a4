package logging

import (
	"context"
	"log/slog"
)

// TickKey is the attribute carrying the simulation tick.
const TickKey = "tick"

type tickKey struct{}

// WithTick returns a context whose log records carry tick. It takes
// precedence over a ContextProvider that also reports the tick.
func WithTick(ctx context.Context, tick uint64) context.Context {
	return context.WithValue(ctx, tickKey{}, tick)
}

// TickFrom returns the tick stored by WithTick.
func TickFrom(ctx context.Context) (uint64, bool) {
	if ctx == nil {
		return 0, false
	}
	tick, ok := ctx.Value(tickKey{}).(uint64)
	return tick, ok
}

// ContextProvider reports attributes that change between records, such as
// the tick of a running world.
type ContextProvider func() []slog.Attr

// ContextHandler adds the context tick and the provider's attributes to
// every record before passing it on.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{inner: inner, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	tick, pinned := TickFrom(ctx)
	if pinned {
		r.AddAttrs(slog.Uint64(TickKey, tick))
	}
	if h.provider != nil {
		for _, a := range h.provider() {
			if !(pinned && a.Key == TickKey) {
				r.AddAttrs(a)
			}
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.wrap(h.inner.WithAttrs(attrs))
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.wrap(h.inner.WithGroup(name))
}

func (h *ContextHandler) wrap(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner, provider: h.provider}
}
