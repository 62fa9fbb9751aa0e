package logging

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// RateLimitedHandler is a slog.Handler decorator that bounds how fast
// records pass through. Wrap a logger with it before handing it to noisy
// components (the manager applies its own internal bound to handler-fault
// logging; this decorator is for everything else). Records at or above
// error level bypass the limiter.
type RateLimitedHandler struct {
	next    slog.Handler
	limiter *rate.Limiter
	// bypassAbove passes records at or above this level unthrottled.
	bypassAbove slog.Level
	dropped     atomic.Int64
}

// NewRateLimitedHandler wraps next with a token-bucket limit of r records
// per second and the given burst. Error-level records always pass.
func NewRateLimitedHandler(next slog.Handler, r rate.Limit, burst int) *RateLimitedHandler {
	return &RateLimitedHandler{
		next:        next,
		limiter:     rate.NewLimiter(r, burst),
		bypassAbove: slog.LevelError,
	}
}

// Enabled implements slog.Handler.
func (h *RateLimitedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler, dropping records over the limit.
func (h *RateLimitedHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < h.bypassAbove && !h.limiter.Allow() {
		h.dropped.Add(1)
		return nil
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs implements slog.Handler. The wrapped handlers share the limiter.
func (h *RateLimitedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RateLimitedHandler{
		next:        h.next.WithAttrs(attrs),
		limiter:     h.limiter,
		bypassAbove: h.bypassAbove,
	}
}

// WithGroup implements slog.Handler. The wrapped handlers share the limiter.
func (h *RateLimitedHandler) WithGroup(name string) slog.Handler {
	return &RateLimitedHandler{
		next:        h.next.WithGroup(name),
		limiter:     h.limiter,
		bypassAbove: h.bypassAbove,
	}
}

// Dropped returns how many records the limiter suppressed.
func (h *RateLimitedHandler) Dropped() int64 {
	return h.dropped.Load()
}
