package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRateLimitedHandlerDropsOverLimit(t *testing.T) {
	var buf bytes.Buffer
	h := NewRateLimitedHandler(slog.NewTextHandler(&buf, nil), rate.Limit(1), 2)
	logger := slog.New(h)

	for range 10 {
		logger.Warn("flood")
	}

	passed := strings.Count(buf.String(), "flood")
	assert.Equal(t, 2, passed, "burst passes, the rest drop")
	assert.Equal(t, int64(8), h.Dropped())
}

func TestRateLimitedHandlerPassesErrors(t *testing.T) {
	var buf bytes.Buffer
	h := NewRateLimitedHandler(slog.NewTextHandler(&buf, nil), rate.Limit(1), 1)
	logger := slog.New(h)

	for range 5 {
		logger.Error("critical")
	}

	assert.Equal(t, 5, strings.Count(buf.String(), "critical"))
	assert.Zero(t, h.Dropped())
}

func TestRateLimitedHandlerWithAttrsSharesLimiter(t *testing.T) {
	var buf bytes.Buffer
	h := NewRateLimitedHandler(slog.NewTextHandler(&buf, nil), rate.Limit(1), 1)

	scoped := slog.New(h.WithAttrs([]slog.Attr{slog.String("scope", "a")}))
	plain := slog.New(h)

	scoped.Warn("first")
	plain.Warn("second")

	out := buf.String()
	require.Contains(t, out, "first")
	assert.NotContains(t, out, "second", "shared token bucket already drained")
}
