package snsctx

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerbose(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsVerbose(ctx))
	assert.True(t, IsVerbose(SetVerbose(ctx, true)))
	assert.False(t, IsVerbose(SetVerbose(SetVerbose(ctx, true), false)))
}

func TestLogger(t *testing.T) {
	assert.Equal(t, slog.Default(), Logger(context.Background()))

	var out bytes.Buffer
	l := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := WithLogger(context.Background(), l)
	Logger(ctx).Debug("register written", "reg", 0)
	assert.Contains(t, out.String(), "register written")

	// verbose flag and logger live side by side
	ctx = SetVerbose(ctx, true)
	assert.True(t, IsVerbose(ctx))
	assert.Same(t, l, Logger(ctx))
}
