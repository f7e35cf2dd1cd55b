package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	client, err := NewClient(ctx, &Config{Addrs: []string{mr.Addr()}}, logger)
	require.NoError(t, err)

	assert.NoError(t, client.Ping(ctx))
	require.NoError(t, client.Universal().Set(ctx, "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.NoError(t, client.Close())
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := NewClient(context.Background(), &Config{Addrs: []string{addr}}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping Redis")
}
