package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	s := miniredis.RunT(t)
	ctx := context.Background()

	client, err := NewClient(ctx, "redis://"+s.Addr()+"/2")
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 2, client.Options().DB)
	require.NoError(t, client.Set(ctx, "lock:probe", "1", time.Minute).Err())
	assert.True(t, s.Exists("lock:probe"))
}

func TestNewClientInvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), "://bad-url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis URL")
}

func TestNewClientPingFailure(t *testing.T) {
	s := miniredis.RunT(t)
	url := "redis://" + s.Addr()
	s.Close()

	_, err := NewClient(context.Background(), url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestNewClientHonoursCancelledContext(t *testing.T) {
	s := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(ctx, "redis://"+s.Addr())
	assert.Error(t, err)
}
