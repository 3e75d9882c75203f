package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurapalm/aura/internal/config"
)

func TestRunDrainsAndRunsHooksInReverse(t *testing.T) {
	srv := New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, http.NotFoundHandler())

	var order []string
	srv.OnShutdown(func(context.Context) { order = append(order, "redis") })
	srv.OnShutdown(func(context.Context) { order = append(order, "nats") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, []string{"nats", "redis"}, order)
}

func TestRunReturnsListenErrors(t *testing.T) {
	srv := New(config.ServerConfig{Host: "256.0.0.1", Port: 8080}, http.NotFoundHandler())
	err := srv.Run(context.Background())
	assert.Error(t, err)
}
