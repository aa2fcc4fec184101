package gateway

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/avass/gemgram/internal/memory"
	"github.com/avass/gemgram/internal/metrics"
)

// newTestGateway builds a Gateway ready for buildRouter, bypassing the
// module lifecycle. mutate adjusts the config before routes are built.
func newTestGateway(t *testing.T, mutate func(*Gateway)) *Gateway {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := &Gateway{
		logger:     logger,
		dispatcher: NewWebhookDispatcher(logger),
		sessions:   memory.NewInMemoryConversationStore(),
		metrics:    metrics.New(nil),
	}
	g.config.defaults()

	if mutate != nil {
		mutate(g)
	}
	return g
}

// newTestServer serves the gateway's router over httptest.
func newTestServer(t *testing.T, g *Gateway) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return srv
}
