package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/avass/gemgram/internal/core"
)

func TestGateway_ConfigureDecodesYAML(t *testing.T) {
	t.Parallel()

	raw := `
bind: "127.0.0.1:9999"
read_timeout: 5s
auth:
  bearer_token: "secret"
webhooks:
  telegram:
    secret: "hmac-secret"
`
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	g := &Gateway{}
	if err := g.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "127.0.0.1:9999" {
		t.Errorf("Bind = %q", g.config.Bind)
	}
	if g.config.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v", g.config.ReadTimeout)
	}
	if !g.config.Auth.IsConfigured() {
		t.Error("auth should be configured")
	}
	if g.config.Webhooks["telegram"].Secret != "hmac-secret" {
		t.Errorf("webhook secret = %q", g.config.Webhooks["telegram"].Secret)
	}
	// Unset fields get defaults.
	if g.config.WriteTimeout != 30*time.Second {
		t.Errorf("WriteTimeout = %v, want default 30s", g.config.WriteTimeout)
	}
}

func TestGateway_ValidateBindAddress(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	g.config.defaults()
	if err := g.Validate(); err != nil {
		t.Errorf("default bind must validate: %v", err)
	}

	g.config.Bind = "not a bind address"
	if err := g.Validate(); err == nil {
		t.Error("expected error for invalid bind address")
	}
}

func TestGateway_StartStop(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := newTestGateway(t, func(g *Gateway) {
		g.config.Bind = "127.0.0.1:0"
	})
	// Start resolves services through the registry; none are registered
	// here, which must not be fatal.
	g.appCtx = core.NewAppContext(logger, t.TempDir())

	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := g.Stop(t.Context()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestGateway_HealthEndpoints(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, nil)
	srv := newTestServer(t, g)

	for _, path := range []string{"/", "/health"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		var health HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d", path, resp.StatusCode)
		}
		if health.Status != "ok" {
			t.Errorf("GET %s status field = %q", path, health.Status)
		}
	}
}

func TestGateway_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, nil)
	srv := newTestServer(t, g)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 {
		t.Error("expected Prometheus exposition output")
	}
}

func TestGateway_AdminNotMountedWithoutAuth(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, nil)
	srv := newTestServer(t, g)

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when auth unconfigured", resp.StatusCode)
	}
}
