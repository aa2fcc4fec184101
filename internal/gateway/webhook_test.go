package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
)

type recordingHandler struct {
	mu      sync.Mutex
	source  string
	body    []byte
	headers http.Header
	err     error
}

func (h *recordingHandler) HandleWebhook(_ context.Context, source string, body []byte, headers http.Header) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.source = source
	h.body = body
	h.headers = headers
	return h.err
}

func TestWebhookDispatcher_Dispatch(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, nil)
	handler := &recordingHandler{}
	g.dispatcher.Register("telegram", handler)
	srv := newTestServer(t, g)

	resp, err := http.Post(srv.URL+"/webhooks/telegram", "application/json", strings.NewReader(`{"update_id":1}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.source != "telegram" {
		t.Errorf("source = %q", handler.source)
	}
	if string(handler.body) != `{"update_id":1}` {
		t.Errorf("body = %q", handler.body)
	}
	if handler.headers.Get("Content-Type") != "application/json" {
		t.Error("headers must be forwarded to the handler")
	}
}

func TestWebhookDispatcher_UnregisteredSource(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, nil)
	srv := newTestServer(t, g)

	resp, err := http.Post(srv.URL+"/webhooks/unknown", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestWebhookDispatcher_HandlerError(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, nil)
	g.dispatcher.Register("telegram", &recordingHandler{err: errors.New("boom")})
	srv := newTestServer(t, g)

	resp, err := http.Post(srv.URL+"/webhooks/telegram", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestWebhookDispatcher_HMACValidation(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, nil)
	handler := &recordingHandler{}
	g.dispatcher.Register("github", handler)
	g.dispatcher.SetSecret("github", "hmac-secret")
	srv := newTestServer(t, g)

	body := []byte(`{"event":"push"}`)
	mac := hmac.New(sha256.New, []byte("hmac-secret"))
	mac.Write(body)
	goodSig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	tests := []struct {
		name       string
		signature  string
		wantStatus int
	}{
		{"valid signature", goodSig, http.StatusOK},
		{"missing signature", "", http.StatusUnauthorized},
		{"tampered signature", "sha256=" + strings.Repeat("0", 64), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/github", bytes.NewReader(body))
			if err != nil {
				t.Fatalf("new request: %v", err)
			}
			if tt.signature != "" {
				req.Header.Set("X-Signature-256", tt.signature)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			_ = resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestWebhookDispatcher_Sources(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, nil)
	g.dispatcher.Register("telegram", &recordingHandler{})
	g.dispatcher.Register("github", &recordingHandler{})

	got := g.dispatcher.Sources()
	if len(got) != 2 || got[0] != "github" || got[1] != "telegram" {
		t.Errorf("Sources() = %v, want sorted [github telegram]", got)
	}
}
