package telegram

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avass/gemgram/internal/channel"
)

// apiCall records one request received by the fake Bot API.
type apiCall struct {
	Method  string
	Payload json.RawMessage
}

// fakeBotAPI is an httptest-backed stand-in for api.telegram.org. Methods
// without an explicit handler get a sensible default response.
type fakeBotAPI struct {
	t   *testing.T
	srv *httptest.Server

	mu        sync.Mutex
	calls     []apiCall
	handlers  map[string]func(payload json.RawMessage) (any, *APIError)
	nextMsgID int
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	t.Helper()
	f := &fakeBotAPI{
		t:         t,
		handlers:  make(map[string]func(json.RawMessage) (any, *APIError)),
		nextMsgID: 100,
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndexByte(r.URL.Path, '/')+1:]
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Payload: body})
	handler := f.handlers[method]
	f.mu.Unlock()

	var result any
	var apiErr *APIError
	if handler != nil {
		result, apiErr = handler(body)
	} else {
		result = f.defaultResult(method)
	}

	w.Header().Set("Content-Type", "application/json")
	if apiErr != nil {
		status := apiErr.Code
		if status < 400 || status > 599 {
			status = http.StatusBadRequest
		}
		w.WriteHeader(status)
		resp := map[string]any{
			"ok":          false,
			"error_code":  apiErr.Code,
			"description": apiErr.Description,
		}
		if apiErr.RetryAfter > 0 {
			resp["parameters"] = map[string]any{"retry_after": apiErr.RetryAfter}
		}
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func (f *fakeBotAPI) defaultResult(method string) any {
	switch method {
	case "getMe":
		return User{ID: 42, IsBot: true, FirstName: "Gem", Username: "gemgram_bot"}
	case "sendMessage", "editMessageText":
		f.mu.Lock()
		f.nextMsgID++
		id := f.nextMsgID
		f.mu.Unlock()
		return Message{MessageID: id, Chat: Chat{ID: 1}}
	case "getUpdates":
		return []Update{}
	default:
		return true
	}
}

// handle installs a handler for a method. Return a non-nil *APIError to make
// the call fail.
func (f *fakeBotAPI) handle(method string, fn func(payload json.RawMessage) (any, *APIError)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = fn
}

// callsTo returns the recorded payloads for a method, in order.
func (f *fakeBotAPI) callsTo(method string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []json.RawMessage
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c.Payload)
		}
	}
	return out
}

func (f *fakeBotAPI) callCount(method string) int {
	return len(f.callsTo(method))
}

// newTestTelegram returns a provisioned channel wired to the fake API.
func newTestTelegram(t *testing.T, api *fakeBotAPI, mutate func(*Config)) *Telegram {
	t.Helper()

	cfg := Config{
		Token:               "test-token",
		BaseURL:             api.srv.URL,
		AllowedUsers:        []string{"alice"},
		StreamFlushInterval: 20 * time.Millisecond,
		StreamSizeThreshold: 96,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	cfg.applyDefaults()

	return &Telegram{
		config:    cfg,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		client:    NewClient(cfg.resolveToken(), cfg.BaseURL),
		allowList: channel.NewAllowList(cfg.AllowedUsers, cfg.AllowedGroups),
	}
}

// decodePayload unmarshals a recorded payload into T.
func decodePayload[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return v
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
