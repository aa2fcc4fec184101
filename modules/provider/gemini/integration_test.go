//go:build integration

package gemini

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/avass/gemgram/internal/core"
	"github.com/avass/gemgram/internal/provider"
)

// Integration tests require GEMINI_API_KEY to be set.
// Run with: go test -tags=integration ./modules/provider/gemini/...

func integrationProvider(t *testing.T) *Gemini {
	t.Helper()
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set")
	}

	g := &Gemini{}
	g.config.defaults()
	ctx := core.NewAppContext(slog.New(slog.NewTextHandler(io.Discard, nil)), t.TempDir())
	if err := g.Provision(ctx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	t.Cleanup(func() { _ = g.Stop(context.Background()) })
	return g
}

func TestIntegration_Complete(t *testing.T) {
	g := integrationProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := g.Complete(ctx, provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleUser, Content: "Say 'hello' and nothing else."},
		},
		MaxTokens: 32,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if !strings.Contains(strings.ToLower(resp.Content), "hello") {
		t.Errorf("expected content containing 'hello', got %q", resp.Content)
	}
	if resp.Usage.TotalTokens == 0 {
		t.Error("expected non-zero token usage")
	}
}

func TestIntegration_Stream(t *testing.T) {
	g := integrationProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ch, err := g.Stream(ctx, provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleUser, Content: "Count from 1 to 5, one number per line."},
		},
		MaxTokens: 64,
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var content strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("mid-stream error: %v", chunk.Err)
		}
		content.WriteString(chunk.Content)
	}
	if !strings.Contains(content.String(), "3") {
		t.Errorf("unexpected streamed content: %q", content.String())
	}
}
