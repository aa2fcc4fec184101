// Package gemini implements the provider.gemini module, bridging gemgram
// to the Google Generative Language API for completions and streaming.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"

	"github.com/avass/gemgram/internal/core"
	"github.com/avass/gemgram/internal/provider"
)

func init() {
	core.RegisterModule(&Gemini{})
}

// Interface guards.
var (
	_ core.Module       = (*Gemini)(nil)
	_ core.Configurable = (*Gemini)(nil)
	_ core.Provisioner  = (*Gemini)(nil)
	_ core.Validator    = (*Gemini)(nil)
	_ core.Stopper      = (*Gemini)(nil)
	_ provider.Provider = (*Gemini)(nil)
)

// Gemini is the provider.gemini module. It implements provider.Provider
// on top of the official Generative Language SDK.
type Gemini struct {
	config        Config
	client        *genai.Client
	logger        *slog.Logger
	contextWindow int
}

// ModuleInfo implements core.Module.
func (g *Gemini) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.gemini",
		New: func() core.Module { return &Gemini{} },
	}
}

// Configure implements core.Configurable.
func (g *Gemini) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gemini) Provision(ctx *core.AppContext) error {
	g.logger = ctx.Logger

	apiKey := g.config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(g.config.APIKeyEnv)
	}
	if apiKey == "" {
		return fmt.Errorf("provider.gemini: api key missing (set api_key or %s)", g.config.APIKeyEnv)
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return fmt.Errorf("provider.gemini: create client: %w", err)
	}
	g.client = client

	g.contextWindow = g.config.contextWindowForModel()
	if g.config.ContextWindow == 0 {
		g.logger.Info("resolved context window from model name",
			"model", g.config.Model,
			"context_window", g.contextWindow,
		)
	}

	return nil
}

// Validate implements core.Validator.
func (g *Gemini) Validate() error {
	if g.config.Model == "" {
		return errors.New("provider.gemini: model must not be empty")
	}
	if g.client == nil {
		return errors.New("provider.gemini: client not initialized (Provision not called)")
	}
	return nil
}

// Stop implements core.Stopper.
func (g *Gemini) Stop(context.Context) error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// ContextWindowSize implements provider.Provider.
func (g *Gemini) ContextWindowSize() int {
	return g.contextWindow
}

// ModelName implements provider.Provider.
func (g *Gemini) ModelName() string {
	return g.config.Model
}

// model builds a request-scoped GenerativeModel with the configured
// generation settings applied.
func (g *Gemini) model(req provider.CompletionRequest) *genai.GenerativeModel {
	m := g.client.GenerativeModel(g.config.Model)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}
	m.SetMaxOutputTokens(int32(maxTokens))

	switch {
	case req.Temperature != nil:
		m.SetTemperature(float32(*req.Temperature))
	case g.config.Temperature != nil:
		m.SetTemperature(float32(*g.config.Temperature))
	}
	if req.TopP != nil {
		m.SetTopP(float32(*req.TopP))
	}
	if len(req.Stop) > 0 {
		m.StopSequences = req.Stop
	}

	if sys := systemInstruction(req.Messages); sys != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(sys)}}
	}

	return m
}
