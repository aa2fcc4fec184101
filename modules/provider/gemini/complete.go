package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"

	"github.com/avass/gemgram/internal/provider"
)

// Complete sends a synchronous generation request.
func (g *Gemini) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	model := g.model(req)
	history, prompt := splitConversation(req.Messages)
	if prompt == "" {
		return provider.CompletionResponse{}, fmt.Errorf("provider.gemini: request has no user message")
	}

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return provider.CompletionResponse{}, mapError(err)
	}
	if blockedResponse(resp) {
		return provider.CompletionResponse{}, fmt.Errorf("%w: prompt blocked (%s)",
			provider.ErrSafetyBlocked, resp.PromptFeedback.BlockReason)
	}

	return convertResponse(resp), nil
}
