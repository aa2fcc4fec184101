package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"

	"github.com/avass/gemgram/internal/provider"
)

// streamBufferSize matches the relay's fragment channel buffer.
const streamBufferSize = 16

// Stream sends a streaming generation request and returns a channel of
// chunks. The first response is consumed synchronously so that connection
// and auth failures are returned directly instead of arriving mid-stream;
// later errors are delivered via StreamChunk.Err. The channel is closed
// when the stream ends.
func (g *Gemini) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	model := g.model(req)
	history, prompt := splitConversation(req.Messages)
	if prompt == "" {
		return nil, fmt.Errorf("provider.gemini: request has no user message")
	}

	session := model.StartChat()
	session.History = history

	iter := session.SendMessageStream(ctx, genai.Text(prompt))

	first, err := iter.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) {
			ch := make(chan provider.StreamChunk)
			close(ch)
			return ch, nil
		}
		return nil, mapError(err)
	}
	if blockedResponse(first) {
		return nil, fmt.Errorf("%w: prompt blocked (%s)",
			provider.ErrSafetyBlocked, first.PromptFeedback.BlockReason)
	}

	ch := make(chan provider.StreamChunk, streamBufferSize)

	go func() {
		defer close(ch)

		resp := first
		for {
			if !emitResponse(ctx, ch, resp) {
				return
			}

			resp, err = iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				emit(ctx, ch, provider.StreamChunk{Err: mapError(err)})
				return
			}
		}
	}()

	return ch, nil
}

// emitResponse converts one streamed response into chunks. The usage and
// finish reason ride on the last response that carries them.
func emitResponse(ctx context.Context, ch chan<- provider.StreamChunk, resp *genai.GenerateContentResponse) bool {
	chunk := provider.StreamChunk{Content: extractText(resp)}

	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
		chunk.FinishReason = mapFinishReason(resp)
	}
	if resp.UsageMetadata != nil {
		u := usageFrom(resp)
		chunk.Usage = &u
	}

	if chunk.Content == "" && chunk.FinishReason == "" && chunk.Usage == nil {
		return true
	}
	return emit(ctx, ch, chunk)
}

// emit sends a chunk unless the context is done. Returns false when the
// consumer has gone away.
func emit(ctx context.Context, ch chan<- provider.StreamChunk, chunk provider.StreamChunk) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- chunk:
		return true
	}
}
