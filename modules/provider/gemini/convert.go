package gemini

import (
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/avass/gemgram/internal/provider"
)

// Gemini role names. The API calls the assistant side "model".
const (
	roleUser  = "user"
	roleModel = "model"
)

// systemInstruction concatenates all system messages into one instruction
// block; the Generative Language API takes it separately from the chat turns.
func systemInstruction(msgs []provider.LLMMessage) string {
	var parts []string
	for _, m := range msgs {
		if m.Role == provider.MessageRoleSystem && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// splitConversation converts the message list into chat history plus the
// final user prompt, skipping system messages (handled separately). The API
// requires the prompt to be sent apart from the history.
func splitConversation(msgs []provider.LLMMessage) (history []*genai.Content, prompt string) {
	// Locate the trailing user message; everything before it is history.
	last := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == provider.MessageRoleUser {
			last = i
			break
		}
	}
	if last == -1 {
		return nil, ""
	}
	prompt = msgs[last].Content

	for _, m := range msgs[:last] {
		var role string
		switch m.Role {
		case provider.MessageRoleUser:
			role = roleUser
		case provider.MessageRoleAssistant:
			role = roleModel
		default:
			continue
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	return history, prompt
}

// extractText flattens the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}

// mapFinishReason translates the API finish reason to the internal taxonomy.
func mapFinishReason(resp *genai.GenerateContentResponse) provider.FinishReason {
	if resp == nil || len(resp.Candidates) == 0 {
		return provider.FinishReasonStop
	}
	switch resp.Candidates[0].FinishReason {
	case genai.FinishReasonMaxTokens:
		return provider.FinishReasonLength
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonStop
	}
}

// usageFrom converts the API usage metadata, when present.
func usageFrom(resp *genai.GenerateContentResponse) provider.TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return provider.TokenUsage{}
	}
	return provider.TokenUsage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}

// convertResponse builds the full completion response.
func convertResponse(resp *genai.GenerateContentResponse) provider.CompletionResponse {
	return provider.CompletionResponse{
		Content:      extractText(resp),
		FinishReason: mapFinishReason(resp),
		Usage:        usageFrom(resp),
	}
}
