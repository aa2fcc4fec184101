package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"

	"github.com/avass/gemgram/internal/provider"
)

// mapError converts a Generative Language API error into the appropriate
// provider sentinel. Non-API errors pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	// Context errors surface directly so callers do not misclassify a
	// cancelled turn as a provider outage.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("%w: %s", provider.ErrSafetyBlocked, blocked.Error())
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.Code {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, apiErr.Message)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", provider.ErrProviderDown, apiErr.Message)
	case http.StatusBadRequest:
		if isContextLengthError(apiErr) {
			return fmt.Errorf("%w: %s", provider.ErrContextLength, apiErr.Message)
		}
		return fmt.Errorf("gemini bad request: %w", err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("gemini auth error (HTTP %d): %w", apiErr.Code, err)
	default:
		return fmt.Errorf("gemini error (HTTP %d): %w", apiErr.Code, err)
	}
}

// isContextLengthError checks whether a 400 is specifically about exceeding
// the model's input token limit.
func isContextLengthError(apiErr *googleapi.Error) bool {
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "token") &&
		(strings.Contains(msg, "exceed") || strings.Contains(msg, "too long") ||
			strings.Contains(msg, "limit"))
}

// blockedResponse reports whether the prompt itself was rejected by the
// safety filters (delivered on the response rather than as an error).
func blockedResponse(resp *genai.GenerateContentResponse) bool {
	return resp != nil && resp.PromptFeedback != nil &&
		resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified
}
