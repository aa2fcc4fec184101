package telegram

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
)

// secretTokenHeader carries the value configured via setWebhook; Telegram
// echoes it on every delivery so the endpoint can reject forged requests.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// webhookSource is the gateway path segment updates are delivered to
// (POST /webhooks/telegram).
const webhookSource = "telegram"

// HandleWebhook implements the gateway webhook handler contract. It verifies
// the secret token and feeds the decoded update through the same path the
// poller uses.
func (t *Telegram) HandleWebhook(_ context.Context, _ string, body []byte, headers http.Header) error {
	got := headers.Get(secretTokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(t.config.WebhookSecret)) != 1 {
		return fmt.Errorf("telegram: webhook secret token mismatch")
	}

	var upd Update
	if err := json.Unmarshal(body, &upd); err != nil {
		return fmt.Errorf("telegram: decode webhook update: %w", err)
	}

	t.handleUpdate(upd)
	return nil
}

// registerWebhook installs the webhook with Telegram and hooks the channel
// into the gateway dispatcher.
func (t *Telegram) registerWebhook(ctx context.Context) error {
	if t.config.WebhookSecret == "" {
		secret, err := generateSecret()
		if err != nil {
			return fmt.Errorf("telegram: generate webhook secret: %w", err)
		}
		t.config.WebhookSecret = secret
	}

	if err := t.client.SetWebhook(ctx, SetWebhookRequest{
		URL:            t.config.WebhookURL,
		SecretToken:    t.config.WebhookSecret,
		AllowedUpdates: []string{"message"},
		MaxConnections: defaultWebhookMaxConns,
	}); err != nil {
		return fmt.Errorf("telegram: set webhook: %w", err)
	}

	// Secret verification happens in HandleWebhook via the Telegram-specific
	// header, so no HMAC secret is passed to the dispatcher.
	t.webhooks.Register(webhookSource, t)
	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
