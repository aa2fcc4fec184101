package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// poller fetches updates via long polling and hands them to the channel.
type poller struct {
	client  *Client
	logger  *slog.Logger
	timeout time.Duration
	limit   int
	handle  func(Update)

	offset int
}

// run polls getUpdates until the context is cancelled. Transient API
// failures back off exponentially up to 30 seconds.
func (p *poller) run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		updates, err := p.client.GetUpdates(ctx, GetUpdatesRequest{
			Offset:         p.offset,
			Limit:          p.limit,
			Timeout:        int(p.timeout.Seconds()),
			AllowedUpdates: []string{"message"},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			p.logger.Warn("getUpdates failed",
				slog.String("error", err.Error()),
				slog.Duration("backoff", backoff))

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, upd := range updates {
			// Confirm the update even when handling fails; Telegram
			// otherwise redelivers it forever.
			if upd.UpdateID >= p.offset {
				p.offset = upd.UpdateID + 1
			}
			p.handle(upd)
		}
	}
}
