// Package telegram implements the Telegram Bot API channel for gemgram.
//
// It provides a bidirectional bridge between Telegram and gemgram's
// platform-agnostic message model, supporting:
//
//   - Inbound text message conversion with UTF-16 entity handling
//   - Outbound dispatch with automatic chunking via channel.SplitMessage
//   - Two delivery modes: long-polling (default) and webhook
//   - Streaming responses that progressively edit a single message,
//     with MarkdownV2 escaping and a plain-text fallback
//   - Typing indicators via sendChatAction
//
// The module registers itself as "channel.telegram" via init() and implements
// the full module lifecycle: Configure → Provision → Validate → Start → Stop.
//
// No external Telegram library is used — the module communicates with the
// Bot API via raw net/http + encoding/json.
package telegram
