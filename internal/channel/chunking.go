package channel

import (
	"strings"
	"unicode/utf8"

	"github.com/avass/gemgram/pkg/message"
)

// ChunkConfig controls how outbound messages are split when they exceed
// a platform's maximum message length.
type ChunkConfig struct {
	// MaxLength is the maximum number of bytes per chunk.
	// A value <= 0 means no splitting.
	MaxLength int

	// PreserveBlocks avoids splitting inside fenced code blocks (``` ... ```).
	// When true, a code block that fits within MaxLength is kept intact even
	// if it would otherwise be split at a line boundary.
	PreserveBlocks bool
}

// SplitMessage splits an outbound message into multiple messages that each
// respect cfg.MaxLength. If the message already fits, a single-element slice
// is returned.
func SplitMessage(msg message.OutboundMessage, cfg ChunkConfig) []message.OutboundMessage {
	if cfg.MaxLength <= 0 || len(msg.Text) <= cfg.MaxLength {
		return []message.OutboundMessage{msg}
	}

	chunks := splitText(msg.Text, cfg)

	result := make([]message.OutboundMessage, 0, len(chunks))
	for i, chunk := range chunks {
		out := message.OutboundMessage{
			Channel: msg.Channel,
			Chat:    msg.Chat,
			Text:    chunk,
			Hints:   msg.Hints,
		}
		// Only the first chunk replies to the original message; followups
		// read as a continuation.
		if i == 0 {
			out.ReplyToID = msg.ReplyToID
		}
		result = append(result, out)
	}

	return result
}

// splitText breaks text into chunks of at most MaxLength bytes. Lines are the
// preferred split points; fenced code blocks that fit within the limit are
// kept atomic when PreserveBlocks is set. No chunk ever exceeds MaxLength:
// oversized blocks and lines are force-split.
func splitText(text string, cfg ChunkConfig) []string {
	segments := segmentText(text, cfg)

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
			current.Reset()
		}
	}

	for _, seg := range segments {
		if current.Len()+len(seg) > cfg.MaxLength {
			flush()
		}
		if len(seg) > cfg.MaxLength {
			chunks = append(chunks, forceSplit(strings.TrimRight(seg, "\n"), cfg.MaxLength)...)
			continue
		}
		current.WriteString(seg)
	}
	flush()

	return chunks
}

// segmentText splits text into newline-terminated segments. With
// PreserveBlocks, a fenced code block small enough to fit in one chunk
// becomes a single atomic segment; blocks that can never fit (and unclosed
// fences) degrade to per-line segments and split like plain text.
func segmentText(text string, cfg ChunkConfig) []string {
	lines := strings.Split(text, "\n")
	segments := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !cfg.PreserveBlocks || !isFence(line) {
			segments = append(segments, line+"\n")
			continue
		}

		var block strings.Builder
		block.WriteString(line + "\n")
		end := -1
		for j := i + 1; j < len(lines); j++ {
			block.WriteString(lines[j] + "\n")
			if isFence(lines[j]) {
				end = j
				break
			}
		}

		if end >= 0 && block.Len() <= cfg.MaxLength {
			segments = append(segments, block.String())
			i = end
			continue
		}
		segments = append(segments, line+"\n")
	}

	return segments
}

func isFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}

// forceSplit breaks a single long line into chunks of at most maxLen bytes,
// never cutting through a multi-byte rune.
func forceSplit(line string, maxLen int) []string {
	var parts []string
	for len(line) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if cut == 0 {
			// maxLen is smaller than a single rune; a byte split is the
			// only option left.
			cut = maxLen
		}
		parts = append(parts, line[:cut])
		line = line[cut:]
	}
	if len(line) > 0 {
		parts = append(parts, line)
	}
	return parts
}
