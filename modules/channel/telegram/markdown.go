package telegram

import "strings"

// markdownV2Escaper escapes every character with special meaning in
// Telegram MarkdownV2. Used for intermediate streaming edits where the
// text may end mid-construct and partial formatting would fail to parse.
var markdownV2Escaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
	"\\", "\\\\",
)

// EscapeMarkdownV2 escapes all MarkdownV2 special characters so the text
// renders literally.
func EscapeMarkdownV2(s string) string {
	return markdownV2Escaper.Replace(s)
}

// escapeCodeContent escapes only the characters that are special inside
// a MarkdownV2 code span or pre block.
func escapeCodeContent(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "`", "\\`")
}

// FormatMarkdownV2 converts common Markdown constructs (bold, italic,
// inline code, fenced code blocks, links) into valid MarkdownV2,
// escaping everything else. Unbalanced markers are escaped literally.
func FormatMarkdownV2(text string) string {
	var out strings.Builder
	out.Grow(len(text) + len(text)/4)

	lines := strings.Split(text, "\n")
	inFence := false

	for i, line := range lines {
		if i > 0 {
			out.WriteByte('\n')
		}

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				out.WriteString("```")
				inFence = false
			} else {
				// Language tag after the fence passes through unescaped.
				out.WriteString("```")
				out.WriteString(strings.TrimPrefix(trimmed, "```"))
				inFence = true
			}
			continue
		}

		if inFence {
			out.WriteString(escapeCodeContent(line))
			continue
		}

		out.WriteString(formatLine(line))
	}

	// A response terminated mid-block must still parse.
	if inFence {
		out.WriteString("\n```")
	}

	return out.String()
}

// formatLine converts inline constructs within a single line.
func formatLine(line string) string {
	var out strings.Builder
	out.Grow(len(line) + len(line)/4)

	i := 0
	for i < len(line) {
		switch {
		case strings.HasPrefix(line[i:], "**"):
			if end := findDoubleClosing(line[i+2:], "**"); end >= 0 {
				out.WriteByte('*')
				out.WriteString(EscapeMarkdownV2(line[i+2 : i+2+end]))
				out.WriteByte('*')
				i += 2 + end + 2
				continue
			}
			out.WriteString("\\*\\*")
			i += 2

		case line[i] == '`':
			if end := findClosing(line[i+1:], '`'); end >= 0 {
				out.WriteByte('`')
				out.WriteString(escapeCodeContent(line[i+1 : i+1+end]))
				out.WriteByte('`')
				i += 1 + end + 1
				continue
			}
			out.WriteString("\\`")
			i++

		case line[i] == '*':
			if end := findClosing(line[i+1:], '*'); end >= 0 {
				out.WriteByte('_')
				out.WriteString(EscapeMarkdownV2(line[i+1 : i+1+end]))
				out.WriteByte('_')
				i += 1 + end + 1
				continue
			}
			out.WriteString("\\*")
			i++

		case line[i] == '[':
			if label, url, consumed, ok := parseLink(line[i:]); ok {
				out.WriteByte('[')
				out.WriteString(EscapeMarkdownV2(label))
				out.WriteString("](")
				out.WriteString(escapeLinkURL(url))
				out.WriteByte(')')
				i += consumed
				continue
			}
			out.WriteString("\\[")
			i++

		default:
			out.WriteString(EscapeMarkdownV2(string(line[i])))
			i++
		}
	}

	return out.String()
}

// parseLink attempts to parse a [label](url) construct at the start of s.
func parseLink(s string) (label, url string, consumed int, ok bool) {
	closeBracket := strings.IndexByte(s, ']')
	if closeBracket < 0 || closeBracket+1 >= len(s) || s[closeBracket+1] != '(' {
		return "", "", 0, false
	}
	closeParen := strings.IndexByte(s[closeBracket+2:], ')')
	if closeParen < 0 {
		return "", "", 0, false
	}
	label = s[1:closeBracket]
	url = s[closeBracket+2 : closeBracket+2+closeParen]
	return label, url, closeBracket + 2 + closeParen + 1, true
}

// escapeLinkURL escapes the characters that are special inside a
// MarkdownV2 link target.
func escapeLinkURL(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, ")", "\\)")
}

// findClosing returns the index of the next unescaped occurrence of c,
// or -1 when none exists before the end of the string.
func findClosing(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == c {
			return i
		}
	}
	return -1
}

// findDoubleClosing returns the index of the next occurrence of the
// two-byte marker, or -1.
func findDoubleClosing(s, marker string) int {
	return strings.Index(s, marker)
}
