package cleaning

import (
	"fmt"
	"html"
	"strings"
	"unicode"
)

// ExtractText normalizes a raw model response into plain text: HTML tags
// stripped, entities unescaped, whitespace collapsed, over-long input
// truncated. It never fails; problems surface as warnings so a bad response
// still flows through the pipeline as data.
func ExtractText(raw string, limits Limits) (string, []string) {
	var warnings []string

	text := stripHTML(raw)
	text = html.UnescapeString(text)
	text = collapseWhitespace(text)

	if runes := []rune(text); limits.TruncateAt > 0 && len(runes) > limits.TruncateAt {
		text = string(runes[:limits.TruncateAt])
		warnings = append(warnings, fmt.Sprintf("text truncated to %d runes", limits.TruncateAt))
	}
	if n := len([]rune(text)); n < limits.WarnBelow {
		warnings = append(warnings, fmt.Sprintf("text is only %d runes", n))
	}
	return text, warnings
}

// stripHTML removes tag-like spans. A '<' with no closing '>' is kept
// verbatim, so math like "a < b" survives.
func stripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '<' {
			if end := strings.IndexByte(s[i:], '>'); end >= 0 {
				// Block-level tags become a space so words don't glue together.
				b.WriteByte(' ')
				i += end + 1
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// collapseWhitespace trims the text and folds runs of whitespace into a
// single space, keeping single newlines so paragraph structure survives for
// sentence counting.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	lastNewline := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if r == '\n' {
				lastNewline = true
			}
			lastSpace = true
			continue
		}
		if lastSpace && b.Len() > 0 {
			if lastNewline {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		lastSpace = false
		lastNewline = false
		b.WriteRune(r)
	}
	return b.String()
}
