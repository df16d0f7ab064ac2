package cleaning

import (
	"strings"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

// mentionContextRunes is how much surrounding text each mention carries.
const mentionContextRunes = 30

// ExtractMentions finds every case-insensitive occurrence of the configured
// brands in text. URL spans are skipped: a brand inside a link is a citation,
// not a mention. Offsets are rune offsets into the cleaned text; Context
// carries ±30 runes around the match for report drill-down.
func ExtractMentions(text, mainBrand string, competitors []string) []types.EntityMention {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	lower := strings.ToLower(maskURLs(text))
	lowerRunes := []rune(lower)

	var mentions []types.EntityMention
	appendBrand := func(name string, isCompetitor bool) {
		needle := []rune(strings.ToLower(name))
		if len(needle) == 0 {
			return
		}
		for i := 0; i+len(needle) <= len(lowerRunes); i++ {
			if !runesEqual(lowerRunes[i:i+len(needle)], needle) {
				continue
			}
			mentions = append(mentions, types.EntityMention{
				Name:         name,
				IsCompetitor: isCompetitor,
				Offset:       i,
				Context:      contextAround(runes, i, len(needle)),
			})
			i += len(needle) - 1
		}
	}

	appendBrand(mainBrand, false)
	for _, c := range competitors {
		appendBrand(c, true)
	}
	return mentions
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func contextAround(runes []rune, offset, length int) string {
	start := offset - mentionContextRunes
	if start < 0 {
		start = 0
	}
	end := offset + length + mentionContextRunes
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start:end])
}
