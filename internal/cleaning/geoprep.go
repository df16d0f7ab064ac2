package cleaning

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

const maxCountedSentences = 100

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s"'<>（）()，。]+`)
	numberPattern = regexp.MustCompile(`\d`)
)

// ComputeGeoFeatures derives the per-record features the brand scoring
// relies on. brand is the record's own task brand; allBrands is every brand
// in the execution (main first) and determines rank and interception.
func ComputeGeoFeatures(text, brand string, allBrands []string, mentions []types.EntityMention) *types.GeoFeatures {
	// URLs are cited sources, not prose: blank them before any scan that
	// counts letters, sentences or brand occurrences.
	prose := maskURLs(text)

	feats := &types.GeoFeatures{
		Length:        len([]rune(text)),
		SentenceCount: countSentences(prose),
		Language:      detectLanguage(prose),
		HasNumbers:    numberPattern.MatchString(text),
	}

	if urls := urlPattern.FindAllString(text, -1); len(urls) > 0 {
		feats.HasURLs = true
		feats.CitedSources = dedupStrings(urls)
	}

	feats.Sentiment, feats.SentimentValid = ScoreSentiment(text)

	firstOffsets := firstOccurrences(prose, allBrands)
	if off, ok := firstOffsets[strings.ToLower(brand)]; ok {
		feats.BrandMentioned = true
		feats.BrandRank = rankOf(off, firstOffsets)
		for _, m := range mentions {
			if strings.EqualFold(m.Name, brand) {
				feats.MentionPositions = append(feats.MentionPositions, m.Offset)
			}
		}
	}

	feats.CompetitorIntercepted = intercepted(brand, allBrands, firstOffsets)
	return feats
}

// maskURLs replaces every URL span with spaces, one per rune, so offsets
// into the masked text still line up with the original.
func maskURLs(text string) string {
	return urlPattern.ReplaceAllStringFunc(text, func(m string) string {
		return strings.Repeat(" ", utf8.RuneCountInString(m))
	})
}

// firstOccurrences maps each present brand (lowercased) to the rune offset
// of its first occurrence.
func firstOccurrences(text string, brands []string) map[string]int {
	lower := strings.ToLower(text)
	out := make(map[string]int, len(brands))
	for _, b := range brands {
		lb := strings.ToLower(b)
		if lb == "" {
			continue
		}
		if idx := strings.Index(lower, lb); idx >= 0 {
			// Convert the byte offset to runes so it lines up with mention offsets.
			out[lb] = len([]rune(lower[:idx]))
		}
	}
	return out
}

// rankOf is the 1-based position of offset among all first occurrences.
func rankOf(offset int, firstOffsets map[string]int) int {
	rank := 1
	for _, other := range firstOffsets {
		if other < offset {
			rank++
		}
	}
	return rank
}

// intercepted reports whether another brand beat this record's brand: some
// other brand appears first, or the brand is absent while any other brand
// is present.
func intercepted(brand string, allBrands []string, firstOffsets map[string]int) bool {
	lb := strings.ToLower(brand)
	own, present := firstOffsets[lb]
	for _, other := range allBrands {
		lo := strings.ToLower(other)
		if lo == lb {
			continue
		}
		off, ok := firstOffsets[lo]
		if !ok {
			continue
		}
		if !present || off < own {
			return true
		}
	}
	return false
}

func countSentences(text string) int {
	if text == "" {
		return 0
	}
	count := 0
	for _, r := range text {
		switch r {
		case '.', '!', '?', '。', '！', '？', ';', '；':
			count++
			if count >= maxCountedSentences {
				return maxCountedSentences
			}
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

// detectLanguage classifies by script share: "zh" when a meaningful share
// of letters is Han, "en" when mostly Latin, otherwise "unknown".
func detectLanguage(text string) string {
	var han, latin, letters int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.Is(unicode.Han, r):
			han++
		case r < 128:
			latin++
		}
	}
	if letters == 0 {
		return "unknown"
	}
	switch {
	case float64(han)/float64(letters) >= 0.3:
		return "zh"
	case float64(latin)/float64(letters) >= 0.5:
		return "en"
	default:
		return "unknown"
	}
}

func dedupStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimRight(s, ".,;:)]}>")
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
