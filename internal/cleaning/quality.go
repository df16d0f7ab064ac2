package cleaning

import (
	"strings"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

// ScoreQuality computes the 0-100 quality score of one cleaned response:
// weighted length, analysis completeness, question relevance and a
// brand-mention bonus. Validation issues from the final pipeline step feed
// the completeness component. A non-truncated response inside the usable
// length range whose analysis fields are all present and whose brand is
// mentioned always scores at least 70.
func ScoreQuality(text, question string, feats *types.GeoFeatures, truncated bool, issues []string, opts Options) float64 {
	score := opts.Weights.Length*lengthScore(len([]rune(text)), opts.Limits) +
		opts.Weights.Completeness*completenessScore(feats, truncated, issues) +
		opts.Weights.Relevance*relevanceScore(text, question)
	if feats != nil && feats.BrandMentioned {
		score += opts.Weights.BrandBonus
	}
	return score * 100
}

// lengthScore is a triangular curve: 0 for empty, ramping to 0.5 at
// MinLength, peaking at 1.0 at IdealLength, falling back to 0.5 at
// MaxLength and flat beyond.
func lengthScore(n int, l Limits) float64 {
	switch {
	case n == 0:
		return 0
	case n < l.MinLength:
		return float64(n) / float64(l.MinLength) * 0.5
	case n <= l.IdealLength:
		return 0.5 + 0.5*float64(n-l.MinLength)/float64(l.IdealLength-l.MinLength)
	case n <= l.MaxLength:
		return 1.0 - 0.5*float64(n-l.IdealLength)/float64(l.MaxLength-l.IdealLength)
	default:
		return 0.5
	}
}

// completenessScore is the share of required analysis fields present on the
// record: extracted text, a valid sentiment, a recognized language and at
// least one sentence. Truncation halves the result and every validation
// issue costs a further quarter.
func completenessScore(feats *types.GeoFeatures, truncated bool, issues []string) float64 {
	if feats == nil || feats.Length == 0 {
		return 0
	}
	present := 0
	for _, ok := range []bool{
		feats.Length > 0,
		feats.SentimentValid,
		feats.Language != "unknown",
		feats.SentenceCount > 0,
	} {
		if ok {
			present++
		}
	}
	score := float64(present) / 4
	if truncated {
		score *= 0.5
	}
	score -= 0.25 * float64(len(issues))
	if score < 0 {
		score = 0
	}
	return score
}

// relevanceScore gives any non-empty response a 0.5 floor and the rest
// proportional to how many question keywords appear in the text.
func relevanceScore(text, question string) float64 {
	if text == "" {
		return 0
	}
	keywords := questionKeywords(question)
	if len(keywords) == 0 {
		return 1.0
	}
	lower := strings.ToLower(text)
	matched := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			matched++
		}
	}
	return 0.5 + 0.5*float64(matched)/float64(len(keywords))
}

// questionKeywords tokenizes the question template, skipping the brand
// placeholder and one-rune fragments.
func questionKeywords(question string) []string {
	cleaned := strings.NewReplacer("{", " ", "}", " ", "?", " ", "？", " ",
		",", " ", "，", " ", "。", " ", ".", " ").Replace(strings.ToLower(question))
	var out []string
	for _, f := range strings.Fields(cleaned) {
		if f == "brandname" || len([]rune(f)) < 2 {
			continue
		}
		out = append(out, f)
	}
	return out
}
