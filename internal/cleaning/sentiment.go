package cleaning

import "strings"

// Naive lexicon-based sentiment. Good enough to rank brands relative to
// each other inside one execution; not a general-purpose classifier.
var positiveWords = []string{
	// en
	"excellent", "great", "good", "best", "leading", "reliable", "recommended",
	"popular", "innovative", "trusted", "top", "strong", "outstanding",
	// zh
	"优秀", "出色", "领先", "推荐", "可靠", "知名", "热门", "创新", "强大", "好评",
	"优质", "出众", "值得",
}

var negativeWords = []string{
	// en
	"bad", "poor", "worst", "unreliable", "expensive", "slow", "outdated",
	"problematic", "disappointing", "weak", "limited",
	// zh
	"差", "糟糕", "落后", "不推荐", "昂贵", "缓慢", "过时", "失望", "缺陷", "问题",
	"差评", "不足",
}

// ScoreSentiment returns a sentiment in [-1, 1] and whether the score is
// meaningful. An empty text yields an invalid score; a text with no lexicon
// hits is valid neutral 0.
func ScoreSentiment(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	lower := strings.ToLower(text)

	var pos, neg int
	for _, w := range positiveWords {
		pos += strings.Count(lower, w)
	}
	for _, w := range negativeWords {
		neg += strings.Count(lower, w)
	}

	total := pos + neg
	if total == 0 {
		return 0, true
	}
	score := float64(pos-neg) / float64(total)
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score, true
}
