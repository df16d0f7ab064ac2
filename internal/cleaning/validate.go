package cleaning

import "unicode"

// ValidateText returns the blocking issues of a cleaned text. A record with
// issues is kept but marked invalid so the aggregator can discount it.
func ValidateText(text string, limits Limits) []string {
	var issues []string
	if text == "" {
		issues = append(issues, "empty response")
		return issues
	}
	if limits.TruncateAt > 0 && len([]rune(text)) > limits.TruncateAt {
		issues = append(issues, "text exceeds hard length cap")
	}
	for _, r := range text {
		if r != '\n' && r != '\t' && unicode.IsControl(r) {
			issues = append(issues, "text contains control characters")
			break
		}
	}
	return issues
}
