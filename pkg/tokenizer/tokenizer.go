// Package tokenizer estimates prompt sizes and packs text into token budgets.
package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// EstimateTokens provides a rough token count estimate.
// It blends a word-based estimate (~1.3 tokens per word) with a
// character-based one (~4 characters per token).
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	chars := utf8.RuneCountInString(text)

	wordEstimate := int(float64(words) * 1.3)
	charEstimate := chars / 4

	n := (wordEstimate + charEstimate) / 2
	if n == 0 {
		n = 1
	}
	return n
}

// FitCount returns how many leading items fit in budget, charging overhead
// tokens per item for separators or markup. Items are never split.
func FitCount(items []string, budget, overhead int) int {
	used := 0
	for i, it := range items {
		cost := EstimateTokens(it) + overhead
		if used+cost > budget {
			return i
		}
		used += cost
	}
	return len(items)
}

// Truncate shortens text to about budget tokens, cutting at a word boundary
// and appending "..." when anything was removed.
func Truncate(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if EstimateTokens(text) <= budget {
		return text
	}

	maxRunes := budget * 4
	runes := []rune(text)
	if maxRunes >= len(runes) {
		return text
	}

	truncated := string(runes[:maxRunes])
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > len(truncated)/2 {
		truncated = truncated[:lastSpace]
	}
	return truncated + "..."
}
