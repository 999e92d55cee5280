// Package contextmgr provides token counting and budget-aware truncation
// for text that flows back into model context.
package contextmgr

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts tokens with the GPT-4 encoding. All supported
// providers tokenize closely enough to it for budgeting purposes. A nil
// codec falls back to character-based estimation (4 chars per token).
type TokenCounter struct {
	codec tokenizer.Codec
}

var (
	defaultCounter     *TokenCounter
	defaultCounterOnce sync.Once
)

// NewTokenCounter creates a token counter. Codec construction failure is
// not fatal, the counter degrades to estimation.
func NewTokenCounter() *TokenCounter {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{codec: codec}
}

// Default returns the shared process-wide counter.
func Default() *TokenCounter {
	defaultCounterOnce.Do(func() {
		defaultCounter = NewTokenCounter()
	})
	return defaultCounter
}

// Count returns the number of tokens in text.
func (tc *TokenCounter) Count(text string) int {
	if tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// WithinLimit reports whether text fits in limit tokens.
func (tc *TokenCounter) WithinLimit(text string, limit int) bool {
	return tc.Count(text) <= limit
}

const elisionMarker = "\n... [output truncated] ...\n"

// Truncate cuts text down to roughly limit tokens, keeping the head and
// tail. Command output carries its signal at both ends (the invocation
// echo at the top, errors and final metrics at the bottom), so the middle
// is elided. Character-proportional, not exact to token boundaries.
func (tc *TokenCounter) Truncate(text string, limit int) string {
	currentTokens := tc.Count(text)
	if currentTokens <= limit {
		return text
	}

	ratio := float64(limit) / float64(currentTokens)
	charBudget := int(float64(len(text)) * ratio * 0.9)
	if charBudget >= len(text) || charBudget < len(elisionMarker) {
		return text
	}

	head := charBudget / 2
	tail := charBudget - head
	return text[:head] + elisionMarker + text[len(text)-tail:]
}
