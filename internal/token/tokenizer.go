// Package token implements request token accounting.
//
// Counts follow the provider's chat accounting convention: a fixed
// per-message overhead plus the BPE token length of the content, with a
// fixed terminator for the list as a whole. The encoding is cl100k_base
// regardless of the selected model; per-model encodings have not been worth
// the extra accuracy so far.
package token

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts model-vocabulary tokens in raw text.
type Tokenizer interface {
	Count(text string) int
}

// BPETokenizer counts tokens with a tiktoken BPE encoding.
type BPETokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewBPETokenizer loads the named tiktoken encoding (e.g. "cl100k_base").
func NewBPETokenizer(encoding string) (*BPETokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &BPETokenizer{enc: enc}, nil
}

// Count returns the number of BPE tokens in text.
func (t *BPETokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// EstimateTokenizer approximates token counts without a vocabulary, blending
// word and character estimates (~4 chars per token). Used when the BPE data
// is unavailable; close enough for budget trimming, not for billing.
type EstimateTokenizer struct{}

// Count returns the blended estimate for text.
func (EstimateTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	chars := len(text)
	return (words + chars/4) / 2
}
