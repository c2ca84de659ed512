// Package tokenizer wraps the cl100k_base byte-pair encoding used for all
// token accounting: section splitting, context budgets, and separator costs.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Encoding is the fixed BPE vocabulary. It matches the embedding model's
// tokenization, which is what the section token counts must agree with.
const Encoding = "cl100k_base"

// Tokenizer counts and encodes text deterministically. Safe for concurrent
// use; the underlying encoding is immutable after construction.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New loads the cl100k_base encoding.
func New() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(Encoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", Encoding, err)
	}
	return &Tokenizer{enc: enc}, nil
}

// Count returns the number of model tokens in text.
func (t *Tokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Encode returns the token ids for text.
func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}
