// Package usage handles token counting and daily usage accounting.
package usage

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// CountTokens counts tokens in text with the fixed cl100k_base tokenizer.
// Used when a provider reports no usage of its own, and for the note corpus
// budget. Falls back to a chars/4 estimate if the encoding is unavailable
// (for example, offline with a cold BPE cache).
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	if enc == nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
