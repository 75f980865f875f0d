// Package tokencount estimates token usage for prompt budgeting and
// analytics when the provider does not report usage itself.
package tokencount

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates the token count of a text.
type Counter interface {
	Count(text string) int
}

// Heuristic approximates tokens as 4 characters each.
type Heuristic struct{}

func (Heuristic) Count(text string) int {
	return (len(text) + 3) / 4
}

// Tiktoken counts tokens with a real BPE encoding, falling back to the
// heuristic if the encoding cannot be initialised (e.g. no network access
// to fetch the vocabulary).
type Tiktoken struct {
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTiktoken creates a Counter backed by the named encoding
// ("cl100k_base" covers current chat models). Initialisation is lazy.
func NewTiktoken(encoding string) *Tiktoken {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &Tiktoken{encoding: encoding}
}

func (t *Tiktoken) Count(text string) int {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			slog.Warn("tiktoken encoding unavailable, using heuristic", "encoding", t.encoding, "error", err)
			return
		}
		t.enc = enc
	})

	if t.enc == nil {
		return Heuristic{}.Count(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}
