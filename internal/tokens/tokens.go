// Package tokens provides prompt token accounting. Counts come from
// tiktoken when the encoding is available and fall back to a character
// heuristic otherwise; a count is informational (logged and recorded), it
// never gates a request.
package tokens

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// estimateCharsPerToken is the fallback ratio when no codec is available.
const estimateCharsPerToken = 4.0

// Counter counts tokens in prompt text.
type Counter struct {
	once  sync.Once
	codec tokenizer.Codec
}

// NewCounter creates a counter. The tokenizer codec is loaded lazily on
// first use.
func NewCounter() *Counter {
	return &Counter{}
}

// Count returns the token count for text and whether the value is an
// estimate rather than an exact tiktoken count.
func (c *Counter) Count(text string) (int, bool) {
	if text == "" {
		return 0, false
	}

	c.once.Do(func() {
		// Local models don't publish a tokenizer; cl100k_base is close
		// enough for accounting purposes.
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			c.codec = codec
		}
	})

	if c.codec == nil {
		return estimate(text), true
	}

	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return estimate(text), true
	}
	return len(ids), false
}

func estimate(text string) int {
	return int(float64(len(text)) / estimateCharsPerToken)
}
