// Package token provides optional token counting for packaged text files.
package token

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used for counting.
const DefaultEncoding = "cl100k_base"

// Counter counts model tokens in a text payload.
type Counter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken returns a Counter backed by the cl100k_base encoding. Callers
// disable token counting when initialization fails; a missing encoding must
// never fail a packaging run.
func NewTiktoken() (Counter, error) {
	enc, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", DefaultEncoding, err)
	}
	return &tiktokenCounter{enc: enc}, nil
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
