// Package payload generates the candidate URL payloads fed to the search
// queue. Each payload is a base URL followed by a random slug, so the search
// space is effectively infinite.
package payload

import (
	"math/rand"
	"time"
)

const slugCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generator produces random URL payloads. It is not safe for concurrent use;
// the scheduler owns one and calls it only from its own goroutine.
type Generator struct {
	base   string
	length int
	rng    *rand.Rand
}

// NewGenerator creates a generator producing base + "/" + <length random
// characters>. A zero or negative length defaults to 12.
func NewGenerator(base string, length int) *Generator {
	if length <= 0 {
		length = 12
	}
	return &Generator{
		base:   base,
		length: length,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next random payload.
func (g *Generator) Next() string {
	buf := make([]byte, g.length)
	for i := range buf {
		buf[i] = slugCharset[g.rng.Intn(len(slugCharset))]
	}
	if g.base == "" {
		return string(buf)
	}
	return g.base + "/" + string(buf)
}
