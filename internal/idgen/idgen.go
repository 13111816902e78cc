// Package idgen produces Salesforce-style record IDs: a three-character key
// prefix followed by 15 characters drawn from [A-Z0-9].
package idgen

import (
	"math/rand/v2"
	"strings"
	"sync"
)

const (
	alphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLen = 15
)

// Well-known key prefixes.
const (
	PrefixAccount     = "001"
	PrefixContact     = "003"
	PrefixOpportunity = "006"
	PrefixLead        = "00Q"
	PrefixCase        = "500"
	PrefixJob         = "750"
	PrefixBatch       = "751"
)

// Generator produces record IDs from an injectable randomness source so tests
// can fix the sequence.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a Generator seeded from the system source.
func New() *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeeded returns a Generator with a fixed seed for deterministic output.
func NewSeeded(seed uint64) *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed))}
}

// Generate returns a new ID with the given key prefix.
func (g *Generator) Generate(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	b.Grow(len(prefix) + suffixLen)
	b.WriteString(prefix)
	for range suffixLen {
		b.WriteByte(alphabet[g.rnd.IntN(len(alphabet))])
	}
	return b.String()
}
