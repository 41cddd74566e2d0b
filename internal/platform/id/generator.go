package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Generator creates opaque synthetic IDs. Player IDs must stay stable
// across runs and carry no meaning derived from either source, so they are
// random rather than source-keyed.
type Generator interface {
	NewID() (string, error)
}

type RandomGenerator struct {
	prefix string
}

// NewRandomGenerator returns a generator producing hex IDs with the given
// prefix, e.g. "pl" for players.
func NewRandomGenerator(prefix string) *RandomGenerator {
	return &RandomGenerator{prefix: prefix}
}

func (g *RandomGenerator) NewID() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	if g.prefix == "" {
		return hex.EncodeToString(buf), nil
	}
	return g.prefix + "_" + hex.EncodeToString(buf), nil
}
