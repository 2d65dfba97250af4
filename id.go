package tetherdb

import (
	"math/rand/v2"
	"strconv"
	"time"
)

// IDGenerator draws random document ids from [0, IDSpace) and formats them
// as decimal strings. Ids are unique among live keys only: a deleted id may
// be drawn again.
type IDGenerator struct {
	// MaxAttempts bounds the draws per Generate call. 0 means DefaultMaxIDAttempts.
	MaxAttempts int

	rng *rand.Rand
}

// NewIDGenerator creates a generator. A nil rng uses a time-seeded PCG source.
func NewIDGenerator(maxAttempts int, rng *rand.Rand) *IDGenerator {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &IDGenerator{MaxAttempts: maxAttempts, rng: rng}
}

// Generate returns an id for which taken reports false.
// Each colliding draw is rejected and redrawn; after MaxAttempts collisions
// it gives up with ErrIDSpaceExhausted. An error from taken aborts generation.
func (g *IDGenerator) Generate(taken func(id string) (bool, error)) (string, error) {
	id, _, err := g.generate(taken)
	return id, err
}

// generate also reports the number of draws used, for metrics.
func (g *IDGenerator) generate(taken func(id string) (bool, error)) (string, int, error) {
	limit := g.MaxAttempts
	if limit <= 0 {
		limit = DefaultMaxIDAttempts
	}

	for attempt := 1; attempt <= limit; attempt++ {
		id := FormatID(g.rng.Uint32N(IDSpace))
		exists, err := taken(id)
		if err != nil {
			return "", attempt, err
		}
		if !exists {
			return id, attempt, nil
		}
	}

	return "", limit, WithContext(ErrIDSpaceExhausted, map[string]interface{}{
		"attempts": limit,
		"space":    IDSpace,
	})
}

// FormatID renders n as a document id
func FormatID(n uint32) string {
	return strconv.FormatUint(uint64(n), 10)
}

// IsValidID reports whether s is the decimal form of an integer in [0, IDSpace).
func IsValidID(s string) bool {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	n, err := strconv.ParseUint(s, 10, 32)
	return err == nil && n < IDSpace
}
