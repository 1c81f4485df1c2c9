package utils

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunIDGenerator issues run identifiers for reconciliation runs.
// IDs are ULIDs, so they sort by creation time and are safe in URLs
// and cache keys.
type RunIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewRunIDGenerator() *RunIDGenerator {
	return &RunIDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate returns the next run ID. IDs from one generator are strictly
// monotonic, so runs started by the same process order by ID.
func (g *RunIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// GeneratePrefixed returns a run ID with a human-readable prefix.
// Format: RUN-{ULID}
func (g *RunIDGenerator) GeneratePrefixed(prefix string) string {
	p := "RUN"
	if prefix != "" {
		p = strings.ToUpper(prefix)
	}
	return p + "-" + g.Generate()
}

// ValidateRunID reports whether s is a run identifier, with or without
// its prefix.
func ValidateRunID(s string) bool {
	if i := strings.LastIndex(s, "-"); i >= 0 {
		s = s[i+1:]
	}
	if len(s) != 26 {
		return false
	}
	_, err := ulid.Parse(s)
	return err == nil
}
