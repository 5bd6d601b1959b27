// Package buildid generates identifiers used to correlate one build run
// across its logs and trace output.
package buildid

import (
	"sync"

	"github.com/google/uuid"
)

// Generator produces a build identifier. Generate is called exactly
// once per build run.
type Generator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 build ids, so builds
// listed by id also sort by start time.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 as a hyphenated string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined ids, for deterministic golden-file
// tests of trace and log output.
type FixedGenerator struct {
	mu     sync.Mutex
	ids    []string
	idx    int
}

// NewFixedGenerator returns a generator that yields ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id. Panics once exhausted —
// a test that needs more ids than it declared is misconfigured.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("buildid: FixedGenerator exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
