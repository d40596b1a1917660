package kernel

import (
	"sync"

	"github.com/google/uuid"
)

// CutIDGenerator generates unique cut ids for upgrade records.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type CutIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 cut ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, making ids
// sortable by submission time, which keeps the cuts table and the change
// journal readable in id order.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined cut ids for testing, enabling
// deterministic upgrade scenarios and golden-trace comparison.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal
// mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("cut-1", "cut-2")
//	gen.Generate() // "cut-1"
//	gen.Generate() // "cut-2"
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed. Fail-fast to catch test
// misconfiguration (scenario submitted more cuts than expected).
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
