// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator returns predetermined IDs in order.
//
// Once the listed IDs are used up it continues with "id-<n>", so tests
// that only care about ordering can pass no IDs at all.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedIDGenerator struct {
	mu  sync.Mutex
	ids []string
	n   int
}

// NewFixedIDGenerator creates a generator that returns ids in order.
func NewFixedIDGenerator(ids ...string) *FixedIDGenerator {
	return &FixedIDGenerator{ids: ids}
}

// Generate returns the next ID.
func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++
	if g.n <= len(g.ids) {
		return g.ids[g.n-1]
	}
	return fmt.Sprintf("id-%d", g.n)
}
