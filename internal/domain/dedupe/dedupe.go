// Package dedupe guards against processing the same match twice.
package dedupe

import (
	"context"
	"sync"
)

// Guard records match IDs that have already produced rating movement.
type Guard interface {
	// SeenAndRecord atomically checks whether matchID was processed and
	// records it if not. Returns true when the match was already seen.
	SeenAndRecord(ctx context.Context, matchID string) bool

	// Unrecord forgets a match so it can be processed again, used after a
	// reversal or when a recorded match failed to persist.
	Unrecord(ctx context.Context, matchID string)

	// Size returns the number of match IDs currently tracked.
	Size() int
}

// matchGuard implements Guard with a bounded FIFO over recent match IDs.
// When the bound is reached the oldest recorded match is forgotten; the
// history ledger remains the durable source of truth for old matches.
type matchGuard struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	maxSize int
}

// NewMatchGuard creates a guard with configuration options.
func NewMatchGuard(opts ...Option) Guard {
	g := &matchGuard{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(g)
	}
	g.seen = make(map[string]struct{}, g.maxSize)
	return g
}

func (g *matchGuard) SeenAndRecord(_ context.Context, matchID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[matchID]; ok {
		return true
	}
	if g.maxSize > 0 && len(g.order) >= g.maxSize {
		oldest := g.order[0]
		g.order = g.order[1:]
		delete(g.seen, oldest)
	}
	g.seen[matchID] = struct{}{}
	g.order = append(g.order, matchID)
	return false
}

func (g *matchGuard) Unrecord(_ context.Context, matchID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[matchID]; !ok {
		return
	}
	delete(g.seen, matchID)
	for i, id := range g.order {
		if id == matchID {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

func (g *matchGuard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
