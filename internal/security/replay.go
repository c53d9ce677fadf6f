package security

import (
	"context"
	"sync"
	"time"
)

// MemoryReplayGuard keeps seen identifiers in process memory. It is only
// correct for a single instance; scaled deployments use the Redis guard.
type MemoryReplayGuard struct {
	mu   sync.RWMutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryReplayGuard(ttl time.Duration) *MemoryReplayGuard {
	return &MemoryReplayGuard{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (g *MemoryReplayGuard) CheckReplay(_ context.Context, id string) (bool, error) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if seenAt, ok := g.seen[id]; ok && now.Sub(seenAt) < g.ttl {
		return true, nil
	}
	g.seen[id] = now
	return false, nil
}

func (g *MemoryReplayGuard) Release(_ context.Context, id string) error {
	g.mu.Lock()
	delete(g.seen, id)
	g.mu.Unlock()
	return nil
}

// Sweep copies the set under a read lock and deletes expired entries one at
// a time, so CheckReplay is never blocked for the whole scan.
func (g *MemoryReplayGuard) Sweep(_ context.Context) (int, error) {
	now := g.now()

	g.mu.RLock()
	snapshot := make(map[string]time.Time, len(g.seen))
	for id, at := range g.seen {
		snapshot[id] = at
	}
	g.mu.RUnlock()

	removed := 0
	for id, at := range snapshot {
		if now.Sub(at) < g.ttl {
			continue
		}
		g.mu.Lock()
		// the entry may have been re-recorded since the snapshot
		if cur, ok := g.seen[id]; ok && now.Sub(cur) >= g.ttl {
			delete(g.seen, id)
			removed++
		}
		g.mu.Unlock()
	}
	return removed, nil
}

func (g *MemoryReplayGuard) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.seen)
}
