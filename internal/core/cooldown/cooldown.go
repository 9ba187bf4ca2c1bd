// Package cooldown gates repeated alerts with a per-key timestamp map.
//
// The pipeline keeps one gate per alert family (verified identities keyed by
// name, unknown sightings keyed by spatial bucket) so the windows never
// interfere. Decisions are serialized per gate; under concurrent callers
// exactly one wins the slot for a key.
package cooldown

import (
	"sync"
	"time"
)

// Gate records the last admitted alert per key.
type Gate struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// New returns an empty gate.
func New() *Gate {
	return &Gate{last: make(map[string]time.Time)}
}

// ShouldAlert reports whether an alert for key may fire at now, recording the
// firing when it may. A key fires when it has no entry or the previous firing
// is at least window old; the boundary admits.
func (g *Gate) ShouldAlert(key string, now time.Time, window time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.last[key]; ok && now.Sub(last) < window {
		return false
	}
	g.last[key] = now
	return true
}

// Sweep deletes entries idle strictly longer than maxAge and reports how many
// were removed. Entries exactly maxAge old survive.
func (g *Gate) Sweep(now time.Time, maxAge time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for key, last := range g.last {
		if now.Sub(last) > maxAge {
			delete(g.last, key)
			removed++
		}
	}
	return removed
}

// Len reports how many keys the gate is tracking.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.last)
}
