package admission

import (
	"fmt"
	"sync"
	"time"
)

// Guard is the DDoS protection layer: a per-address sliding request window
// that blocks an address outright once it exceeds the threshold.
type Guard struct {
	window        time.Duration
	threshold     int
	blockDuration time.Duration

	mu      sync.Mutex
	log     map[string][]time.Time
	blocked map[string]time.Time
	now     func() time.Time
}

// NewGuard creates a Guard. window is the detection span, threshold the
// request count that triggers a block, blockDuration how long a block lasts.
func NewGuard(window time.Duration, threshold int, blockDuration time.Duration) *Guard {
	return &Guard{
		window:        window,
		threshold:     threshold,
		blockDuration: blockDuration,
		log:           make(map[string][]time.Time),
		blocked:       make(map[string]time.Time),
		now:           time.Now,
	}
}

// Check records a request from addr and decides whether to admit it. A
// blocked address is rejected with the remaining block time.
func (g *Guard) Check(addr string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()

	if until, ok := g.blocked[addr]; ok {
		if now.Before(until) {
			remaining := until.Sub(now)
			return Decision{
				Kind:       DenyBlocked,
				Reason:     fmt.Sprintf("address blocked due to suspicious activity, unblocked in %ds", int(remaining.Seconds())),
				RetryAfter: remaining,
			}
		}
		delete(g.blocked, addr)
	}

	g.log[addr] = append(pruneWindow(g.log[addr], now, g.window), now)

	if len(g.log[addr]) > g.threshold {
		g.blocked[addr] = now.Add(g.blockDuration)
		return Decision{
			Kind:       DenyBlocked,
			Reason:     "too many requests, address temporarily blocked",
			RetryAfter: g.blockDuration,
		}
	}

	return Decision{Allowed: true}
}

// Unblock lifts the block for an address.
func (g *Guard) Unblock(addr string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.blocked, addr)
}

// Stats returns the blocked and monitored address counts.
func (g *Guard) Stats() (blocked, monitored int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.blocked), len(g.log)
}
