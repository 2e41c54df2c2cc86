package admission

import (
	"fmt"
	"sync"
	"time"
)

const (
	loadSamples   = 100
	loadThreshold = 0.8
)

// RateLimiter enforces per-identity rolling minute/hour/day windows,
// violation bans, per-user daily quotas, and the adaptive throttle.
// All mutations for one identity are serialized under the limiter lock;
// the limiter never blocks on anything external.
type RateLimiter struct {
	cfg Config

	mu         sync.Mutex
	identities map[string]*identityState
	quotas     map[string]*userQuota
	load       []float64
	loadPos    int
	loadFull   bool
	now        func() time.Time
}

type identityState struct {
	minute      []time.Time
	hour        []time.Time
	day         []time.Time
	violations  int
	bannedUntil time.Time
}

type userQuota struct {
	used    int
	resetAt time.Time
}

// NewRateLimiter creates a RateLimiter with the given config.
func NewRateLimiter(cfg Config) *RateLimiter {
	return &RateLimiter{
		cfg:        cfg.withDefaults(),
		identities: make(map[string]*identityState),
		quotas:     make(map[string]*userQuota),
		load:       make([]float64, loadSamples),
		now:        time.Now,
	}
}

// Check evaluates the rolling windows for one request and records it when
// admitted.
func (l *RateLimiter) Check(req Request) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	identity := req.identity()
	limits := LimitsFor(req.Plan)

	st, ok := l.identities[identity]
	if !ok {
		st = &identityState{}
		l.identities[identity] = st
	}

	// Ban check comes first; an expired ban clears the violation counter.
	if !st.bannedUntil.IsZero() {
		if now.Before(st.bannedUntil) {
			remaining := st.bannedUntil.Sub(now)
			return Decision{
				Kind:       DenyBanned,
				Reason:     fmt.Sprintf("temporarily banned, try again in %d seconds", int(remaining.Seconds())),
				Limits:     limits,
				Remaining:  l.remaining(st, limits),
				RetryAfter: remaining,
			}
		}
		st.bannedUntil = time.Time{}
		st.violations = 0
	}

	st.prune(now)

	if len(st.minute) >= limits.Minute {
		l.recordViolation(st, now)
		return l.deny(st, limits, fmt.Sprintf("rate limit exceeded: %d requests per minute", limits.Minute))
	}
	if len(st.hour) >= limits.Hour {
		l.recordViolation(st, now)
		return l.deny(st, limits, fmt.Sprintf("rate limit exceeded: %d requests per hour", limits.Hour))
	}
	if len(st.day) >= limits.Day {
		l.recordViolation(st, now)
		return l.deny(st, limits, fmt.Sprintf("daily quota exceeded: %d requests per day", limits.Day))
	}

	if req.UserID != "" {
		if d, ok := l.checkUserQuota(req.UserID, limits, now); !ok {
			d.Limits = limits
			d.Remaining = l.remaining(st, limits)
			return d
		}
	}

	if l.cfg.Adaptive {
		if avg := l.avgLoad(); avg > loadThreshold {
			return Decision{
				Kind:      DenyRateLimited,
				Reason:    "system is experiencing high load, retry in a moment",
				Limits:    limits,
				Remaining: l.remaining(st, limits),
			}
		}
	}

	// Admitted: record in every window and against the user quota.
	st.minute = append(st.minute, now)
	st.hour = append(st.hour, now)
	st.day = append(st.day, now)
	if req.UserID != "" {
		l.quotas[req.UserID].used++
	}

	return Decision{
		Allowed:   true,
		Limits:    limits,
		Remaining: l.remaining(st, limits),
	}
}

func (l *RateLimiter) deny(st *identityState, limits PlanLimits, reason string) Decision {
	return Decision{
		Kind:      DenyRateLimited,
		Reason:    reason,
		Limits:    limits,
		Remaining: l.remaining(st, limits),
	}
}

func (l *RateLimiter) remaining(st *identityState, limits PlanLimits) Remaining {
	return Remaining{
		Minute: max(0, limits.Minute-len(st.minute)),
		Hour:   max(0, limits.Hour-len(st.hour)),
		Day:    max(0, limits.Day-len(st.day)),
	}
}

func (l *RateLimiter) recordViolation(st *identityState, now time.Time) {
	st.violations++
	if st.violations >= l.cfg.BanThreshold {
		st.bannedUntil = now.Add(l.cfg.BanDuration)
	}
}

// checkUserQuota enforces the UTC-midnight-resetting per-user daily quota,
// distinct from the rolling day window.
func (l *RateLimiter) checkUserQuota(userID string, limits PlanLimits, now time.Time) (Decision, bool) {
	q, ok := l.quotas[userID]
	if !ok {
		q = &userQuota{resetAt: nextMidnightUTC(now)}
		l.quotas[userID] = q
	}
	if !now.Before(q.resetAt) {
		q.used = 0
		q.resetAt = nextMidnightUTC(now)
	}
	if q.used >= limits.Day {
		hours := q.resetAt.Sub(now).Hours()
		return Decision{
			Kind:   DenyRateLimited,
			Reason: fmt.Sprintf("daily quota exceeded, resets in %.1f hours", hours),
		}, false
	}
	return Decision{}, true
}

// prune drops window entries older than their window span.
func (s *identityState) prune(now time.Time) {
	s.minute = pruneWindow(s.minute, now, time.Minute)
	s.hour = pruneWindow(s.hour, now, time.Hour)
	s.day = pruneWindow(s.day, now, 24*time.Hour)
}

func pruneWindow(ts []time.Time, now time.Time, span time.Duration) []time.Time {
	cutoff := now.Add(-span)
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

// RecordLoad appends a system-load sample in [0, 1] to the ring.
func (l *RateLimiter) RecordLoad(load float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.load[l.loadPos] = load
	l.loadPos = (l.loadPos + 1) % len(l.load)
	if l.loadPos == 0 {
		l.loadFull = true
	}
}

// avgLoad averages the recorded samples. Must be called with the lock held.
func (l *RateLimiter) avgLoad() float64 {
	n := l.loadPos
	if l.loadFull {
		n = len(l.load)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += l.load[i]
	}
	return sum / float64(n)
}

// Reset clears all state for an identity.
func (l *RateLimiter) Reset(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.identities, identity)
}

// Unban clears a ban and the violation counter for an identity.
func (l *RateLimiter) Unban(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.identities[identity]; ok {
		st.bannedUntil = time.Time{}
		st.violations = 0
	}
}

// Stats returns limiter statistics.
func (l *RateLimiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{ActiveIdentities: len(l.identities), AvgLoad: l.avgLoad()}
	now := l.now()
	for _, st := range l.identities {
		if now.Before(st.bannedUntil) {
			s.Banned++
		}
		if st.violations > 0 {
			s.WithViolations++
			s.TotalViolations += st.violations
		}
	}
	return s
}

func nextMidnightUTC(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}
