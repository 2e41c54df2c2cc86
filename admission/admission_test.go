package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitsFor(t *testing.T) {
	assert.Equal(t, PlanLimits{Minute: 5, Hour: 10, Day: 100}, LimitsFor(PlanFree))
	assert.Equal(t, PlanLimits{Minute: 200, Hour: 5000, Day: 100000}, LimitsFor(PlanEnterprise))
	// Unknown and empty plans fall back to free.
	assert.Equal(t, LimitsFor(PlanFree), LimitsFor(Plan("gold")))
	assert.Equal(t, LimitsFor(PlanFree), LimitsFor(Plan("")))
}

func TestRateLimiter_MinuteWindowRolls(t *testing.T) {
	l := NewRateLimiter(Config{})
	current := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	req := Request{Identity: "s1", Plan: PlanFree}

	for i := 0; i < 5; i++ {
		d := l.Check(req)
		require.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 5-(i+1), d.Remaining.Minute)
	}

	d := l.Check(req)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyRateLimited, d.Kind)
	assert.Zero(t, d.Remaining.Minute)

	// The window rolls: a minute later the same identity is admitted again.
	current = current.Add(61 * time.Second)
	d = l.Check(req)
	assert.True(t, d.Allowed)
}

func TestRateLimiter_HourWindowOutlivesMinuteWindow(t *testing.T) {
	l := NewRateLimiter(Config{})
	current := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	req := Request{Identity: "s1", Plan: PlanFree}

	for i := 0; i < 5; i++ {
		require.True(t, l.Check(req).Allowed)
	}
	current = current.Add(61 * time.Second)
	for i := 0; i < 5; i++ {
		require.True(t, l.Check(req).Allowed)
	}

	// Ten requests this hour; the minute window is clear but the hour
	// window is spent.
	current = current.Add(61 * time.Second)
	d := l.Check(req)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "per hour")
}

func TestRateLimiter_RepeatedViolationsBan(t *testing.T) {
	l := NewRateLimiter(Config{BanThreshold: 3, BanDuration: time.Hour})
	current := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	req := Request{Identity: "abuser", Plan: PlanFree}

	for i := 0; i < 5; i++ {
		require.True(t, l.Check(req).Allowed)
	}
	// Three limit violations trip the ban.
	for i := 0; i < 3; i++ {
		d := l.Check(req)
		require.False(t, d.Allowed)
	}

	d := l.Check(req)
	assert.Equal(t, DenyBanned, d.Kind)
	assert.Positive(t, d.RetryAfter)

	// Other identities are unaffected.
	assert.True(t, l.Check(Request{Identity: "other", Plan: PlanFree}).Allowed)

	// An expired ban clears the violation counter.
	current = current.Add(2 * time.Hour)
	d = l.Check(req)
	assert.True(t, d.Allowed)
	assert.Zero(t, l.identities["abuser"].violations)
}

func TestRateLimiter_Unban(t *testing.T) {
	l := NewRateLimiter(Config{BanThreshold: 1})
	current := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	req := Request{Identity: "s1", Plan: PlanFree}
	for i := 0; i < 5; i++ {
		require.True(t, l.Check(req).Allowed)
	}
	require.False(t, l.Check(req).Allowed)
	require.Equal(t, DenyBanned, l.Check(req).Kind)

	l.Unban("s1")
	// Still rate limited this minute, but no longer banned.
	d := l.Check(req)
	assert.Equal(t, DenyRateLimited, d.Kind)

	l.Reset("s1")
	assert.True(t, l.Check(req).Allowed)
}

func TestRateLimiter_UserQuotaResetsAtMidnightUTC(t *testing.T) {
	l := NewRateLimiter(Config{})
	current := time.Date(2026, 8, 23, 23, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	req := Request{Identity: "u1", UserID: "u1", Plan: PlanFree}
	require.True(t, l.Check(req).Allowed)

	// Exhaust the daily quota directly; the rolling windows stay clear.
	l.quotas["u1"].used = 100

	d := l.Check(req)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "daily quota")

	// Past midnight UTC the quota is fresh.
	current = current.Add(2 * time.Hour)
	assert.True(t, l.Check(req).Allowed)
	assert.Equal(t, 1, l.quotas["u1"].used)
}

func TestRateLimiter_AdaptiveThrottle(t *testing.T) {
	l := NewRateLimiter(Config{Adaptive: true})
	req := Request{Identity: "s1", Plan: PlanPremium}

	require.True(t, l.Check(req).Allowed)

	l.RecordLoad(0.95)
	d := l.Check(req)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "high load")

	// Recovery drags the average back under the threshold.
	for i := 0; i < 20; i++ {
		l.RecordLoad(0.1)
	}
	assert.True(t, l.Check(req).Allowed)
}

func TestRateLimiter_Stats(t *testing.T) {
	l := NewRateLimiter(Config{})
	current := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	for i := 0; i < 6; i++ {
		l.Check(Request{Identity: "s1", Plan: PlanFree})
	}
	l.Check(Request{Identity: "s2", Plan: PlanFree})

	s := l.Stats()
	assert.Equal(t, 2, s.ActiveIdentities)
	assert.Equal(t, 1, s.WithViolations)
	assert.Equal(t, 1, s.TotalViolations)
	assert.Zero(t, s.Banned)
}

func TestGuard_BlocksAboveThreshold(t *testing.T) {
	g := NewGuard(time.Minute, 3, time.Hour)
	current := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		require.True(t, g.Check("10.0.0.1").Allowed, "request %d", i+1)
	}

	d := g.Check("10.0.0.1")
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyBlocked, d.Kind)
	assert.Equal(t, time.Hour, d.RetryAfter)

	// The block persists even after the detection window passes.
	current = current.Add(2 * time.Minute)
	d = g.Check("10.0.0.1")
	assert.Equal(t, DenyBlocked, d.Kind)
	assert.Positive(t, d.RetryAfter)

	// Other addresses are unaffected.
	assert.True(t, g.Check("10.0.0.2").Allowed)

	// The block expires on its own.
	current = current.Add(2 * time.Hour)
	assert.True(t, g.Check("10.0.0.1").Allowed)
}

func TestGuard_Unblock(t *testing.T) {
	g := NewGuard(time.Minute, 2, time.Hour)
	current := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		g.Check("10.0.0.1")
	}
	require.False(t, g.Check("10.0.0.1").Allowed)

	g.Unblock("10.0.0.1")
	current = current.Add(2 * time.Minute) // let the request log drain
	assert.True(t, g.Check("10.0.0.1").Allowed)
}

func TestController_GuardRunsBeforeLimiter(t *testing.T) {
	c := NewController(Config{DDoSWindow: time.Minute, DDoSThreshold: 3, DDoSBlockDuration: time.Hour})
	current := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	c.guard.now = func() time.Time { return current }
	c.limiter.now = func() time.Time { return current }

	req := Request{Identity: "u1", Address: "10.0.0.1", Plan: PlanEnterprise}

	for i := 0; i < 3; i++ {
		require.True(t, c.Check(req).Allowed)
	}

	d := c.Check(req)
	assert.Equal(t, DenyBlocked, d.Kind)
	// Blocked decisions still carry the plan limits for response headers.
	assert.Equal(t, LimitsFor(PlanEnterprise), d.Limits)

	c.Unblock("10.0.0.1")
	current = current.Add(2 * time.Minute)
	assert.True(t, c.Check(req).Allowed)
}

func TestController_Stats(t *testing.T) {
	c := NewController(Config{DDoSThreshold: 2})
	current := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	c.guard.now = func() time.Time { return current }
	c.limiter.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		c.Check(Request{Identity: "u1", Address: "10.0.0.1", Plan: PlanFree})
	}

	s := c.Stats()
	assert.Equal(t, 1, s.BlockedAddrs)
	assert.Equal(t, 1, s.MonitoredAddrs)
	assert.Equal(t, 1, s.ActiveIdentities)
}

func TestDecision_Headers(t *testing.T) {
	d := Decision{
		Allowed:   true,
		Limits:    LimitsFor(PlanBasic),
		Remaining: Remaining{Minute: 19, Hour: 99, Day: 999},
	}
	h := d.Headers()
	assert.Equal(t, "20", h["X-RateLimit-Limit-Minute"])
	assert.Equal(t, "99", h["X-RateLimit-Remaining-Hour"])
	assert.Equal(t, "999", h["X-RateLimit-Remaining-Day"])
}
