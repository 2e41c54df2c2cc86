// Package admission gates requests before dispatch: a per-address DDoS
// guard followed by per-identity rolling-window rate limits with violation
// bans, an optional adaptive throttle, and per-user daily quotas.
package admission

import (
	"strconv"
	"time"
)

// Plan is the subscription tier selecting window limits.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanBasic      Plan = "basic"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// PlanLimits is the request allowance per rolling window.
type PlanLimits struct {
	Minute int
	Hour   int
	Day    int
}

var planLimits = map[Plan]PlanLimits{
	PlanFree:       {Minute: 5, Hour: 10, Day: 100},
	PlanBasic:      {Minute: 20, Hour: 100, Day: 1000},
	PlanPremium:    {Minute: 50, Hour: 500, Day: 10000},
	PlanEnterprise: {Minute: 200, Hour: 5000, Day: 100000},
}

// LimitsFor returns the window limits for a plan. Unknown plans get the
// free limits.
func LimitsFor(plan Plan) PlanLimits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// Request carries the identity facts needed for an admission decision.
type Request struct {
	// Identity is the rate-limit key: user ID, session ID, or address.
	Identity string
	// UserID, when set, additionally enforces the per-user daily quota.
	UserID string
	// Address is the remote network address checked by the DDoS guard.
	Address string
	Plan    Plan
}

func (r Request) identity() string {
	if r.Identity != "" {
		return r.Identity
	}
	return r.Address
}

// DenyKind classifies a denial.
type DenyKind int

const (
	DenyNone DenyKind = iota
	DenyRateLimited
	DenyBanned
	DenyBlocked
)

func (k DenyKind) String() string {
	switch k {
	case DenyNone:
		return "none"
	case DenyRateLimited:
		return "rate_limited"
	case DenyBanned:
		return "banned"
	case DenyBlocked:
		return "ddos_blocked"
	default:
		return "unknown"
	}
}

// Remaining is the post-decision allowance left in each rolling window.
type Remaining struct {
	Minute int
	Hour   int
	Day    int
}

// Decision is the outcome of an admission check. Denials are final for the
// request and are never retried internally.
type Decision struct {
	Allowed    bool
	Kind       DenyKind
	Reason     string
	Limits     PlanLimits
	Remaining  Remaining
	RetryAfter time.Duration
}

// Headers returns the standard rate-limit headers for API responses.
func (d Decision) Headers() map[string]string {
	return map[string]string{
		"X-RateLimit-Limit-Minute":     strconv.Itoa(d.Limits.Minute),
		"X-RateLimit-Limit-Hour":       strconv.Itoa(d.Limits.Hour),
		"X-RateLimit-Limit-Day":        strconv.Itoa(d.Limits.Day),
		"X-RateLimit-Remaining-Minute": strconv.Itoa(d.Remaining.Minute),
		"X-RateLimit-Remaining-Hour":   strconv.Itoa(d.Remaining.Hour),
		"X-RateLimit-Remaining-Day":    strconv.Itoa(d.Remaining.Day),
	}
}

// Config tunes the controller. Zero values select the defaults.
type Config struct {
	BanThreshold int           // violations before a temporary ban (default 5)
	BanDuration  time.Duration // default 1h
	Adaptive     bool          // enable load-based throttling

	DDoSWindow        time.Duration // default 60s
	DDoSThreshold     int           // requests per window (default 100)
	DDoSBlockDuration time.Duration // default 1h
}

func (c Config) withDefaults() Config {
	if c.BanThreshold == 0 {
		c.BanThreshold = 5
	}
	if c.BanDuration == 0 {
		c.BanDuration = time.Hour
	}
	if c.DDoSWindow == 0 {
		c.DDoSWindow = time.Minute
	}
	if c.DDoSThreshold == 0 {
		c.DDoSThreshold = 100
	}
	if c.DDoSBlockDuration == 0 {
		c.DDoSBlockDuration = time.Hour
	}
	return c
}

// Controller composes the DDoS guard and the rate limiter. The guard runs
// first: a blocked address is rejected immediately, bypassing every other
// check.
type Controller struct {
	guard   *Guard
	limiter *RateLimiter
}

// NewController creates a Controller with the given config.
func NewController(cfg Config) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		guard:   NewGuard(cfg.DDoSWindow, cfg.DDoSThreshold, cfg.DDoSBlockDuration),
		limiter: NewRateLimiter(cfg),
	}
}

// Check evaluates both gates for a request.
func (c *Controller) Check(req Request) Decision {
	if req.Address != "" {
		if d := c.guard.Check(req.Address); !d.Allowed {
			d.Limits = LimitsFor(req.Plan)
			return d
		}
	}
	return c.limiter.Check(req)
}

// RecordLoad feeds the adaptive throttle a system-load sample in [0, 1].
func (c *Controller) RecordLoad(load float64) {
	c.limiter.RecordLoad(load)
}

// Reset clears all rate-limit state for an identity.
func (c *Controller) Reset(identity string) {
	c.limiter.Reset(identity)
}

// Unban lifts a violation ban for an identity.
func (c *Controller) Unban(identity string) {
	c.limiter.Unban(identity)
}

// Unblock lifts a DDoS block for an address.
func (c *Controller) Unblock(addr string) {
	c.guard.Unblock(addr)
}

// Stats aggregates limiter and guard statistics.
type Stats struct {
	ActiveIdentities int
	Banned           int
	WithViolations   int
	TotalViolations  int
	AvgLoad          float64
	BlockedAddrs     int
	MonitoredAddrs   int
}

// Stats returns a point-in-time snapshot of controller state.
func (c *Controller) Stats() Stats {
	s := c.limiter.Stats()
	blocked, monitored := c.guard.Stats()
	s.BlockedAddrs = blocked
	s.MonitoredAddrs = monitored
	return s
}
