package tiergate

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// baselineScore is the score given to the first candidate of an empty tier.
const baselineScore = 100

// FeedbackKind is a named feedback event with a fixed score delta.
type FeedbackKind string

const (
	FeedbackLike    FeedbackKind = "like"
	FeedbackDislike FeedbackKind = "dislike"
	FeedbackStar    FeedbackKind = "star"
)

// FeedbackPoints maps feedback kinds to score deltas.
var FeedbackPoints = map[FeedbackKind]int{
	FeedbackLike:    5,
	FeedbackDislike: -5,
	FeedbackStar:    10,
}

// CandidateStats carries per-candidate usage statistics, updated by the
// gateway after each dispatch.
type CandidateStats struct {
	TotalUses      int
	SuccessfulUses int
	FailedUses     int
	AvgLatency     time.Duration
	AvgCost        float64
	LastUsed       time.Time
}

// Registry holds, per tier, the ordered list of backend candidates ranked
// by a mutable score. Scores change only through feedback events; the
// dispatch engine reads ordered snapshots and never observes mid-flight
// changes for a query's retries.
type Registry struct {
	mu    sync.RWMutex
	rows  map[string]*registryRow
	order []string // registration order, for stable tie-breaks
}

type registryRow struct {
	candidate Candidate
	stats     CandidateStats
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{rows: make(map[string]*registryRow)}
}

// Register adds a candidate to a tier. A new identifier is scored one above
// the current top of its tier so new entrants rank first, or at the
// baseline if the tier is empty. Registering an existing identifier updates
// its display name and tier but keeps its score.
func (r *Registry) Register(displayName, identifier string, tier Tier) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if row, ok := r.rows[identifier]; ok {
		row.candidate.DisplayName = displayName
		row.candidate.Tier = tier
		return
	}

	score := baselineScore
	if top, ok := r.topOfTier(tier); ok {
		score = top + 1
	}

	r.rows[identifier] = &registryRow{
		candidate: Candidate{
			DisplayName: displayName,
			Identifier:  identifier,
			Tier:        tier,
			Score:       score,
		},
	}
	r.order = append(r.order, identifier)
}

// topOfTier returns the highest score in a tier. Must hold at least a read lock.
func (r *Registry) topOfTier(tier Tier) (int, bool) {
	best, found := 0, false
	for _, row := range r.rows {
		if row.candidate.Tier == tier && (!found || row.candidate.Score > best) {
			best = row.candidate.Score
			found = true
		}
	}
	return best, found
}

// Remove deletes a candidate. Removing an unknown identifier is a no-op.
func (r *Registry) Remove(identifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rows, identifier)
	for i, id := range r.order {
		if id == identifier {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// ApplyFeedback mutates a candidate's score by delta. The write is atomic
// per row.
func (r *Registry) ApplyFeedback(identifier string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[identifier]
	if !ok {
		return fmt.Errorf("tiergate: registry: unknown candidate %q", identifier)
	}
	row.candidate.Score += delta
	return nil
}

// AddFeedback applies a named feedback event (like/dislike/star).
func (r *Registry) AddFeedback(identifier string, kind FeedbackKind) error {
	delta, ok := FeedbackPoints[kind]
	if !ok {
		return fmt.Errorf("tiergate: registry: invalid feedback kind %q", kind)
	}
	return r.ApplyFeedback(identifier, delta)
}

// ResetScore sets a candidate's score to an absolute value.
func (r *Registry) ResetScore(identifier string, score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[identifier]
	if !ok {
		return fmt.Errorf("tiergate: registry: unknown candidate %q", identifier)
	}
	row.candidate.Score = score
	return nil
}

// Snapshot returns the tier's candidates ordered by descending score. The
// slice is a copy: later score changes do not affect it.
func (r *Registry) Snapshot(tier Tier) []Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Candidate
	for _, id := range r.order {
		row, ok := r.rows[id]
		if !ok || row.candidate.Tier != tier {
			continue
		}
		out = append(out, row.candidate)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// RecordUse updates usage statistics for a candidate after a dispatch.
// Recording an unknown identifier (e.g. a per-request override) is a no-op.
func (r *Registry) RecordUse(identifier string, success bool, latency time.Duration, cost float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[identifier]
	if !ok {
		return
	}

	st := &row.stats
	st.TotalUses++
	if success {
		st.SuccessfulUses++
	} else {
		st.FailedUses++
	}

	n := time.Duration(st.TotalUses)
	st.AvgLatency = (st.AvgLatency*(n-1) + latency) / n
	st.AvgCost = (st.AvgCost*float64(st.TotalUses-1) + cost) / float64(st.TotalUses)
	st.LastUsed = time.Now()
}

// Stats returns a copy of the usage statistics for a candidate.
func (r *Registry) Stats(identifier string) (CandidateStats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[identifier]
	if !ok {
		return CandidateStats{}, false
	}
	return row.stats, true
}

// LeaderboardEntry pairs a candidate with its usage statistics.
type LeaderboardEntry struct {
	Rank      int
	Candidate Candidate
	Stats     CandidateStats
}

// Leaderboard returns up to limit candidates of a tier ordered by score.
// limit <= 0 means no limit.
func (r *Registry) Leaderboard(tier Tier, limit int) []LeaderboardEntry {
	ranked := r.Snapshot(tier)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]LeaderboardEntry, 0, len(ranked))
	for i, c := range ranked {
		entry := LeaderboardEntry{Rank: i + 1, Candidate: c}
		if row, ok := r.rows[c.Identifier]; ok {
			entry.Stats = row.stats
		}
		out = append(out, entry)
	}
	return out
}
