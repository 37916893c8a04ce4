package lockout

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/keymint/keymint-server/internal/logger"
)

// Tier maps a failure count threshold to a lockout duration. Tiers escalate:
// a handful of failures earns a short lockout, sustained attempts a longer
// one.
type Tier struct {
	Threshold int
	Duration  time.Duration
}

// DefaultTiers is the escalation ladder applied when config supplies none.
var DefaultTiers = []Tier{
	{Threshold: 5, Duration: 1 * time.Minute},
	{Threshold: 10, Duration: 15 * time.Minute},
	{Threshold: 20, Duration: 1 * time.Hour},
}

const shardCount = 32

type record struct {
	count         int
	lastAttemptAt time.Time
	lockedUntil   time.Time
}

type shard struct {
	mu      sync.Mutex
	records map[string]*record
}

// Tracker accumulates failed authentication attempts per origin/identity
// pair and escalates temporary lockouts. Keys are sharded so concurrent
// failures against different identities do not contend on one lock, and a
// single periodic sweep bounds memory instead of per-entry timers.
type Tracker struct {
	shards [shardCount]*shard
	tiers  []Tier
	logger *logger.Logger
}

// NewTracker creates a tracker with the given escalation tiers, which must
// be ordered by ascending threshold. Nil or empty tiers fall back to
// DefaultTiers.
func NewTracker(tiers []Tier, logger *logger.Logger) *Tracker {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	t := &Tracker{tiers: tiers, logger: logger}
	for i := range t.shards {
		t.shards[i] = &shard{records: make(map[string]*record)}
	}
	return t
}

// Key combines the network origin with the claimed identity. Keeping both
// dampens distributed attempts across many identities from one origin and
// attempts against one identity from many origins, without conflating
// unrelated requesters into one bucket.
func Key(origin, identity string) string {
	return origin + "|" + identity
}

func (t *Tracker) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return t.shards[h.Sum32()%shardCount]
}

// RecordFailure increments the failure counter for the key. When the count
// crosses a tier threshold the key is locked for that tier's duration; the
// returned duration is the retry hint for the caller.
func (t *Tracker) RecordFailure(origin, identity string) (locked bool, retryAfter time.Duration) {
	key := Key(origin, identity)
	s := t.shardFor(key)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[key]
	if !ok {
		r = &record{}
		s.records[key] = r
	}
	r.count++
	r.lastAttemptAt = now

	for i := len(t.tiers) - 1; i >= 0; i-- {
		if r.count >= t.tiers[i].Threshold {
			r.lockedUntil = now.Add(t.tiers[i].Duration)
			t.logger.Info("Lockout: threshold crossed",
				"origin", origin,
				"count", r.count,
				"duration", t.tiers[i].Duration)
			return true, t.tiers[i].Duration
		}
	}
	return false, 0
}

// RecordSuccess clears the record entirely.
func (t *Tracker) RecordSuccess(origin, identity string) {
	key := Key(origin, identity)
	s := t.shardFor(key)

	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
}

// IsLockedOut reports whether the key is currently locked, lazily clearing
// an expired lockout on read.
func (t *Tracker) IsLockedOut(origin, identity string) (bool, time.Duration) {
	key := Key(origin, identity)
	s := t.shardFor(key)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[key]
	if !ok {
		return false, 0
	}
	if r.lockedUntil.IsZero() {
		return false, 0
	}
	if now.After(r.lockedUntil) {
		// Lockout served; keep the attempt count until success or sweep.
		r.lockedUntil = time.Time{}
		return false, 0
	}
	return true, r.lockedUntil.Sub(now)
}

// SweepStale discards records untouched for longer than maxIdle and returns
// the number removed. maxIdle should exceed the widest lockout tier.
func (t *Tracker) SweepStale(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	removed := 0

	for _, s := range t.shards {
		s.mu.Lock()
		for key, r := range s.records {
			if r.lastAttemptAt.Before(cutoff) {
				delete(s.records, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// MaxTierDuration returns the widest configured lockout duration, used to
// derive the sweep idle window.
func (t *Tracker) MaxTierDuration() time.Duration {
	max := time.Duration(0)
	for _, tier := range t.tiers {
		if tier.Duration > max {
			max = tier.Duration
		}
	}
	return max
}
