package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Rule is a sliding-window limit: at most Limit events per Window.
type Rule struct {
	Window time.Duration
	Limit  int
}

// defaultRules returns the built-in per-kind limits used when a kind
// has no configured rule.
func defaultRules() map[string]Rule {
	return map[string]Rule{
		"message":   {Window: time.Minute, Limit: 30},
		"tool_call": {Window: time.Minute, Limit: 120},
		"auth":      {Window: time.Minute, Limit: 10},
	}
}

// RateLimiter implements per-user sliding window rate limiting.
// Each (kind, subject) pair tracks timestamps of recent events.
type RateLimiter struct {
	mu      sync.Mutex
	rules   map[string]Rule
	buckets map[bucketKey]*bucket
	now     func() time.Time
}

type bucketKey struct {
	kind    string
	subject string
}

type bucket struct {
	events []time.Time
}

// NewRateLimiter creates a rate limiter. Rules in overrides replace the
// built-in defaults per kind; kinds absent from both are unlimited.
func NewRateLimiter(overrides map[string]Rule) *RateLimiter {
	rules := defaultRules()
	for kind, rule := range overrides {
		if rule.Window > 0 && rule.Limit > 0 {
			rules[kind] = rule
		}
	}
	return &RateLimiter{
		rules:   rules,
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
	}
}

// Allow checks whether an event of the given kind is allowed for subject
// (typically a user ID, or a client address for unauthenticated requests).
// Returns nil if allowed, ErrRateLimited if the limit is exceeded.
func (rl *RateLimiter) Allow(kind, subject string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rule, ok := rl.rules[kind]
	if !ok {
		// Unknown kind = no limit configured.
		return nil
	}

	key := bucketKey{kind: kind, subject: subject}
	b := rl.buckets[key]
	if b == nil {
		b = &bucket{}
		rl.buckets[key] = b
	}

	now := rl.now()
	b.evict(now, rule.Window)

	if len(b.events) >= rule.Limit {
		return ErrRateLimited
	}

	b.events = append(b.events, now)
	return nil
}

// evict removes events outside the sliding window.
func (b *bucket) evict(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	// Events are chronologically ordered.
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
