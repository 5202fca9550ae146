package ratelimit

import (
	"context"
	"sync"
	"time"
)

// LocalLimiter keeps per-client timestamp lists in process memory. It is
// correct only within a single instance; multi-instance deployments use
// the Redis backend.
type LocalLimiter struct {
	policy Policy

	mu     sync.Mutex
	minute map[string][]time.Time
	hour   map[string][]time.Time
	burst  map[string][]time.Time

	now func() time.Time
}

// NewLocal creates an in-process limiter for the given policy.
func NewLocal(policy Policy) *LocalLimiter {
	return &LocalLimiter{
		policy: policy,
		minute: make(map[string][]time.Time),
		hour:   make(map[string][]time.Time),
		burst:  make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Check prunes expired records and tests the ceilings in fixed order:
// minute, hour, burst. The first violated ceiling is reported and no
// further checks run.
func (l *LocalLimiter) Check(_ context.Context, clientID string) (bool, Info) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.minute[clientID] = prune(l.minute[clientID], now, minuteWindow)
	l.hour[clientID] = prune(l.hour[clientID], now, hourWindow)
	l.burst[clientID] = prune(l.burst[clientID], now, burstWindow)

	if len(l.minute[clientID]) >= l.policy.PerMinute {
		return false, Info{
			Window:     WindowMinute,
			Limit:      l.policy.PerMinute,
			RetryAfter: retryAfter(minuteWindow, now.Sub(l.minute[clientID][0])),
		}
	}

	if len(l.hour[clientID]) >= l.policy.PerHour {
		return false, Info{
			Window:     WindowHour,
			Limit:      l.policy.PerHour,
			RetryAfter: retryAfter(hourWindow, now.Sub(l.hour[clientID][0])),
		}
	}

	if len(l.burst[clientID]) >= l.policy.Burst {
		return false, Info{
			Window:     WindowBurst,
			Limit:      l.policy.Burst,
			RetryAfter: retryAfter(burstWindow, now.Sub(l.burst[clientID][0])),
		}
	}

	return true, Info{
		MinuteRemaining: l.policy.PerMinute - len(l.minute[clientID]),
		HourRemaining:   l.policy.PerHour - len(l.hour[clientID]),
	}
}

// Record appends the current timestamp to all three window lists.
func (l *LocalLimiter) Record(_ context.Context, clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.minute[clientID] = append(l.minute[clientID], now)
	l.hour[clientID] = append(l.hour[clientID], now)
	l.burst[clientID] = append(l.burst[clientID], now)
}

// prune drops timestamps older than the window. Client state is never
// destroyed, only shrunk.
func prune(records []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	kept := records[:0]
	for _, t := range records {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
