// Package ratelimit gates admission into the orchestrator with sliding
// window accounting over three ceilings: per-minute, per-hour, and a
// short burst window. Two backends share one contract: an in-process
// limiter for single-instance deployments and a Redis-backed limiter for
// consistent enforcement across instances.
package ratelimit

import (
	"context"
	"time"
)

// Window names reported in denial info.
const (
	WindowMinute = "minute"
	WindowHour   = "hour"
	WindowBurst  = "burst"
)

const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour
	burstWindow  = 5 * time.Second
)

// Policy holds the three independently configurable ceilings.
type Policy struct {
	PerMinute int
	PerHour   int
	Burst     int
}

// Info describes a rate-limit decision. On denial Window, Limit and
// RetryAfter are set and Remaining is zero; RetryAfter is the time until
// the oldest record in the violated window ages out. On admission
// MinuteRemaining and HourRemaining carry the remaining quota. Err is set
// when a backend error forced a fail-open admission.
type Info struct {
	Window          string
	Limit           int
	Remaining       int
	RetryAfter      int // seconds
	MinuteRemaining int
	HourRemaining   int
	Err             error
}

// Limiter is the admission-control contract. Check decides purely from
// previously recorded requests; it never records the current one. Record
// must be called once per admitted request.
type Limiter interface {
	Check(ctx context.Context, clientID string) (bool, Info)
	Record(ctx context.Context, clientID string)
}

// Logger defines the logging interface compatible with the application
// logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// retryAfter converts the age of the oldest record in a window into the
// seconds until it expires, clamped to at least one second so the
// Retry-After header is always actionable.
func retryAfter(window time.Duration, oldestAge time.Duration) int {
	reset := int((window - oldestAge).Seconds())
	if reset < 1 {
		reset = 1
	}
	return reset
}
