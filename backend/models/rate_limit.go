package models

import "time"

// RateLimitCounter is the fixed-window counter stored per rate limit key
type RateLimitCounter struct {
	Key             string    `json:"key" db:"key"`
	Count           int       `json:"count" db:"count"`
	WindowStartedAt time.Time `json:"window_started_at" db:"window_started_at"`
}

// TableName returns the table name for the RateLimitCounter model
func (RateLimitCounter) TableName() string {
	return "rate_limit_counters"
}

// Elapsed returns how far into the current window now is
func (c *RateLimitCounter) Elapsed(now time.Time) time.Duration {
	return now.Sub(c.WindowStartedAt)
}

// Expired reports whether the window has rolled over at now
func (c *RateLimitCounter) Expired(now time.Time, window time.Duration) bool {
	return c.Elapsed(now) >= window
}

// RateLimitDecision is the answer to a single rate limit check
type RateLimitDecision struct {
	Allowed      bool `json:"allowed"`
	Limit        int  `json:"limit"`
	Remaining    int  `json:"remaining"`
	ResetSeconds int  `json:"reset_seconds"`
}

// Hit applies one fixed-window check at now and reports whether the call is
// admitted. A zero counter is treated as an already elapsed window. The
// caller is responsible for making Hit atomic per key.
func (c *RateLimitCounter) Hit(now time.Time, max int, window time.Duration) bool {
	if c.WindowStartedAt.IsZero() || c.Expired(now, window) {
		c.Count = 0
		c.WindowStartedAt = now
	}
	if c.Count >= max {
		return false
	}
	c.Count++
	return true
}
