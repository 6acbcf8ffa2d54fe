// Package testutil provides common testing utilities and stub implementations.
package testutil

import (
	"sync"
	"time"
)

// Clock is a manually advanced clock for tests that span several days.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock stopped at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time. Pass the method value wherever a clock
// function is expected.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// AdvanceDays moves the clock forward by n calendar days.
func (c *Clock) AdvanceDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, n)
}

// StubTokens issues predictable tokens of the form "token-<username>".
type StubTokens struct{}

// Issue implements the token issuer used by the user service.
func (StubTokens) Issue(_ int64, username string) (string, error) {
	return "token-" + username, nil
}
