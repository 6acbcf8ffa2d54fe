package testutil

import (
	"testing"
	"time"
)

func TestClockAdvance(t *testing.T) {
	start := time.Date(2024, 5, 10, 23, 0, 0, 0, time.UTC)
	c := NewClock(start)

	c.Advance(2 * time.Hour)
	if got := c.Now(); !got.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("Now() = %v", got)
	}
	c.AdvanceDays(3)
	if got := c.Now(); got.Day() != 14 {
		t.Fatalf("expected day 14, got %v", got)
	}
}

func TestStubTokens(t *testing.T) {
	token, err := StubTokens{}.Issue(1, "alice")
	if err != nil || token != "token-alice" {
		t.Fatalf("Issue() = %q, %v", token, err)
	}
}
