package quota

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Strategy string

const (
	// Sliding counts admissions in the trailing Window.
	Sliding Strategy = "sliding"
	// Daily counts admissions per UTC calendar day.
	Daily Strategy = "daily"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case Sliding:
		return Sliding, nil
	case Daily, "":
		return Daily, nil
	default:
		return "", fmt.Errorf("unknown quota strategy %q; use sliding|daily", s)
	}
}

// Policy describes how many requests one identity may make and over which window.
type Policy struct {
	Strategy Strategy
	Limit    int
	Window   time.Duration // sliding only
}

func DefaultPolicy() Policy {
	return Policy{Strategy: Daily, Limit: 5}
}

func (p Policy) Validate() error {
	if p.Limit <= 0 {
		return fmt.Errorf("quota limit must be > 0, got %d", p.Limit)
	}
	if p.Strategy == Sliding && p.Window <= 0 {
		return fmt.Errorf("sliding quota window must be > 0, got %s", p.Window)
	}
	return nil
}

// RetryHint is the message returned to a caller who ran out of quota.
func (p Policy) RetryHint() string {
	if p.Strategy == Daily {
		return fmt.Sprintf("Daily limit reached (%d/day). Try again tomorrow.", p.Limit)
	}
	mins := int((p.Window + time.Minute - 1) / time.Minute)
	if mins <= 1 {
		return "Rate limit exceeded. Try again in 1 minute."
	}
	return fmt.Sprintf("Rate limit exceeded. Try again in %d minutes.", mins)
}

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is ResetAt measured on the store's own clock.
	RetryAfter time.Duration
}

// Store checks and consumes one slot for an identity in a single atomic step.
type Store interface {
	Take(ctx context.Context, identity string) (Decision, error)
}

// DayKey is the UTC calendar day used to bucket daily counters.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// NextDay returns UTC midnight following t.
func NextDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// NewMemory builds the in-process store for the policy.
func NewMemory(p Policy, now func() time.Time) (Store, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Strategy == Sliding {
		return NewSlidingWindow(p.Limit, p.Window, now), nil
	}
	return NewDailyWindow(p.Limit, now), nil
}
