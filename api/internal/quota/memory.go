package quota

import (
	"context"
	"strings"
	"sync"
	"time"
)

// SlidingWindow keeps admission timestamps per identity. State is process-local.
type SlidingWindow struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewSlidingWindow(limit int, window time.Duration, now func() time.Time) *SlidingWindow {
	if now == nil {
		now = time.Now
	}
	return &SlidingWindow{
		limit:  limit,
		window: window,
		now:    now,
		hits:   make(map[string][]time.Time),
	}
}

func (s *SlidingWindow) Take(_ context.Context, identity string) (Decision, error) {
	now := s.now()
	start := now.Add(-s.window)

	s.mu.Lock()
	defer s.mu.Unlock()

	// drop identities whose newest admission has left the window
	for id, ts := range s.hits {
		if len(ts) == 0 || !ts[len(ts)-1].After(start) {
			delete(s.hits, id)
		}
	}

	kept := s.hits[identity][:0]
	for _, t := range s.hits[identity] {
		if t.After(start) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= s.limit {
		s.hits[identity] = kept
		reset := kept[0].Add(s.window)
		return Decision{Allowed: false, Limit: s.limit, Remaining: 0, ResetAt: reset, RetryAfter: reset.Sub(now)}, nil
	}

	kept = append(kept, now)
	s.hits[identity] = kept
	reset := kept[0].Add(s.window)
	return Decision{
		Allowed:    true,
		Limit:      s.limit,
		Remaining:  s.limit - len(kept),
		ResetAt:    reset,
		RetryAfter: reset.Sub(now),
	}, nil
}

// DailyWindow counts admissions per identity per UTC day.
type DailyWindow struct {
	limit int
	now   func() time.Time

	mu     sync.Mutex
	counts map[string]int // "identity:YYYY-MM-DD" -> count
}

func NewDailyWindow(limit int, now func() time.Time) *DailyWindow {
	if now == nil {
		now = time.Now
	}
	return &DailyWindow{limit: limit, now: now, counts: make(map[string]int)}
}

func (d *DailyWindow) Take(_ context.Context, identity string) (Decision, error) {
	now := d.now()
	today := DayKey(now)
	key := identity + ":" + today
	reset := NextDay(now)

	d.mu.Lock()
	defer d.mu.Unlock()

	for k := range d.counts {
		if !strings.HasSuffix(k, ":"+today) {
			delete(d.counts, k)
		}
	}

	n := d.counts[key]
	if n >= d.limit {
		return Decision{Allowed: false, Limit: d.limit, Remaining: 0, ResetAt: reset, RetryAfter: reset.Sub(now)}, nil
	}
	d.counts[key] = n + 1
	return Decision{Allowed: true, Limit: d.limit, Remaining: d.limit - n - 1, ResetAt: reset, RetryAfter: reset.Sub(now)}, nil
}

func (d *DailyWindow) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.counts)
}

func (s *SlidingWindow) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hits)
}
