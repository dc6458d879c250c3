package quota

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestSlidingWindow_LimitPerIdentity(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSlidingWindow(5, time.Minute, clk.Now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := s.Take(ctx, "1.2.3.4")
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allowed {
			t.Fatalf("request %d: expected allowed", i+1)
		}
		if d.Remaining != 4-i {
			t.Fatalf("request %d: expected remaining %d, got %d", i+1, 4-i, d.Remaining)
		}
	}

	d, _ := s.Take(ctx, "1.2.3.4")
	if d.Allowed {
		t.Fatal("6th request in window must be denied")
	}
	if d.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", d.Remaining)
	}

	d, _ = s.Take(ctx, "5.6.7.8")
	if !d.Allowed {
		t.Fatal("other identity must still be admitted")
	}
}

func TestSlidingWindow_ExpiresAfterWindow(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSlidingWindow(1, 60*time.Second, clk.Now)
	ctx := context.Background()

	if d, _ := s.Take(ctx, "ip"); !d.Allowed {
		t.Fatal("first request must be admitted")
	}
	clk.Advance(30 * time.Second)
	if d, _ := s.Take(ctx, "ip"); d.Allowed {
		t.Fatal("request inside the window must be denied")
	}
	clk.Advance(30*time.Second + time.Millisecond)
	if d, _ := s.Take(ctx, "ip"); !d.Allowed {
		t.Fatal("earlier admission should have expired")
	}
}

func TestSlidingWindow_RetryAfter(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSlidingWindow(1, time.Minute, clk.Now)
	ctx := context.Background()

	s.Take(ctx, "ip")
	clk.Advance(20 * time.Second)
	d, _ := s.Take(ctx, "ip")
	if d.Allowed || d.RetryAfter != 40*time.Second {
		t.Fatalf("got %+v, want denial with 40s retry", d)
	}
}

func TestSlidingWindow_DropsIdleIdentities(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSlidingWindow(5, time.Minute, clk.Now)
	ctx := context.Background()

	for _, ip := range []string{"a", "b", "c"} {
		s.Take(ctx, ip)
	}
	if n := s.size(); n != 3 {
		t.Fatalf("size = %d, want 3", n)
	}
	clk.Advance(time.Minute + time.Millisecond)
	s.Take(ctx, "d")
	if n := s.size(); n != 1 {
		t.Fatalf("size after window = %d, want 1", n)
	}
}

func TestSlidingWindow_DenialDoesNotConsume(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSlidingWindow(2, time.Minute, clk.Now)
	ctx := context.Background()

	s.Take(ctx, "ip")
	clk.Advance(10 * time.Second)
	s.Take(ctx, "ip")
	for i := 0; i < 3; i++ {
		s.Take(ctx, "ip")
	}
	// only the first admission leaves the window here
	clk.Advance(50*time.Second + time.Millisecond)
	if d, _ := s.Take(ctx, "ip"); !d.Allowed || d.Remaining != 0 {
		t.Fatalf("expected one freed slot, got %+v", d)
	}
}

func TestDailyWindow_SeparateDays(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)}
	d := NewDailyWindow(5, clk.Now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if dec, _ := d.Take(ctx, "ip"); !dec.Allowed {
			t.Fatalf("day 1 request %d denied", i+1)
		}
	}
	dec, _ := d.Take(ctx, "ip")
	if dec.Allowed {
		t.Fatal("6th request on day 1 must be denied")
	}
	if want := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC); !dec.ResetAt.Equal(want) {
		t.Fatalf("expected reset at %s, got %s", want, dec.ResetAt)
	}

	clk.Advance(2 * time.Hour)
	for i := 0; i < 5; i++ {
		if dec, _ := d.Take(ctx, "ip"); !dec.Allowed {
			t.Fatalf("day 2 request %d denied", i+1)
		}
	}
	if dec, _ := d.Take(ctx, "ip"); dec.Allowed {
		t.Fatal("6th request on day 2 must be denied")
	}
}

func TestDailyWindow_PrunesOldDays(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	d := NewDailyWindow(5, clk.Now)
	ctx := context.Background()

	d.Take(ctx, "a")
	d.Take(ctx, "b")
	if got := d.size(); got != 2 {
		t.Fatalf("expected 2 counters, got %d", got)
	}
	clk.Advance(24 * time.Hour)
	d.Take(ctx, "c")
	if got := d.size(); got != 1 {
		t.Fatalf("expected yesterday's counters pruned, got %d", got)
	}
}

func TestDailyWindow_ConcurrentTakes(t *testing.T) {
	d := NewDailyWindow(5, nil)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, _ := d.Take(ctx, "same")
			if dec.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 5 {
		t.Fatalf("expected exactly 5 admissions, got %d", allowed)
	}
}

func TestPolicy_RetryHint(t *testing.T) {
	tests := []struct {
		p    Policy
		want string
	}{
		{Policy{Strategy: Daily, Limit: 5}, "Daily limit reached (5/day). Try again tomorrow."},
		{Policy{Strategy: Sliding, Limit: 5, Window: 60 * time.Second}, "Rate limit exceeded. Try again in 1 minute."},
		{Policy{Strategy: Sliding, Limit: 5, Window: 10 * time.Minute}, "Rate limit exceeded. Try again in 10 minutes."},
	}
	for _, tt := range tests {
		if got := tt.p.RetryHint(); got != tt.want {
			t.Errorf("RetryHint(%+v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy("Sliding"); err != nil || s != Sliding {
		t.Fatalf("got %q, %v", s, err)
	}
	if s, err := ParseStrategy(""); err != nil || s != Daily {
		t.Fatalf("got %q, %v", s, err)
	}
	if _, err := ParseStrategy("hourly"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestNewMemory_Validates(t *testing.T) {
	if _, err := NewMemory(Policy{Strategy: Sliding, Limit: 5}, nil); err == nil {
		t.Fatal("sliding without window must fail")
	}
	s, err := NewMemory(DefaultPolicy(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*DailyWindow); !ok {
		t.Fatalf("default policy should be daily, got %T", s)
	}
}
