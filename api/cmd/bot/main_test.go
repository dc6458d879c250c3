package main

import (
	"errors"
	"testing"
	"time"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryDelayFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"nil", nil, 0},
		{"retry after", errors.New("Too Many Requests: retry after 7"), 7 * time.Second},
		{"429 without hint", errors.New("too many requests"), 3 * time.Second},
		{"timeout", timeoutErr{}, 2 * time.Second},
		{"other", errors.New("boom"), time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryDelayFromError(tt.err); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClampDelay(t *testing.T) {
	if got := clampDelay(0, time.Second, 15*time.Second); got != time.Second {
		t.Fatalf("low clamp = %v", got)
	}
	if got := clampDelay(time.Minute, time.Second, 15*time.Second); got != 15*time.Second {
		t.Fatalf("high clamp = %v", got)
	}
	if got := clampDelay(5*time.Second, time.Second, 15*time.Second); got != 5*time.Second {
		t.Fatalf("passthrough = %v", got)
	}
}
