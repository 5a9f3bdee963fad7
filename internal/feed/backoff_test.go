package feed

import (
	"testing"
	"time"
)

func TestBackoffGrowsExponentially(t *testing.T) {
	b := Backoff{Min: 100 * time.Millisecond, Max: 2 * time.Second, Factor: 2}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1600 * time.Millisecond},
		{6, 2 * time.Second},
		{10, 2 * time.Second},
	}
	for _, c := range cases {
		if got := b.Next(c.attempt); got != c.want {
			t.Errorf("attempt %d: got %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestBackoffJitterStaysNearBase(t *testing.T) {
	b := Backoff{Min: time.Second, Max: 10 * time.Second, Factor: 2, Jitter: 0.5}

	for i := 0; i < 100; i++ {
		got := b.Next(1)
		if got < 500*time.Millisecond || got > 1500*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", got)
		}
	}
}

func TestBackoffZeroValueUsesDefaults(t *testing.T) {
	var b Backoff
	if got := b.Next(0); got <= 0 {
		t.Fatalf("zero-value backoff returned %v", got)
	}
	if got := DefaultBackoff().Next(3); got <= 0 {
		t.Fatalf("default backoff returned %v", got)
	}
}
