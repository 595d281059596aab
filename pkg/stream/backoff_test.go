package stream

import (
	"testing"
	"time"

	"nimbus-hq/ganymede/pkg/config"
)

func TestBackoff_ExponentialWithCap(t *testing.T) {
	cfg := config.StreamConfig{
		InitialBackoff:    time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},  // 16s capped
		{10, 10 * time.Second}, // stays capped
		{0, time.Second},       // clamped to attempt 1
	}

	for _, tt := range tests {
		if got := Backoff(cfg, tt.attempt); got != tt.want {
			t.Errorf("Backoff(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_LargeExponentDoesNotOverflow(t *testing.T) {
	cfg := config.StreamConfig{
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
	if got := Backoff(cfg, 200); got != 30*time.Second {
		t.Errorf("Backoff(attempt=200) = %v, want the cap", got)
	}
}
