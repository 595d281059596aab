package admission

import (
	"testing"
	"time"

	"nimbus-hq/ganymede/pkg/config"
)

func testLimiter(maxRequests, burst int, window time.Duration) *WindowLimiter {
	return NewWindowLimiter(config.RateLimitConfig{
		Window:      window,
		MaxRequests: maxRequests,
		Burst:       burst,
	})
}

func TestWindowLimiter_AdmitThenReject(t *testing.T) {
	l := testLimiter(3, 0, time.Minute)

	for i := 0; i < 3; i++ {
		d := l.Allow("caller@example.com")
		if !d.Allowed {
			t.Fatalf("request %d rejected, want admitted", i+1)
		}
		if d.Remaining != 3-(i+1) {
			t.Errorf("request %d remaining = %d, want %d", i+1, d.Remaining, 3-(i+1))
		}
	}

	d := l.Allow("caller@example.com")
	if d.Allowed {
		t.Fatal("4th request admitted, want rejected")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v, want in (0, 1m]", d.RetryAfter)
	}
}

func TestWindowLimiter_IndependentCallers(t *testing.T) {
	l := testLimiter(1, 0, time.Minute)

	if !l.Allow("a@example.com").Allowed {
		t.Fatal("first caller rejected")
	}
	if !l.Allow("b@example.com").Allowed {
		t.Error("second caller rejected; counters must be per caller")
	}
	if l.Allow("a@example.com").Allowed {
		t.Error("first caller admitted past its limit")
	}
}

func TestWindowLimiter_WindowReset(t *testing.T) {
	l := testLimiter(1, 0, time.Minute)

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	l.Allow("caller@example.com")
	if l.Allow("caller@example.com").Allowed {
		t.Fatal("second request in window admitted")
	}

	// The counter resets wholesale once the window elapses.
	now = base.Add(time.Minute)
	if !l.Allow("caller@example.com").Allowed {
		t.Error("request after window reset rejected")
	}
}

func TestWindowLimiter_BurstHeadroom(t *testing.T) {
	l := testLimiter(2, 3, time.Minute)

	for i := 0; i < 5; i++ {
		if !l.Allow("caller@example.com").Allowed {
			t.Fatalf("request %d rejected, want 5 admitted with burst", i+1)
		}
	}
	if l.Allow("caller@example.com").Allowed {
		t.Error("6th request admitted past limit+burst")
	}
}

func TestWindowLimiter_AnonymousFallback(t *testing.T) {
	l := testLimiter(2, 0, time.Minute)

	// Empty keys share the anonymous bucket.
	l.Allow("")
	l.Allow("")
	if l.Allow("").Allowed {
		t.Error("anonymous requests not counted in a shared bucket")
	}
	if !l.Allow("named@example.com").Allowed {
		t.Error("named caller affected by the anonymous bucket")
	}
}

func TestWindowLimiter_SweepRemovesIdleRecords(t *testing.T) {
	l := testLimiter(10, 0, time.Minute)

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	l.Allow("idle@example.com")
	now = base.Add(90 * time.Second)
	l.Allow("active@example.com")

	// idle has been quiet for 1.5 windows: kept.
	if removed := l.Sweep(); removed != 0 {
		t.Fatalf("Sweep removed %d records before two idle windows", removed)
	}

	now = base.Add(4 * time.Minute)
	if removed := l.Sweep(); removed != 2 {
		t.Errorf("Sweep removed %d records, want 2", removed)
	}
	if l.Tracked() != 0 {
		t.Errorf("Tracked = %d after sweep, want 0", l.Tracked())
	}
}
