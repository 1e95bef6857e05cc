package failure

import (
	"testing"
	"time"
)

func TestDetector_NoHeartbeatsIsAvailable(t *testing.T) {
	d := New()
	if !d.IsAvailable() {
		t.Fatalf("a detector with no heartbeats yet should report available (Phi=0)")
	}
	if d.Phi() != 0 {
		t.Fatalf("expected Phi 0 before any heartbeat, got %v", d.Phi())
	}
}

func TestDetector_RegularHeartbeatsStayAvailable(t *testing.T) {
	d := New()
	base := time.Unix(0, 0)
	d.now = func() time.Time { return base }
	d.Heartbeat()

	for i := 1; i <= 20; i++ {
		base = base.Add(100 * time.Millisecond)
		d.now = func() time.Time { return base }
		d.Heartbeat()
	}

	if !d.IsAvailable() {
		t.Fatalf("regular 100ms heartbeats should keep the peer available, Phi=%v", d.Phi())
	}
}

func TestDetector_LongSilenceAfterRegularBeatsBecomesUnavailable(t *testing.T) {
	d := New()
	base := time.Unix(0, 0)
	d.now = func() time.Time { return base }
	d.Heartbeat()

	for i := 1; i <= 20; i++ {
		base = base.Add(100 * time.Millisecond)
		d.now = func() time.Time { return base }
		d.Heartbeat()
	}

	// Silence for far longer than the observed 100ms cadence.
	base = base.Add(10 * time.Second)
	d.now = func() time.Time { return base }

	if d.IsAvailable() {
		t.Fatalf("a 10s silence after a 100ms cadence should report unavailable, Phi=%v", d.Phi())
	}
}

func TestDetector_PhiIsMonotonicWithSilence(t *testing.T) {
	d := New()
	base := time.Unix(0, 0)
	d.now = func() time.Time { return base }
	d.Heartbeat()
	for i := 1; i <= 10; i++ {
		base = base.Add(50 * time.Millisecond)
		d.now = func() time.Time { return base }
		d.Heartbeat()
	}

	at1 := base.Add(200 * time.Millisecond)
	at2 := base.Add(2 * time.Second)
	phi1 := d.phiLocked(at1)
	phi2 := d.phiLocked(at2)
	if !(phi2 > phi1) {
		t.Fatalf("expected Phi to grow with elapsed silence: phi(200ms)=%v phi(2s)=%v", phi1, phi2)
	}
}
