// Package failure implements the adaptive accrual failure detector
// spec.md §4.3 requires: it observes heartbeat arrivals and, from the
// recent inter-arrival distribution, estimates the probability (phi)
// that no heartbeat arriving by now means the peer is dead.
package failure

import (
	"math"
	"sync"
	"time"
)

const (
	defaultWindow    = 100
	defaultThreshold = 8.0
	// minStdDeviation avoids a near-zero variance turning a single
	// slightly-late heartbeat into an immediate Phi spike.
	minStdDeviation = 50 * time.Millisecond
)

// Detector is a phi-accrual failure detector over one peer's heartbeat
// stream. Heartbeat and Phi/IsAvailable are safe for concurrent use.
type Detector struct {
	mu        sync.Mutex
	threshold float64
	window    int
	intervals []float64 // milliseconds
	lastBeat  time.Time
	now       func() time.Time
}

// New builds a Detector using the default threshold (8.0) and sample
// window (100), matching common phi-accrual defaults (the same
// ballpark as the threshold used by Cassandra/Akka's accrual
// detectors, and consistent with the "adaptive accrual" vocabulary in
// spec.md §4.3 and §3).
func New() *Detector {
	return &Detector{
		threshold: defaultThreshold,
		window:    defaultWindow,
		now:       time.Now,
	}
}

// Heartbeat records an arrival. Call on every inbound Ping
// (spec.md §4.3).
func (d *Detector) Heartbeat() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if !d.lastBeat.IsZero() {
		interval := now.Sub(d.lastBeat).Seconds() * 1000
		d.intervals = append(d.intervals, interval)
		if len(d.intervals) > d.window {
			d.intervals = d.intervals[len(d.intervals)-d.window:]
		}
	}
	d.lastBeat = now
}

// Phi returns the current suspicion level: 0 means "just heard from
// it", increasing without bound as silence lengthens relative to the
// observed interval distribution.
func (d *Detector) Phi() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phiLocked(d.now())
}

func (d *Detector) phiLocked(at time.Time) float64 {
	if d.lastBeat.IsZero() || len(d.intervals) == 0 {
		return 0
	}
	mean, stddev := meanStdDev(d.intervals)
	if stddev < float64(minStdDeviation/time.Millisecond) {
		stddev = float64(minStdDeviation / time.Millisecond)
	}
	elapsed := at.Sub(d.lastBeat).Seconds() * 1000
	p := survival(elapsed, mean, stddev)
	if p <= 0 {
		return math.Inf(1)
	}
	return -math.Log10(p)
}

// IsAvailable reports whether the peer should still be considered
// alive, i.e. Phi is below the configured threshold. Mirrors the
// CheckFailure() poll in spec.md §4.3.
func (d *Detector) IsAvailable() bool {
	return d.Phi() < d.threshold
}

// survival approximates P(interval > elapsed) assuming the observed
// inter-arrival intervals are normally distributed, via the
// complementary error function.
func survival(elapsed, mean, stddev float64) float64 {
	y := (elapsed - mean) / (stddev * math.Sqrt2)
	return 0.5 * math.Erfc(y)
}

func meanStdDev(xs []float64) (mean, stddev float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / n
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	stddev = math.Sqrt(sq / n)
	return mean, stddev
}
