// Package rate implements a tick-based throughput/ETA estimator,
// grounded on the teacher's multiStreamState.addBytes/getDownloaded
// atomic counter in internal/core/downloader/multistream.go but
// reworked into a windowed meter (spec.md §4.F) since the spec wants a
// ticking rate feeding ETA rather than a total-elapsed-time average.
package rate

import (
	"sync/atomic"
	"time"
)

// Meter tracks bytes completed and estimates throughput by
// exponentially smoothing the rate measured over each tick. It is owned exclusively by the
// receiver (spec.md §5 "Rate meter: owned by the receiver, not
// shared"), so its internal fields need no locking beyond the atomic
// byte counter workers may add to concurrently before the receiver
// reads it.
type Meter struct {
	total     uint64
	completed atomic.Uint64
	lastTick  time.Time
	lastBytes uint64
	bytesPerS float64
}

// New creates a meter seeded with the current completed count, as the
// HTTP/M3U8 receivers do on startup (spec.md §4.J/§4.K).
func New(total, seedCompleted uint64) *Meter {
	m := &Meter{total: total, lastTick: time.Now()}
	m.completed.Store(seedCompleted)
	m.lastBytes = seedCompleted
	return m
}

// Add records n more completed bytes.
func (m *Meter) Add(n uint64) {
	m.completed.Add(n)
}

// Tick recomputes the smoothed rate from elapsed time since the last
// tick; call this on the receiver's 2-second status tick.
func (m *Meter) Tick() {
	now := time.Now()
	elapsed := now.Sub(m.lastTick).Seconds()
	if elapsed <= 0 {
		return
	}
	cur := m.completed.Load()
	delta := cur - m.lastBytes
	instant := float64(delta) / elapsed

	const smoothing = 0.3
	if m.bytesPerS == 0 {
		m.bytesPerS = instant
	} else {
		m.bytesPerS = smoothing*instant + (1-smoothing)*m.bytesPerS
	}

	m.lastTick = now
	m.lastBytes = cur
}

// Completed returns the total bytes recorded so far.
func (m *Meter) Completed() uint64 {
	return m.completed.Load()
}

// BytesPerSecond returns the current smoothed rate.
func (m *Meter) BytesPerSecond() float64 {
	return m.bytesPerS
}

// ETA estimates remaining time given the current rate, or 0 if the
// rate is unknown or the transfer is already complete.
func (m *Meter) ETA() time.Duration {
	if m.bytesPerS <= 0 || m.total == 0 {
		return 0
	}
	remaining := int64(m.total) - int64(m.completed.Load())
	if remaining <= 0 {
		return 0
	}
	seconds := float64(remaining) / m.bytesPerS
	return time.Duration(seconds * float64(time.Second))
}

// Percent returns completion percentage in [0, 100].
func (m *Meter) Percent() float64 {
	if m.total == 0 {
		return 0
	}
	pct := float64(m.completed.Load()) / float64(m.total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
