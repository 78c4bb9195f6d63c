package rate

import (
	"testing"
	"time"
)

func TestMeterSeedAndAdd(t *testing.T) {
	m := New(1000, 200)
	if m.Completed() != 200 {
		t.Fatalf("Completed() = %d, want 200", m.Completed())
	}
	m.Add(100)
	if m.Completed() != 300 {
		t.Fatalf("Completed() = %d, want 300", m.Completed())
	}
	if pct := m.Percent(); pct != 30 {
		t.Fatalf("Percent() = %v, want 30", pct)
	}
}

func TestMeterETAZeroWhenNoRate(t *testing.T) {
	m := New(1000, 0)
	if eta := m.ETA(); eta != 0 {
		t.Fatalf("ETA() = %v, want 0 before any tick", eta)
	}
}

func TestMeterETAAfterTick(t *testing.T) {
	m := New(1000, 0)
	m.lastTick = time.Now().Add(-1 * time.Second)
	m.Add(500)
	m.Tick()

	if m.BytesPerSecond() <= 0 {
		t.Fatalf("BytesPerSecond() = %v, want > 0", m.BytesPerSecond())
	}
	if eta := m.ETA(); eta <= 0 {
		t.Fatalf("ETA() = %v, want > 0", eta)
	}
}

func TestMeterPercentCapsAt100(t *testing.T) {
	m := New(100, 0)
	m.Add(500)
	if pct := m.Percent(); pct != 100 {
		t.Fatalf("Percent() = %v, want 100", pct)
	}
}
