package breathing

import (
	"testing"
	"time"
)

func testLimits() Limits {
	return Limits{
		CPUMax:       1.0,
		MemMax:       1.0,
		LoopLagMaxMS: 100,
		CallRateMax:  1000,
		BaseRate:     50 * time.Millisecond,
		MaxRate:      2 * time.Second,
		RecoveryRate: 500 * time.Millisecond,
		EnterStress:  0.8,
		ExitStress:   0.7,
		MinRecovery:  time.Second,
	}
}

func TestLowStressUsesBaseRate(t *testing.T) {
	c := New(testLimits())
	snap := c.UpdateBreath(Sample{CPU: 0.1, Mem: 0.1, LoopLagMS: 1, CallRate: 1}, 0)
	if snap.CurrentRate != c.limits.BaseRate {
		t.Errorf("expected base rate, got %v", snap.CurrentRate)
	}
	if snap.IsRecuperating {
		t.Error("should not be recuperating at low stress")
	}
}

func TestHighStressEntersRecuperation(t *testing.T) {
	c := New(testLimits())
	snap := c.UpdateBreath(Sample{CPU: 0.95, Mem: 0.1, LoopLagMS: 1, CallRate: 1}, 0)
	if !snap.IsRecuperating {
		t.Error("expected recuperation at stress >= enterStress")
	}
	if snap.Pattern != PatternRecovery {
		t.Errorf("expected RECOVERY pattern, got %s", snap.Pattern)
	}
	if snap.CurrentRate != c.limits.RecoveryRate {
		t.Errorf("expected recovery rate, got %v", snap.CurrentRate)
	}
}

func TestRecuperationRequiresHysteresisAndMinRecovery(t *testing.T) {
	c := New(testLimits())
	c.UpdateBreath(Sample{CPU: 0.95}, 0)
	if !c.IsRecuperating() {
		t.Fatal("expected to enter recuperation")
	}

	// Stress drops below exit band immediately, but not enough time elapsed.
	snap := c.UpdateBreath(Sample{CPU: 0.1}, 100)
	if !snap.IsRecuperating {
		t.Error("should still be recuperating before minRecovery elapses")
	}

	// Enough time has passed and stress stays low: should exit.
	snap = c.UpdateBreath(Sample{CPU: 0.1}, 1500)
	if snap.IsRecuperating {
		t.Error("expected recuperation to exit after minRecovery with low stress")
	}
	if snap.Pattern != PatternNormal {
		t.Errorf("expected NORMAL pattern after exit, got %s", snap.Pattern)
	}
}

func TestMediumStressUsesMaxRate(t *testing.T) {
	c := New(testLimits())
	snap := c.UpdateBreath(Sample{CPU: 0.6}, 0)
	if snap.CurrentRate != c.limits.MaxRate {
		t.Errorf("expected max rate at medium stress, got %v", snap.CurrentRate)
	}
}
