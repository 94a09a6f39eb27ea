// Package breathing implements the process-wide adaptive stress estimator:
// it turns periodic CPU/memory/loop-lag/call-rate samples into a pacing
// rate and a recuperation flag that gates non-critical work.
package breathing

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tevino/abool"
)

// Pattern is the controller's coarse operating mode.
type Pattern string

const (
	PatternNormal   Pattern = "NORMAL"
	PatternRecovery Pattern = "RECOVERY"
)

// Sample is one periodic stress observation.
type Sample struct {
	CPU       float64 // 0..1
	Mem       float64 // 0..1
	LoopLagMS float64
	CallRate  float64 // calls/sec
}

// Limits configures the stress normalizers, rate ladder, and recuperation
// hysteresis.
type Limits struct {
	CPUMax       float64
	MemMax       float64
	LoopLagMaxMS float64
	CallRateMax  float64

	BaseRate     time.Duration
	MaxRate      time.Duration
	RecoveryRate time.Duration

	EnterStress float64 // stress at/above which recuperation engages (default 0.8, via the s>=0.8 rung)
	ExitStress  float64 // hysteresis band to leave recuperation (default 0.7)
	MinRecovery time.Duration
}

// Snapshot is a read-only point-in-time view of breathing state.
type Snapshot struct {
	CurrentRate    time.Duration
	BaseRate       time.Duration
	Stress         float64
	IsRecuperating bool
	Pattern        Pattern
	BreathCount    int64
	LastBreath     int64 // unix millis
}

// Controller is the breathing state machine. Safe for concurrent use: reads
// and updateBreath calls may arrive from any goroutine (the TimeKeeper
// dispatcher, the call engine's recuperation check, a sampling loop).
type Controller struct {
	limits Limits

	mu          sync.RWMutex
	currentRate time.Duration
	stress      float64
	pattern     Pattern
	recupSince  int64 // unix millis the controller entered recuperation; 0 when not recuperating

	recuperating *abool.AtomicBool // matches the teacher's hand-rolled atomic.CompareAndSwapInt32 flag in eventbus/bus.go, library-backed
	breathCount  atomic.Int64
	lastBreath   atomic.Int64
}

// New returns a controller starting in NORMAL pattern at the base rate.
func New(limits Limits) *Controller {
	if limits.EnterStress == 0 {
		limits.EnterStress = 0.8
	}
	if limits.ExitStress == 0 {
		limits.ExitStress = 0.7
	}
	return &Controller{
		limits:       limits,
		currentRate:  limits.BaseRate,
		pattern:      PatternNormal,
		recuperating: abool.New(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func ratio(value, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return value / max
}

// UpdateBreath folds a new sample into the controller and returns the
// resulting snapshot. now is unix millis, passed in so callers control the
// clock (tests included).
func (c *Controller) UpdateBreath(sample Sample, now int64) Snapshot {
	stress := clamp01(maxOf(
		ratio(sample.CPU, c.limits.CPUMax),
		ratio(sample.Mem, c.limits.MemMax),
		ratio(sample.LoopLagMS, c.limits.LoopLagMaxMS),
		ratio(sample.CallRate, c.limits.CallRateMax),
	))

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stress = stress
	c.breathCount.Add(1)
	c.lastBreath.Store(now)

	switch {
	case stress >= c.limits.EnterStress:
		c.currentRate = c.limits.RecoveryRate
		if !c.recuperating.IsSet() {
			c.recuperating.Set()
			c.recupSince = now
		}
		c.pattern = PatternRecovery
	case stress >= 0.5:
		c.currentRate = c.limits.MaxRate
	default:
		c.currentRate = c.limits.BaseRate
	}

	if c.recuperating.IsSet() {
		elapsed := time.Duration(now-c.recupSince) * time.Millisecond
		if stress < c.limits.ExitStress && elapsed >= c.limits.MinRecovery {
			c.recuperating.UnSet()
			c.recupSince = 0
			c.pattern = PatternNormal
		} else {
			c.pattern = PatternRecovery
		}
	}

	return c.snapshotLocked()
}

// Snapshot returns the current breathing state without taking a new sample.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		CurrentRate:    c.currentRate,
		BaseRate:       c.limits.BaseRate,
		Stress:         c.stress,
		IsRecuperating: c.recuperating.IsSet(),
		Pattern:        c.pattern,
		BreathCount:    c.breathCount.Load(),
		LastBreath:     c.lastBreath.Load(),
	}
}

// IsRecuperating is a cheap lock-free check for the call engine's bouncer.
func (c *Controller) IsRecuperating() bool {
	return c.recuperating.IsSet()
}

func maxOf(values ...float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
