// Package cyre is the public embedding surface: Runtime wires the channel
// compiler, call engine, subscription registry, payload state, TimeKeeper,
// and breathing controller into the handful of calls an embedding program
// makes (Action/On/Call/Get/Forget/Pause/Resume/Clear), the way the
// teacher's TaskManager is the one object cmd/ talks to instead of reaching
// into internal/task directly.
package cyre

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neuralline/cyre-go/internal/breathing"
	"github.com/neuralline/cyre-go/internal/callengine"
	"github.com/neuralline/cyre-go/internal/channel"
	"github.com/neuralline/cyre-go/internal/config"
	"github.com/neuralline/cyre-go/internal/cyrecore"
	"github.com/neuralline/cyre-go/internal/cyrelog"
	"github.com/neuralline/cyre-go/internal/pathindex"
	"github.com/neuralline/cyre-go/internal/payloadstate"
	"github.com/neuralline/cyre-go/internal/subscription"
	"github.com/neuralline/cyre-go/internal/timekeeper"
)

// Runtime is a single Cyre instance: one channel table, one subscription
// registry, one payload store, one TimeKeeper, one breathing controller.
type Runtime struct {
	cfg *config.GlobalConfig

	channels  *channel.Store
	subs      *subscription.Registry
	payloads  *payloadstate.Store
	paths     *pathindex.Index
	tk        *timekeeper.TimeKeeper
	breathing *breathing.Controller
	engine    *callengine.Engine
}

// New builds a Runtime from global configuration and starts its TimeKeeper.
// Pass nil to use config.Default().
func New(cfg *config.GlobalConfig) *Runtime {
	if cfg == nil {
		cfg = config.Default()
	}

	log := cyrelog.New(cfg.Log)

	channel.SetLogger(log)
	if cfg.Priority.Default != "" {
		channel.SetDefaultPriority(cyrecore.Priority(cfg.Priority.Default))
	}

	breathingCtl := breathing.New(toBreathingLimits(cfg.Breathing))
	tk := timekeeper.New(breathingCtl)
	tk.SetLogger(log)
	tk.SetMetricsEnabled(cfg.Metrics.Enabled)
	if cfg.TimeKeep.TickResolution > 0 {
		tk.SetTickResolution(cfg.TimeKeep.TickResolution)
	}
	tk.Start()

	r := &Runtime{
		cfg:       cfg,
		channels:  channel.NewStore(),
		subs:      subscription.NewRegistry(),
		payloads:  payloadstate.New(cfg.History.MaxEntries),
		paths:     pathindex.New(),
		tk:        tk,
		breathing: breathingCtl,
	}
	r.engine = callengine.New(r.channels, r.subs, r.payloads, r.tk, r.breathing)
	r.engine.SetLogger(log)
	r.engine.SetMetricsEnabled(cfg.Metrics.Enabled)
	return r
}

func toBreathingLimits(b config.BreathingConfig) breathing.Limits {
	return breathing.Limits{
		CPUMax:       b.CPUMax,
		MemMax:       b.MemMax,
		LoopLagMaxMS: b.LoopLagMaxMS,
		CallRateMax:  b.CallRateMax,
		BaseRate:     time.Duration(b.BaseRateMS) * time.Millisecond,
		MaxRate:      time.Duration(b.MaxRateMS) * time.Millisecond,
		RecoveryRate: time.Duration(b.RecoveryRateMS) * time.Millisecond,
		EnterStress:  b.RecuperationEnterStress,
		ExitStress:   b.RecuperationExitStress,
		MinRecovery:  b.MinRecovery,
	}
}

// Shut stops the TimeKeeper and releases scheduling resources. Call before
// discarding a Runtime.
func (r *Runtime) Shut() {
	r.tk.Stop()
}

// Action registers (or replaces) a channel from a declarative configuration,
// compiling it and indexing its path, if any.
func (r *Runtime) Action(cfg config.ChannelConfig) channel.Result {
	result := channel.Compile(cfg)
	r.channels.Set(result.Compiled)
	if cfg.Path != "" {
		_ = r.paths.Add(cfg.ID, cfg.Path)
	}
	return result
}

// On subscribes a handler to a channel id, returning an unsubscribe function.
func (r *Runtime) On(id string, h subscription.Handler) (unsubscribe func()) {
	return r.subs.On(id, h)
}

// Call invokes a channel by id with a payload.
func (r *Runtime) Call(ctx context.Context, id string, payload any) cyrecore.Response {
	return r.engine.Call(ctx, id, payload)
}

// Get returns the compiled channel for id, if registered.
func (r *Runtime) Get(id string) (*channel.Compiled, bool) {
	return r.channels.Get(id)
}

// Forget removes a channel, its subscription, and its path index entry.
func (r *Runtime) Forget(id string) bool {
	r.subs.Forget(id)
	r.paths.Remove(id)
	r.tk.Forget(id)
	return r.channels.Forget(id)
}

// Pause suspends a channel's active formation, preserving remaining time.
func (r *Runtime) Pause(id string) bool { return r.tk.Pause(id) }

// Resume reactivates a paused formation.
func (r *Runtime) Resume(id string) bool { return r.tk.Resume(id) }

// Clear wipes every channel, subscription, and payload — but not the path
// index's structural shape beyond what Forget already removes, since Clear
// is a full reset of runtime state.
func (r *Runtime) Clear() {
	for _, c := range r.channels.GetAll() {
		r.Forget(c.ID)
	}
	r.subs.Clear()
	r.payloads.Clear()
}

// Match finds every registered channel whose path matches pattern
// (supporting `*` and `**` wildcards), for Branch destruction and
// introspection.
func (r *Runtime) Match(pattern string) []pathindex.Match {
	return r.paths.Match(pattern)
}

// Branch returns a path-scoped facade rooted at prefix.
func (r *Runtime) Branch(prefix string) *Branch {
	return &Branch{rt: r, prefix: strings.TrimSuffix(prefix, "/")}
}

// Config returns the global configuration this Runtime was built from.
func (r *Runtime) Config() *config.GlobalConfig { return r.cfg }

func scopedID(prefix, id string) string {
	if prefix == "" {
		return id
	}
	return fmt.Sprintf("%s/%s", prefix, id)
}
