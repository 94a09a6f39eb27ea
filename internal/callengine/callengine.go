// Package callengine implements the hot path: lookup, blocked short-circuit,
// fast path, the protection bouncer (recuperation/throttle/debounce), the
// compiled pipeline, scheduling, and the handler invocation, producing the
// uniform response envelope every call() returns.
package callengine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/neuralline/cyre-go/internal/breathing"
	"github.com/neuralline/cyre-go/internal/channel"
	"github.com/neuralline/cyre-go/internal/config"
	"github.com/neuralline/cyre-go/internal/cyrecore"
	"github.com/neuralline/cyre-go/internal/cyrelog"
	"github.com/neuralline/cyre-go/internal/metrics"
	"github.com/neuralline/cyre-go/internal/payloadstate"
	"github.com/neuralline/cyre-go/internal/subscription"
	"github.com/neuralline/cyre-go/internal/timekeeper"
)

// Engine wires the channel store, subscriptions, payload state, TimeKeeper,
// and breathing controller into the nine-step call pipeline.
type Engine struct {
	channels   *channel.Store
	subs       *subscription.Registry
	payloads   *payloadstate.Store
	timeKeeper *timekeeper.TimeKeeper
	breathing  *breathing.Controller

	log            cyrelog.Logger
	metricsEnabled bool

	timerSeq atomic.Int64
}

// New returns a call engine over the given collaborators.
func New(channels *channel.Store, subs *subscription.Registry, payloads *payloadstate.Store, tk *timekeeper.TimeKeeper, breathingCtl *breathing.Controller) *Engine {
	return &Engine{
		channels:       channels,
		subs:           subs,
		payloads:       payloads,
		timeKeeper:     tk,
		breathing:      breathingCtl,
		log:            cyrelog.NewNop(),
		metricsEnabled: true,
	}
}

// SetLogger installs the logger rejection and handler-error branches report
// through. Runtime.New calls this once during startup.
func (e *Engine) SetLogger(l cyrelog.Logger) {
	if l != nil {
		e.log = l
	}
}

// SetMetricsEnabled toggles whether Call records cyre_calls_total and
// cyre_rejections_total, mirroring config.GlobalConfig.Metrics.Enabled.
func (e *Engine) SetMetricsEnabled(enabled bool) {
	e.metricsEnabled = enabled
}

func (e *Engine) recordRejection(channelID, reason string) {
	if e.metricsEnabled {
		metrics.RejectionsTotal.WithLabelValues(channelID, reason).Inc()
		metrics.CallsTotal.WithLabelValues(channelID, metrics.OutcomeRejected).Inc()
	}
	e.log.WithField("channel", channelID).Debugf("call rejected: %s", reason)
}

func (e *Engine) recordOutcome(channelID, outcome string) {
	if e.metricsEnabled {
		metrics.CallsTotal.WithLabelValues(channelID, outcome).Inc()
	}
}

// Call invokes a channel by id with a payload.
func (e *Engine) Call(ctx context.Context, id string, payload any) cyrecore.Response {
	return e.call(ctx, id, payload, false, false)
}

func (e *Engine) call(ctx context.Context, id string, payload any, bypassDebounce, bypassScheduling bool) cyrecore.Response {
	// 1. Lookup.
	c, ok := e.channels.Get(id)
	if !ok {
		e.recordRejection(id, "not_found")
		return cyrecore.Fail("channel not found", nil)
	}

	// 2. Blocked short-circuit.
	if c.IsBlocked {
		e.recordRejection(id, "blocked")
		return cyrecore.Fail(c.BlockReason, nil)
	}

	// 3. Fast path.
	if c.HasFastPath {
		return e.invokeHandler(ctx, c, payload, payload)
	}

	// 4. Bouncer: recuperation -> throttle -> debounce.
	if e.breathing != nil && e.breathing.IsRecuperating() && c.Priority != cyrecore.PriorityCritical {
		e.recordRejection(id, "recuperating")
		return cyrecore.Fail("rejected: runtime is recuperating", map[string]any{"priority": string(c.Priority)})
	}

	now := cyrecore.NowMillis()

	if c.Throttle > 0 {
		last := c.LastExecTime()
		if last > 0 {
			elapsed := now - last
			throttleMS := c.Throttle.Milliseconds()
			if elapsed < throttleMS {
				e.recordRejection(id, "throttled")
				return cyrecore.Fail("throttled", map[string]any{"remaining": throttleMS - elapsed})
			}
		}
	}

	if c.Debounce > 0 && !bypassDebounce {
		if resp, debounced := e.debounce(ctx, c, payload, now); debounced {
			e.recordOutcome(id, metrics.OutcomeOK)
			return resp
		}
	}

	// origPayload is the pre-transform value detectChanges compares future
	// calls against; the pipeline below may reassign payload to a
	// post-transform value for the handler, but the stored "current" basis
	// must stay the value that entered the pipeline (spec §9 resolution).
	origPayload := payload

	// 6. Pipeline.
	if len(c.Pipeline) > 0 {
		result, halted, haltMeta := e.runPipeline(c, payload)
		if result.rejected {
			e.recordRejection(id, "pipeline")
			return cyrecore.Fail(result.message, nil)
		}
		if halted {
			e.recordOutcome(id, metrics.OutcomeOK)
			return cyrecore.Ok(nil, "", haltMeta)
		}
		payload = result.payload
	}

	// 7. Scheduling.
	if c.HasScheduling && !bypassScheduling {
		e.recordOutcome(id, metrics.OutcomeOK)
		return e.scheduleFirst(ctx, c, payload)
	}

	// 8-9. Handler + post.
	return e.invokeHandler(ctx, c, payload, origPayload)
}

func (e *Engine) debounce(ctx context.Context, c *channel.Compiled, payload any, now int64) (cyrecore.Response, bool) {
	timerID, firstCall := c.DebounceState()
	if firstCall == 0 {
		firstCall = now
	}

	if c.MaxWait > 0 && now-firstCall >= c.MaxWait.Milliseconds() {
		c.ClearDebounceState()
		return cyrecore.Response{}, false // burst window exceeded: let this call fall through to the pipeline
	}

	if timerID != "" {
		e.timeKeeper.Forget(timerID)
	}

	newTimerID := fmt.Sprintf("%s::debounce::%d", c.ID, e.timerSeq.Add(1))
	c.SetDebounceState(newTimerID, firstCall)
	e.payloads.Set(c.ID, payload, cyrecore.SourceCall, now)

	e.timeKeeper.Keep(newTimerID, c.Debounce, func(cbCtx context.Context) error {
		latest, _ := e.payloads.Get(c.ID)
		c.ClearDebounceState() // the burst resolves here; the next call starts a new one
		e.call(cbCtx, c.ID, latest, true, false)
		return nil
	}, config.RepeatN(1), 0, 0, c.Priority)

	return cyrecore.Ok(nil, "debounced", map[string]any{"delay": c.Debounce.Milliseconds()}), true
}

type pipelineOutcome struct {
	payload  any
	rejected bool
	message  string
}

func (e *Engine) runPipeline(c *channel.Compiled, payload any) (pipelineOutcome, bool, map[string]any) {
	current := payload
	for _, stage := range c.Pipeline {
		if stage.Kind == cyrecore.StageDetectChanges {
			if !e.payloads.DetectChanges(c.ID, payload) {
				return pipelineOutcome{payload: current}, true, map[string]any{"noChange": true}
			}
			continue
		}

		result := stage.Fn(current)
		if !result.OK {
			return pipelineOutcome{rejected: true, message: result.Error}, false, nil
		}
		if result.Halt {
			meta := result.Meta
			if meta == nil {
				meta = map[string]any{}
			}
			return pipelineOutcome{payload: current}, true, meta
		}
		current = result.Data
	}
	return pipelineOutcome{payload: current}, false, nil
}

func (e *Engine) scheduleFirst(ctx context.Context, c *channel.Compiled, payload any) cyrecore.Response {
	duration := c.Interval
	if duration == 0 {
		duration = c.Delay
	}
	e.timeKeeper.Keep(c.ID, duration, func(cbCtx context.Context) error {
		e.call(cbCtx, c.ID, payload, true, true)
		return nil
	}, c.Repeat, c.Delay, c.Interval, c.Priority)

	return cyrecore.Ok(nil, "scheduled", map[string]any{
		"delay":    c.Delay.Milliseconds(),
		"interval": c.Interval.Milliseconds(),
		"repeat":   c.Repeat.Value(),
	})
}

// invokeHandler runs the subscribed handler with execPayload (the
// post-transform value, if any) and records storePayload — the pre-transform
// value that entered the pipeline this call — as the channel's "current"
// payload, since that's the basis detectChanges compares the next call
// against, not whatever the transform stage produced.
func (e *Engine) invokeHandler(ctx context.Context, c *channel.Compiled, execPayload, storePayload any) cyrecore.Response {
	h, ok := e.subs.Get(c.ID)
	if !ok {
		e.recordRejection(c.ID, "no_subscriber")
		return cyrecore.Fail("no subscriber", nil)
	}

	result, err := h(ctx, execPayload)
	now := cyrecore.NowMillis()

	if err != nil {
		e.recordOutcome(c.ID, metrics.OutcomeError)
		e.log.WithField("channel", c.ID).WithError(err).Error("handler failed")
		return cyrecore.FailErr("handler error", err.Error(), nil)
	}

	c.SetLastExecTime(now)
	e.payloads.Set(c.ID, storePayload, cyrecore.SourceCall, now)

	e.recordOutcome(c.ID, metrics.OutcomeOK)
	return cyrecore.Ok(result, "", nil)
}
