// Package channel implements the channel compiler and store: it turns a
// declarative config.ChannelConfig into a validated, pre-compiled Compiled
// record with a function-reference pipeline, the way the teacher's
// config.TaskConfig.Validate() plus task.Manager.Create() turns a TaskConfig
// into a running Task, minus the phased goroutine wiring Cyre doesn't need.
package channel

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/neuralline/cyre-go/internal/config"
	"github.com/neuralline/cyre-go/internal/cyrecore"
	"github.com/neuralline/cyre-go/internal/cyrelog"
	"github.com/neuralline/cyre-go/internal/pathindex"
)

var idPattern = regexp.MustCompile(`[/\\]`)

// logger is package-level like the teacher's task.Manager default logger:
// Compile is a free function with no constructor to thread a Logger
// through, so SetLogger swaps it for every subsequent Compile call.
var logger cyrelog.Logger = cyrelog.NewNop()

// SetLogger installs the logger Compile reports blocked registrations
// through. Runtime.New calls this once during startup.
func SetLogger(l cyrelog.Logger) {
	if l != nil {
		logger = l
	}
}

// defaultPriority is the priority a channel compiles with when its config
// leaves Priority unset, sourced from config.GlobalConfig.Priority.Default.
var defaultPriority = cyrecore.PriorityMedium

// SetDefaultPriority installs the configured default priority. Runtime.New
// calls this once during startup from cfg.Priority.Default.
func SetDefaultPriority(p cyrecore.Priority) {
	if p != "" {
		defaultPriority = p
	}
}

// Compiled is the channel record produced by Compile: the definition plus
// derived flags and a resolved pipeline. Exactly one of {IsBlocked,
// HasFastPath, HasProtections/HasProcessing/HasScheduling} determines the
// call-time strategy; the derived flags never change after compilation.
type Compiled struct {
	ID          string
	Name        string
	Type        string
	Description string
	Tags        []string
	Version     string

	Path  string
	Group string

	Throttle time.Duration
	Debounce time.Duration
	MaxWait  time.Duration
	Block    bool
	Priority cyrecore.Priority

	Delay    time.Duration
	Interval time.Duration
	Repeat   config.Repeat

	Required      cyrecore.Required
	DetectChanges bool

	IsBlocked      bool
	BlockReason    string
	HasFastPath    bool
	HasProtections bool
	HasProcessing  bool
	HasScheduling  bool

	Pipeline []cyrecore.Stage

	// Extra carries forward the unknown fields a decoded wire config had,
	// kept rather than dropped per the forward-compat warning rule.
	Extra map[string]any

	runtime runtimeState
}

// runtimeState holds the volatile per-channel fields the call engine
// mutates on every call. lastExecTime/executionCount are hit on every call
// regardless of channel contention, so they're plain atomics rather than
// mutex-guarded; debounceTimerID/firstDebounceCall only move together under
// the bouncer and stay behind mu (concurrent calls to the same channel do
// not serialize — spec §4.5's "Concurrency within a channel").
type runtimeState struct {
	mu                sync.Mutex
	lastExecTime      atomic.Int64
	executionCount    atomic.Int64
	debounceTimerID   string
	firstDebounceCall int64
}

// LastExecTime returns the last successful handler invocation time.
func (c *Compiled) LastExecTime() int64 {
	return c.runtime.lastExecTime.Load()
}

// SetLastExecTime records a handler invocation time and bumps the execution
// counter.
func (c *Compiled) SetLastExecTime(t int64) {
	c.runtime.lastExecTime.Store(t)
	c.runtime.executionCount.Inc()
}

// ExecutionCount returns the number of completed handler invocations.
func (c *Compiled) ExecutionCount() int64 {
	return c.runtime.executionCount.Load()
}

// DebounceState returns the pending debounce timer id (if any) and the time
// the current debounce burst started.
func (c *Compiled) DebounceState() (timerID string, firstCall int64) {
	c.runtime.mu.Lock()
	defer c.runtime.mu.Unlock()
	return c.runtime.debounceTimerID, c.runtime.firstDebounceCall
}

// SetDebounceState updates the pending debounce timer id and burst-start
// time.
func (c *Compiled) SetDebounceState(timerID string, firstCall int64) {
	c.runtime.mu.Lock()
	defer c.runtime.mu.Unlock()
	c.runtime.debounceTimerID = timerID
	c.runtime.firstDebounceCall = firstCall
}

// ClearDebounceState resets debounce tracking after a burst resolves.
func (c *Compiled) ClearDebounceState() {
	c.SetDebounceState("", 0)
}

// Result is what Compile returns: the record (even when blocked, so a
// later Get still resolves to a visible channel instead of "unknown"),
// plus diagnostics.
type Result struct {
	Compiled *Compiled
	Errors   []string
	Warnings []string
	Blocked  bool
}

// Compile validates cfg field by field, runs the cross-rule table, and
// assembles the pipeline in user-declared order.
func Compile(cfg config.ChannelConfig) Result {
	var errs, warnings []string
	var mErr error
	blocked := false
	blockReason := ""

	blockNow := func(reason string) {
		if !blocked {
			blocked = true
			blockReason = reason
		}
	}

	if cfg.ID == "" {
		blockNow("id is required")
		mErr = multierr.Append(mErr, fmt.Errorf("id is required"))
	} else if idPattern.MatchString(cfg.ID) {
		blockNow("id must not contain '/' or '\\'")
		mErr = multierr.Append(mErr, fmt.Errorf("id %q must not contain '/' or '\\'", cfg.ID))
	}

	if cfg.Path != "" && !pathindex.IsValidPath(cfg.Path) {
		blockNow(fmt.Sprintf("invalid path %q", cfg.Path))
		mErr = multierr.Append(mErr, fmt.Errorf("invalid path %q", cfg.Path))
	}

	if cfg.Block {
		blockNow("blocked by configuration")
	}

	// Cross-rules. Errors promote to blocked; warnings do not.
	if cfg.Interval > 0 && !cfg.Repeat.IsSet() {
		mErr = multierr.Append(mErr, fmt.Errorf("interval requires repeat to be set"))
		blockNow("interval requires repeat")
	}
	if cfg.MaxWait > 0 && cfg.Debounce == 0 {
		mErr = multierr.Append(mErr, fmt.Errorf("maxWait requires debounce to be set"))
		blockNow("maxWait requires debounce")
	}
	if cfg.Throttle > 0 && cfg.Debounce > 0 {
		mErr = multierr.Append(mErr, fmt.Errorf("throttle and debounce are mutually exclusive"))
		blockNow("throttle and debounce are mutually exclusive")
	}
	if cfg.MaxWait > 0 && cfg.Debounce > 0 && cfg.MaxWait <= cfg.Debounce {
		mErr = multierr.Append(mErr, fmt.Errorf("maxWait must be greater than debounce"))
		blockNow("maxWait must be greater than debounce")
	}
	if cfg.Throttle > 0 && cfg.Throttle < 16*time.Millisecond {
		warnings = append(warnings, "throttle below 16ms rarely has effect")
	}
	if cfg.Debounce > 0 && cfg.Debounce < 100*time.Millisecond {
		warnings = append(warnings, "debounce below 100ms rarely has effect")
	}
	if cfg.Interval > 0 && cfg.Interval < time.Second {
		warnings = append(warnings, "interval below 1000ms is unusually aggressive")
	}
	if cfg.Schema != nil && cfg.Required == cyrecore.RequiredFalse {
		warnings = append(warnings, "schema without required allows empty payloads through validation")
	}
	if cfg.Transform != nil && !cfg.DetectChanges {
		warnings = append(warnings, "transform without detectChanges recomputes on every call")
	}
	if cfg.Repeat.IsBlocking() {
		blockNow("repeat:0 blocks the channel at registration")
	}
	if len(cfg.Extra) > 0 {
		keys := make([]string, 0, len(cfg.Extra))
		for k := range cfg.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		warnings = append(warnings, fmt.Sprintf("unknown fields kept for forward-compat: %s", strings.Join(keys, ", ")))
	}

	if mErr != nil {
		for _, e := range multierr.Errors(mErr) {
			errs = append(errs, e.Error())
		}
	}

	pipeline := assemblePipeline(cfg)

	hasProtections := cfg.Throttle > 0 || cfg.Debounce > 0
	hasProcessing := len(pipeline) > 0
	hasScheduling := cfg.Delay > 0 || cfg.Interval > 0 || cfg.Repeat.IsSet()
	hasFastPath := !(hasProtections || hasProcessing || hasScheduling)

	compiled := &Compiled{
		ID:             cfg.ID,
		Name:           cfg.Name,
		Type:           cfg.Type,
		Description:    cfg.Description,
		Tags:           cfg.Tags,
		Version:        cfg.Version,
		Path:           cfg.Path,
		Group:          cfg.Group,
		Throttle:       cfg.Throttle,
		Debounce:       cfg.Debounce,
		MaxWait:        cfg.MaxWait,
		Block:          cfg.Block,
		Priority:       cfg.Priority,
		Delay:          cfg.Delay,
		Interval:       cfg.Interval,
		Repeat:         cfg.Repeat,
		Required:       cfg.Required,
		DetectChanges:  cfg.DetectChanges,
		IsBlocked:      blocked,
		BlockReason:    blockReason,
		HasFastPath:    hasFastPath && !blocked,
		HasProtections: hasProtections,
		HasProcessing:  hasProcessing,
		HasScheduling:  hasScheduling,
		Pipeline:       pipeline,
		Extra:          cfg.Extra,
	}

	if compiled.Priority == "" {
		compiled.Priority = defaultPriority
	}

	if compiled.IsBlocked {
		logger.WithField("channel", compiled.ID).Warn("channel blocked: " + compiled.BlockReason)
	}

	return Result{Compiled: compiled, Errors: errs, Warnings: warnings, Blocked: blocked}
}

// canonicalOrder is the fallback pipeline order for configs assembled
// without config.Builder (e.g. decoded straight from YAML), matching the
// field order enumerated in the action() options table.
var canonicalOrder = []cyrecore.StageKind{
	cyrecore.StageRequired,
	cyrecore.StageSchema,
	cyrecore.StageCondition,
	cyrecore.StageSelector,
	cyrecore.StageTransform,
	cyrecore.StageDetectChanges,
}

func assemblePipeline(cfg config.ChannelConfig) []cyrecore.Stage {
	order := cfg.StageOrder
	if len(order) == 0 {
		order = canonicalOrder
	}

	var pipeline []cyrecore.Stage
	for _, kind := range order {
		if stage, ok := buildStage(kind, cfg); ok {
			pipeline = append(pipeline, stage)
		}
	}
	return pipeline
}

func buildStage(kind cyrecore.StageKind, cfg config.ChannelConfig) (cyrecore.Stage, bool) {
	switch kind {
	case cyrecore.StageRequired:
		if cfg.Required == cyrecore.RequiredFalse {
			return cyrecore.Stage{}, false
		}
		mode := cfg.Required
		return cyrecore.Stage{Kind: kind, Fn: func(payload any) cyrecore.StageResult {
			if payload == nil {
				return cyrecore.StageResult{OK: false, Blocking: true, Error: "payload is required"}
			}
			if mode == cyrecore.RequiredNonEmpty {
				if s, ok := payload.(string); ok && strings.TrimSpace(s) == "" {
					return cyrecore.StageResult{OK: false, Blocking: true, Error: "payload must be non-empty"}
				}
			}
			return cyrecore.StageResult{OK: true, Data: payload}
		}}, true

	case cyrecore.StageSchema:
		if cfg.Schema == nil {
			return cyrecore.Stage{}, false
		}
		fn := cfg.Schema
		return cyrecore.Stage{Kind: kind, Fn: func(payload any) cyrecore.StageResult {
			v, err := fn(payload)
			if err != nil {
				return cyrecore.StageResult{OK: false, Blocking: true, Error: err.Error()}
			}
			return cyrecore.StageResult{OK: true, Data: v}
		}}, true

	case cyrecore.StageCondition:
		if cfg.Condition == nil {
			return cyrecore.Stage{}, false
		}
		fn := cfg.Condition
		return cyrecore.Stage{Kind: kind, Fn: func(payload any) cyrecore.StageResult {
			if !fn(payload) {
				return cyrecore.StageResult{OK: false, Error: "condition not satisfied"}
			}
			return cyrecore.StageResult{OK: true, Data: payload}
		}}, true

	case cyrecore.StageSelector:
		if cfg.Selector == nil {
			return cyrecore.Stage{}, false
		}
		fn := cfg.Selector
		return cyrecore.Stage{Kind: kind, Fn: func(payload any) cyrecore.StageResult {
			return cyrecore.StageResult{OK: true, Data: fn(payload)}
		}}, true

	case cyrecore.StageTransform:
		if cfg.Transform == nil {
			return cyrecore.Stage{}, false
		}
		fn := cfg.Transform
		return cyrecore.Stage{Kind: kind, Fn: func(payload any) cyrecore.StageResult {
			return cyrecore.StageResult{OK: true, Data: fn(payload)}
		}}, true

	case cyrecore.StageDetectChanges:
		if !cfg.DetectChanges {
			return cyrecore.Stage{}, false
		}
		// The comparison function itself is wired in by the caller (the
		// call engine has access to payload state; the compiler does not),
		// so this stage is a marker resolved at call time. See
		// callengine's runPipeline.
		return cyrecore.Stage{Kind: kind, Fn: nil}, true
	}
	return cyrecore.Stage{}, false
}
