// Package timekeeper implements the single cooperative scheduler that owns
// every delayed, interval, and debounce timer in the runtime. One dispatcher
// goroutine drives all formations; it is the only place execution suspends
// on time, mirroring the teacher's Scheduler/Job pair (internal/scheduler)
// generalized from a fixed job map to repeat/delay/interval semantics and
// breathing-aware deferral.
package timekeeper

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/neuralline/cyre-go/internal/breathing"
	"github.com/neuralline/cyre-go/internal/config"
	"github.com/neuralline/cyre-go/internal/cyrecore"
	"github.com/neuralline/cyre-go/internal/cyrelog"
	"github.com/neuralline/cyre-go/internal/metrics"
)

// idlePoll is the dispatch loop's default wake-up interval when no
// formation is active and no tick resolution has been configured.
const idlePoll = 50 * time.Millisecond

// Status is a formation's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Callback is invoked when a formation fires.
type Callback func(ctx context.Context) error

// Metrics tracks formation-level scheduling health.
type Metrics struct {
	MissedExecutions int
}

// Formation is a registered timer.
type Formation struct {
	ID               string
	StartTime        int64
	OriginalDuration time.Duration
	CurrentDuration  time.Duration
	Callback         Callback
	Repeat           config.Repeat
	Priority         cyrecore.Priority
	ExecutionCount   int
	NextExecutionTime int64
	Status           Status
	Delay            time.Duration
	Interval         time.Duration
	HasExecutedOnce  bool
	Metrics          Metrics
	FailureReason    string

	insertSeq       int64
	pausedRemaining time.Duration
}

// TimeKeeper is the single scheduler. The zero value is not usable; use New.
type TimeKeeper struct {
	mu         sync.Mutex
	formations map[string]*Formation
	seq        int64
	wake       chan struct{}
	breathing  *breathing.Controller
	now        func() int64

	tickResolution time.Duration
	log            cyrelog.Logger
	metricsEnabled bool

	ctx     context.Context
	cancel  context.CancelFunc
	inFlight conc.WaitGroup
	started bool
}

// New returns a TimeKeeper. breathingCtl may be nil, in which case
// recuperation deferral never engages.
func New(breathingCtl *breathing.Controller) *TimeKeeper {
	return &TimeKeeper{
		formations:     make(map[string]*Formation),
		wake:           make(chan struct{}, 1),
		breathing:      breathingCtl,
		now:            cyrecore.NowMillis,
		tickResolution: idlePoll,
		log:            cyrelog.NewNop(),
		metricsEnabled: true,
	}
}

// SetLogger installs the logger formation lifecycle transitions (keep,
// pause, resume, complete, fail, recuperation deferral) report through. Runtime.New calls
// this once during startup.
func (tk *TimeKeeper) SetLogger(l cyrelog.Logger) {
	if l != nil {
		tk.log = l
	}
}

// SetMetricsEnabled toggles whether the dispatcher records
// cyre_active_formations and cyre_missed_executions_total, mirroring
// config.GlobalConfig.Metrics.Enabled.
func (tk *TimeKeeper) SetMetricsEnabled(enabled bool) {
	tk.metricsEnabled = enabled
}

// SetTickResolution overrides the dispatcher's idle poll interval (the wait
// when no formation is active), from config.GlobalConfig.TimeKeep.TickResolution.
func (tk *TimeKeeper) SetTickResolution(d time.Duration) {
	if d > 0 {
		tk.tickResolution = d
	}
}

// Start launches the dispatcher goroutine. Calling Start twice is a no-op.
func (tk *TimeKeeper) Start() {
	tk.mu.Lock()
	if tk.started {
		tk.mu.Unlock()
		return
	}
	tk.started = true
	tk.ctx, tk.cancel = context.WithCancel(context.Background())
	ctx := tk.ctx
	tk.mu.Unlock()

	go tk.dispatchLoop(ctx)
}

// Stop cancels the dispatcher and waits (bounded) for any in-flight
// formation callbacks to finish, the way the teacher's Job.Stop() cancels
// its context and waits on a done channel with a timeout.
func (tk *TimeKeeper) Stop() {
	tk.mu.Lock()
	if !tk.started {
		tk.mu.Unlock()
		return
	}
	cancel := tk.cancel
	tk.started = false
	tk.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		tk.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}

func (tk *TimeKeeper) signal() {
	select {
	case tk.wake <- struct{}{}:
	default:
	}
}

// Keep registers (or replaces, if id already exists) a formation. delay
// governs the first fire; if delay is zero and interval is set, the first
// fire happens at now+interval. id must be non-empty; Wait generates one
// for anonymous formations from a monotonic counter ("wait-%d"), since
// nothing here needs global uniqueness beyond this TimeKeeper's lifetime.
func (tk *TimeKeeper) Keep(id string, duration time.Duration, cb Callback, repeat config.Repeat, delay, interval time.Duration, priority cyrecore.Priority) (*Formation, error) {
	if id == "" {
		return nil, fmt.Errorf("timekeeper: id is required")
	}
	if duration < 0 || delay < 0 || interval < 0 {
		return nil, cyrecore.ErrInvalidDuration
	}

	now := tk.now()
	first := now
	if delay > 0 {
		first = now + delay.Milliseconds()
	} else if interval > 0 {
		first = now + interval.Milliseconds()
	} else {
		first = now + duration.Milliseconds()
	}

	tk.mu.Lock()
	defer tk.mu.Unlock()

	tk.seq++
	f := &Formation{
		ID:                id,
		StartTime:         now,
		OriginalDuration:  duration,
		CurrentDuration:   duration,
		Callback:          cb,
		Repeat:            repeat,
		Priority:          priority,
		NextExecutionTime: first,
		Status:            StatusActive,
		Delay:             delay,
		Interval:          interval,
		insertSeq:         tk.seq,
	}
	tk.formations[id] = f // replaces any existing formation for id
	tk.log.WithField("formation", id).Debug("formation kept")
	tk.reportActiveFormations()
	tk.signal()
	return f, nil
}

// Forget cancels a formation. Idempotent: forgetting an unknown or
// already-forgotten id returns false without error.
func (tk *TimeKeeper) Forget(id string) bool {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	if _, ok := tk.formations[id]; !ok {
		return false
	}
	delete(tk.formations, id)
	tk.reportActiveFormations()
	tk.signal()
	return true
}

// Pause preserves remaining time relative to the pause moment.
func (tk *TimeKeeper) Pause(id string) bool {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	f, ok := tk.formations[id]
	if !ok || f.Status != StatusActive {
		return false
	}
	f.pausedRemaining = time.Duration(f.NextExecutionTime-tk.now()) * time.Millisecond
	f.Status = StatusPaused
	tk.log.WithField("formation", id).Debug("formation paused")
	tk.reportActiveFormations()
	return true
}

// Resume restores a paused formation relative to the pause moment.
func (tk *TimeKeeper) Resume(id string) bool {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	f, ok := tk.formations[id]
	if !ok || f.Status != StatusPaused {
		return false
	}
	f.NextExecutionTime = tk.now() + f.pausedRemaining.Milliseconds()
	f.Status = StatusActive
	tk.log.WithField("formation", id).Debug("formation resumed")
	tk.reportActiveFormations()
	tk.signal()
	return true
}

// Wait is a single-shot delay: it blocks the caller until ms elapses, the
// formation is forgotten, or ctx is cancelled.
func (tk *TimeKeeper) Wait(ctx context.Context, ms time.Duration, id string) error {
	if id == "" {
		id = fmt.Sprintf("wait-%d", tk.nextSeq())
	}
	done := make(chan error, 1)
	_, err := tk.Keep(id, ms, func(ctx context.Context) error {
		done <- nil
		return nil
	}, config.RepeatN(1), 0, 0, cyrecore.PriorityMedium)
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		tk.Forget(id)
		return ctx.Err()
	}
}

func (tk *TimeKeeper) nextSeq() int64 {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	tk.seq++
	return tk.seq
}

// GetActive returns every formation currently active, in insertion order.
func (tk *TimeKeeper) GetActive() []*Formation {
	return tk.filterFormations(func(f *Formation) bool { return f.Status == StatusActive })
}

// GetAll returns every tracked formation, in insertion order.
func (tk *TimeKeeper) GetAll() []*Formation {
	return tk.filterFormations(func(*Formation) bool { return true })
}

func (tk *TimeKeeper) filterFormations(keep func(*Formation) bool) []*Formation {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	out := make([]*Formation, 0, len(tk.formations))
	for _, f := range tk.formations {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].insertSeq < out[j].insertSeq })
	return out
}

// GetFormation returns a single formation by id.
func (tk *TimeKeeper) GetFormation(id string) (*Formation, bool) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	f, ok := tk.formations[id]
	return f, ok
}

// dispatchLoop is the single "quartz": it ticks whenever at least one
// formation is active, always choosing the soonest nextExecutionTime.
func (tk *TimeKeeper) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		wait, due := tk.dueOrNextWait()
		if len(due) > 0 {
			tk.dispatch(ctx, due)
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-tk.wake:
			timer.Stop()
		}
	}
}

// dueOrNextWait returns (a) formations due right now, tie-broken by
// critical priority then insertion order, or (b) how long to sleep until
// the soonest active formation comes due.
func (tk *TimeKeeper) dueOrNextWait() (time.Duration, []*Formation) {
	tk.mu.Lock()
	defer tk.mu.Unlock()

	now := tk.now()
	var due []*Formation
	soonest := int64(-1)

	for _, f := range tk.formations {
		if f.Status != StatusActive {
			continue
		}
		if f.NextExecutionTime <= now {
			due = append(due, f)
			continue
		}
		if soonest == -1 || f.NextExecutionTime < soonest {
			soonest = f.NextExecutionTime
		}
	}

	if len(due) > 0 {
		sort.Slice(due, func(i, j int) bool {
			ci := due[i].Priority == cyrecore.PriorityCritical
			cj := due[j].Priority == cyrecore.PriorityCritical
			if ci != cj {
				return ci
			}
			return due[i].insertSeq < due[j].insertSeq
		})
		return 0, due
	}
	if soonest == -1 {
		return tk.tickResolution, nil // idle poll; re-checked on every wake signal anyway
	}
	return time.Duration(soonest-now) * time.Millisecond, nil
}

func (tk *TimeKeeper) dispatch(ctx context.Context, due []*Formation) {
	for _, f := range due {
		if tk.breathing != nil && tk.breathing.IsRecuperating() && f.Priority != cyrecore.PriorityCritical {
			tk.deferFormation(f)
			continue
		}
		tk.fire(ctx, f)
		// Wait for the callback (and its advance/fail bookkeeping) before the
		// next formation or the next scan, so a due formation is never
		// dispatched twice and due formations run one at a time in order.
		tk.inFlight.Wait()
	}
}

func (tk *TimeKeeper) deferFormation(f *Formation) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	if cur, ok := tk.formations[f.ID]; ok && cur == f {
		rate := tk.tickResolution
		if tk.breathing != nil {
			rate = tk.breathing.Snapshot().CurrentRate
		}
		f.NextExecutionTime = tk.now() + rate.Milliseconds()
		f.Metrics.MissedExecutions++
		if tk.metricsEnabled {
			metrics.MissedExecutionsTotal.WithLabelValues(f.ID).Inc()
		}
		tk.log.WithField("formation", f.ID).Debug("formation deferred: runtime is recuperating")
	}
}

func (tk *TimeKeeper) fire(ctx context.Context, f *Formation) {
	tk.inFlight.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				tk.failFormation(f, fmt.Errorf("panic: %v", r))
			}
		}()
		if err := f.Callback(ctx); err != nil {
			tk.failFormation(f, err)
			return
		}
		tk.advanceFormation(f)
	})
}

func (tk *TimeKeeper) advanceFormation(f *Formation) {
	tk.mu.Lock()
	defer tk.mu.Unlock()

	cur, ok := tk.formations[f.ID]
	if !ok || cur != f {
		return // forgotten while the callback was running
	}

	f.ExecutionCount++
	f.HasExecutedOnce = true

	if !f.Repeat.IsInfinite() && f.Repeat.IsSet() && f.ExecutionCount >= f.Repeat.Count() {
		f.Status = StatusCompleted
		tk.log.WithField("formation", f.ID).Debug("formation completed")
		tk.reportActiveFormations()
		return
	}

	interval := f.Interval
	if interval == 0 {
		interval = f.OriginalDuration
	}
	f.NextExecutionTime = tk.now() + interval.Milliseconds()
	tk.signal()
}

func (tk *TimeKeeper) failFormation(f *Formation, err error) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	cur, ok := tk.formations[f.ID]
	if !ok || cur != f {
		return
	}
	f.Status = StatusFailed
	f.FailureReason = err.Error()
	tk.log.WithField("formation", f.ID).WithError(err).Warn("formation failed")
	tk.reportActiveFormations()
}

// reportActiveFormations recomputes cyre_active_formations by status. Called
// with tk.mu already held.
func (tk *TimeKeeper) reportActiveFormations() {
	if !tk.metricsEnabled {
		return
	}
	counts := map[Status]int{}
	for _, f := range tk.formations {
		counts[f.Status]++
	}
	metrics.ActiveFormations.WithLabelValues(metrics.FormationActive).Set(float64(counts[StatusActive]))
	metrics.ActiveFormations.WithLabelValues(metrics.FormationPaused).Set(float64(counts[StatusPaused]))
	metrics.ActiveFormations.WithLabelValues(metrics.FormationCompleted).Set(float64(counts[StatusCompleted]))
	metrics.ActiveFormations.WithLabelValues(metrics.FormationFailed).Set(float64(counts[StatusFailed]))
}
