package callengine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neuralline/cyre-go/internal/breathing"
	"github.com/neuralline/cyre-go/internal/channel"
	"github.com/neuralline/cyre-go/internal/config"
	"github.com/neuralline/cyre-go/internal/cyrecore"
	"github.com/neuralline/cyre-go/internal/payloadstate"
	"github.com/neuralline/cyre-go/internal/subscription"
	"github.com/neuralline/cyre-go/internal/timekeeper"
)

type harness struct {
	store    *channel.Store
	subs     *subscription.Registry
	payloads *payloadstate.Store
	tk       *timekeeper.TimeKeeper
	engine   *Engine
}

func newHarness() *harness {
	store := channel.NewStore()
	subs := subscription.NewRegistry()
	payloads := payloadstate.New(50)
	tk := timekeeper.New(nil)
	tk.Start()
	engine := New(store, subs, payloads, tk, nil)
	return &harness{store: store, subs: subs, payloads: payloads, tk: tk, engine: engine}
}

func (h *harness) register(cfg config.ChannelConfig) *channel.Compiled {
	res := channel.Compile(cfg)
	h.store.Set(res.Compiled)
	return res.Compiled
}

func TestFastPath(t *testing.T) {
	h := newHarness()
	defer h.tk.Stop()

	h.register(config.ChannelConfig{ID: "ping"})
	h.subs.On("ping", func(ctx context.Context, p any) (any, error) { return p.(int) + 1, nil })

	resp := h.engine.Call(context.Background(), "ping", 41)
	if !resp.OK || resp.Payload != 42 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(h.payloads.GetHistory("ping", 0)) != 1 {
		t.Errorf("expected history length 1, got %d", len(h.payloads.GetHistory("ping", 0)))
	}
}

func TestBlockedChannelNeverExecutes(t *testing.T) {
	h := newHarness()
	defer h.tk.Stop()

	var invoked int32
	h.register(config.ChannelConfig{ID: "x", Block: true})
	h.subs.On("x", func(ctx context.Context, p any) (any, error) {
		atomic.AddInt32(&invoked, 1)
		return nil, nil
	})

	resp := h.engine.Call(context.Background(), "x", nil)
	if resp.OK {
		t.Error("expected blocked channel to reject the call")
	}
	if invoked != 0 {
		t.Error("handler must never run for a blocked channel")
	}
}

func TestThrottle(t *testing.T) {
	h := newHarness()
	defer h.tk.Stop()

	h.register(config.ChannelConfig{ID: "t", Throttle: 100 * time.Millisecond})
	h.subs.On("t", func(ctx context.Context, p any) (any, error) { return true, nil })

	resp := h.engine.Call(context.Background(), "t", nil)
	if !resp.OK {
		t.Fatalf("first call should succeed: %+v", resp)
	}

	time.Sleep(20 * time.Millisecond)
	resp = h.engine.Call(context.Background(), "t", nil)
	if resp.OK {
		t.Error("call within throttle window should be rejected")
	}
	remaining, ok := resp.Metadata["remaining"].(int64)
	if !ok || remaining <= 0 || remaining > 100 {
		t.Errorf("unexpected remaining metadata: %v", resp.Metadata)
	}

	time.Sleep(110 * time.Millisecond)
	resp = h.engine.Call(context.Background(), "t", nil)
	if !resp.OK {
		t.Error("call after throttle window should succeed")
	}
}

func TestDebounceLatestWins(t *testing.T) {
	h := newHarness()
	defer h.tk.Stop()

	var mu sync.Mutex
	var calls []any
	h.register(config.ChannelConfig{ID: "d", Debounce: 50 * time.Millisecond})
	h.subs.On("d", func(ctx context.Context, p any) (any, error) {
		mu.Lock()
		calls = append(calls, p)
		mu.Unlock()
		return nil, nil
	})

	h.engine.Call(context.Background(), "d", "a")
	time.Sleep(20 * time.Millisecond)
	h.engine.Call(context.Background(), "d", "b")
	time.Sleep(20 * time.Millisecond)
	h.engine.Call(context.Background(), "d", "c")

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("expected handler invoked exactly once, got %d (%v)", len(calls), calls)
	}
	if calls[0] != "c" {
		t.Errorf("expected last payload to win, got %v", calls[0])
	}
}

func TestPipelineOrderAndDetectChanges(t *testing.T) {
	h := newHarness()
	defer h.tk.Stop()

	var seen []int
	cfg := config.NewBuilder("p").
		Required(cyrecore.RequiredTrue).
		Condition(func(p any) bool { return p.(int) > 0 }).
		Transform(func(p any) any { return p.(int) * 2 }).
		DetectChanges().
		Build()
	h.register(cfg)
	h.subs.On("p", func(ctx context.Context, p any) (any, error) {
		seen = append(seen, p.(int))
		return p, nil
	})

	resp := h.engine.Call(context.Background(), "p", 0)
	if resp.OK {
		t.Error("condition should block non-positive payload")
	}

	resp = h.engine.Call(context.Background(), "p", 3)
	if !resp.OK || resp.Payload.(int) != 6 {
		t.Fatalf("expected transformed payload 6, got %+v", resp)
	}

	resp = h.engine.Call(context.Background(), "p", 3)
	if !resp.OK {
		t.Fatalf("repeat call with unchanged payload should still be accepted: %+v", resp)
	}
	noChange, _ := resp.Metadata["noChange"].(bool)
	if !noChange {
		t.Error("expected noChange metadata on repeat call with identical payload")
	}
	if len(seen) != 1 {
		t.Errorf("handler should be invoked exactly once, got %d", len(seen))
	}
}

func TestScheduledRepeat(t *testing.T) {
	h := newHarness()
	defer h.tk.Stop()

	var count int32
	h.register(config.ChannelConfig{
		ID:       "s",
		Delay:    40 * time.Millisecond,
		Interval: 30 * time.Millisecond,
		Repeat:   config.RepeatN(3),
	})
	h.subs.On("s", func(ctx context.Context, p any) (any, error) {
		atomic.AddInt32(&count, 1)
		return nil, nil
	})

	resp := h.engine.Call(context.Background(), "s", nil)
	if !resp.OK || resp.Message != "scheduled" {
		t.Fatalf("expected scheduled response, got %+v", resp)
	}

	time.Sleep(300 * time.Millisecond)
	if got := atomic.LoadInt32(&count); got != 3 {
		t.Errorf("expected exactly 3 invocations, got %d", got)
	}
}

func TestCrossRuleBlock(t *testing.T) {
	h := newHarness()
	defer h.tk.Stop()

	h.register(config.ChannelConfig{ID: "x", Interval: 100 * time.Millisecond})
	resp := h.engine.Call(context.Background(), "x", nil)
	if resp.OK {
		t.Error("expected blocked channel (interval without repeat) to reject the call")
	}
}
