package channel

import (
	"strings"
	"testing"
	"time"

	"github.com/neuralline/cyre-go/internal/config"
	"github.com/neuralline/cyre-go/internal/cyrecore"
)

func TestCompileFastPath(t *testing.T) {
	cfg := config.ChannelConfig{ID: "ping"}
	res := Compile(cfg)
	if res.Blocked {
		t.Fatalf("unexpected block: %v", res.Errors)
	}
	if !res.Compiled.HasFastPath {
		t.Error("expected HasFastPath for a bare channel")
	}
	if res.Compiled.HasProtections || res.Compiled.HasProcessing || res.Compiled.HasScheduling {
		t.Error("bare channel should have no protections/processing/scheduling")
	}
}

func TestCompileIntervalWithoutRepeatBlocks(t *testing.T) {
	cfg := config.ChannelConfig{ID: "x", Interval: 100 * time.Millisecond}
	res := Compile(cfg)
	if !res.Blocked {
		t.Fatal("expected interval without repeat to block")
	}
	if len(res.Errors) == 0 {
		t.Error("expected at least one error message")
	}
}

func TestCompileThrottleAndDebounceMutuallyExclusive(t *testing.T) {
	cfg := config.ChannelConfig{ID: "x", Throttle: 50 * time.Millisecond, Debounce: 50 * time.Millisecond}
	res := Compile(cfg)
	if !res.Blocked {
		t.Fatal("expected throttle+debounce to block")
	}
}

func TestCompileMaxWaitRequiresDebounce(t *testing.T) {
	cfg := config.ChannelConfig{ID: "x", MaxWait: 200 * time.Millisecond}
	res := Compile(cfg)
	if !res.Blocked {
		t.Fatal("expected maxWait without debounce to block")
	}
}

func TestCompileRepeatZeroBlocks(t *testing.T) {
	cfg := config.NewBuilder("x").WithRepeat(config.RepeatN(0)).Build()
	res := Compile(cfg)
	if !res.Blocked {
		t.Fatal("expected repeat:0 to block at registration")
	}
}

func TestCompilePipelineOrder(t *testing.T) {
	cfg := config.NewBuilder("p").
		Required(cyrecore.RequiredTrue).
		Condition(func(p any) bool { return p.(int) > 0 }).
		Transform(func(p any) any { return p.(int) * 2 }).
		DetectChanges().
		Build()

	res := Compile(cfg)
	if res.Blocked {
		t.Fatalf("unexpected block: %v", res.Errors)
	}
	got := make([]cyrecore.StageKind, len(res.Compiled.Pipeline))
	for i, s := range res.Compiled.Pipeline {
		got[i] = s.Kind
	}
	want := []cyrecore.StageKind{
		cyrecore.StageRequired,
		cyrecore.StageCondition,
		cyrecore.StageTransform,
		cyrecore.StageDetectChanges,
	}
	if len(got) != len(want) {
		t.Fatalf("pipeline length = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stage %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCompileBlockedStillStored(t *testing.T) {
	store := NewStore()
	cfg := config.ChannelConfig{ID: "x", Interval: 100 * time.Millisecond}
	res := Compile(cfg)
	store.Set(res.Compiled)

	got, ok := store.Get("x")
	if !ok {
		t.Fatal("blocked channel must still be retrievable")
	}
	if !got.IsBlocked {
		t.Error("expected stored channel to report IsBlocked")
	}
}

func TestCompileLowThrottleWarns(t *testing.T) {
	cfg := config.ChannelConfig{ID: "x", Throttle: 1 * time.Millisecond}
	res := Compile(cfg)
	if len(res.Warnings) == 0 {
		t.Error("expected a warning for throttle below 16ms")
	}
}

func TestCompileUnknownFieldsWarnAndPersist(t *testing.T) {
	cfg := config.ChannelConfig{ID: "x", Extra: map[string]any{"typoedFeild": true}}
	res := Compile(cfg)

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "typoedFeild") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a warning naming the unknown field, got %v", res.Warnings)
	}
	if res.Compiled.Extra["typoedFeild"] != true {
		t.Error("expected unknown field to be kept forward on Compiled.Extra, not dropped")
	}
}
