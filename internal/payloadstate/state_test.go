package payloadstate

import (
	"testing"

	"github.com/neuralline/cyre-go/internal/cyrecore"
)

func TestSetGet(t *testing.T) {
	s := New(50)
	if _, ok := s.Get("x"); ok {
		t.Fatal("expected no payload before Set")
	}
	s.Set("x", 42, cyrecore.SourceCall, 1000)
	v, ok := s.Get("x")
	if !ok || v != 42 {
		t.Fatalf("Get = %v, %v, want 42, true", v, ok)
	}
}

func TestHistoryBounded(t *testing.T) {
	s := New(3)
	for i := 0; i < 5; i++ {
		s.Set("x", i, cyrecore.SourceCall, int64(i))
	}
	hist := s.GetHistory("x", 0)
	if len(hist) != 3 {
		t.Fatalf("expected ring bounded to 3, got %d", len(hist))
	}
	if hist[len(hist)-1].Payload != 4 {
		t.Errorf("expected newest entry to be 4, got %v", hist[len(hist)-1].Payload)
	}
	if hist[0].Payload != 2 {
		t.Errorf("expected oldest surviving entry to be 2, got %v", hist[0].Payload)
	}
}

func TestClearWipesEverything(t *testing.T) {
	s := New(50)
	s.Set("x", 1, cyrecore.SourceCall, 0)
	s.Clear()
	if _, ok := s.Get("x"); ok {
		t.Error("expected no payload after Clear")
	}
	if len(s.GetHistory("x", 0)) != 0 {
		t.Error("expected empty history after Clear")
	}
}

func TestDetectChanges(t *testing.T) {
	s := New(50)
	if !s.DetectChanges("x", 1) {
		t.Error("first observation should always be a change")
	}
	s.Set("x", 1, cyrecore.SourceCall, 0)
	if s.DetectChanges("x", 1) {
		t.Error("equal payload should not be a change")
	}
	if !s.DetectChanges("x", 2) {
		t.Error("different payload should be a change")
	}
}

func TestEqualStructural(t *testing.T) {
	type point struct{ X, Y int }
	if !Equal(point{1, 2}, point{1, 2}) {
		t.Error("equal structs should be Equal")
	}
	if Equal(point{1, 2}, point{1, 3}) {
		t.Error("different structs should not be Equal")
	}
	if Equal(map[string]int{"a": 1}, map[string]int{"a": 1}) == false {
		t.Error("equal maps should be Equal")
	}
}

func TestEqualFuncsNeverEqual(t *testing.T) {
	f := func() {}
	if Equal(f, f) {
		t.Error("functions should never compare equal")
	}
}
