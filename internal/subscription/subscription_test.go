package subscription

import (
	"context"
	"testing"
)

func TestOnGet(t *testing.T) {
	r := NewRegistry()
	r.On("x", func(ctx context.Context, p any) (any, error) { return p, nil })
	h, ok := r.Get("x")
	if !ok {
		t.Fatal("expected handler registered")
	}
	res, err := h(context.Background(), 42)
	if err != nil || res != 42 {
		t.Fatalf("unexpected handler result: %v, %v", res, err)
	}
}

func TestResubscribeReplaces(t *testing.T) {
	r := NewRegistry()
	r.On("x", func(ctx context.Context, p any) (any, error) { return "first", nil })
	r.On("x", func(ctx context.Context, p any) (any, error) { return "second", nil })

	h, _ := r.Get("x")
	res, _ := h(context.Background(), nil)
	if res != "second" {
		t.Errorf("expected second handler to win, got %v", res)
	}
}

func TestUnsubscribeStale(t *testing.T) {
	r := NewRegistry()
	unsub1 := r.On("x", func(ctx context.Context, p any) (any, error) { return "first", nil })
	r.On("x", func(ctx context.Context, p any) (any, error) { return "second", nil })

	unsub1() // stale; must not remove the newer handler

	h, ok := r.Get("x")
	if !ok {
		t.Fatal("expected second handler to remain after a stale unsubscribe")
	}
	res, _ := h(context.Background(), nil)
	if res != "second" {
		t.Errorf("expected second handler to survive stale unsubscribe, got %v", res)
	}
}

func TestForget(t *testing.T) {
	r := NewRegistry()
	r.On("x", func(ctx context.Context, p any) (any, error) { return p, nil })
	if !r.Forget("x") {
		t.Error("expected Forget to report existing handler")
	}
	if _, ok := r.Get("x"); ok {
		t.Error("expected no handler after Forget")
	}
	if r.Forget("x") {
		t.Error("Forget should be idempotent")
	}
}
