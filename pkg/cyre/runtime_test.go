package cyre

import (
	"context"
	"testing"

	"github.com/neuralline/cyre-go/internal/config"
)

func TestRuntimeActionCallForget(t *testing.T) {
	rt := New(nil)
	defer rt.Shut()

	rt.Action(config.ChannelConfig{ID: "echo"})
	rt.On("echo", func(ctx context.Context, p any) (any, error) { return p, nil })

	resp := rt.Call(context.Background(), "echo", "hi")
	if !resp.OK || resp.Payload != "hi" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if !rt.Forget("echo") {
		t.Fatal("expected Forget to report true")
	}
	if _, ok := rt.Get("echo"); ok {
		t.Error("channel should no longer be registered")
	}
}

func TestBranchScopesIDsAndDestroys(t *testing.T) {
	rt := New(nil)
	defer rt.Shut()

	users := rt.Branch("users")
	users.Action(config.ChannelConfig{ID: "create"})
	users.Action(config.ChannelConfig{ID: "delete"})

	var got string
	users.On("create", func(ctx context.Context, p any) (any, error) {
		got = p.(string)
		return nil, nil
	})

	resp := users.Call(context.Background(), "create", "alice")
	if !resp.OK || got != "alice" {
		t.Fatalf("expected branch-scoped call to reach handler, got %+v (got=%q)", resp, got)
	}

	if _, ok := rt.Get("users/create"); !ok {
		t.Error("expected channel registered under scoped id users/create")
	}

	n := users.Destroy()
	if n != 2 {
		t.Errorf("expected Destroy to remove 2 channels, removed %d", n)
	}
	if _, ok := rt.Get("users/create"); ok {
		t.Error("expected users/create to be gone after Destroy")
	}
}
