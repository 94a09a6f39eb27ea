package cyre

import (
	"context"

	"github.com/neuralline/cyre-go/internal/channel"
	"github.com/neuralline/cyre-go/internal/config"
	"github.com/neuralline/cyre-go/internal/cyrecore"
	"github.com/neuralline/cyre-go/internal/subscription"
)

// Branch is a path-scoped view over a Runtime: every id it registers is
// prefixed with the branch path, so sibling branches can reuse short ids
// without colliding. It delegates every operation to the wrapped Runtime
// rather than owning any state of its own, the way the teacher's
// ReporterWrapper sits in front of a plugin.Reporter without reimplementing
// delivery.
type Branch struct {
	rt     *Runtime
	prefix string
}

// Action registers a channel scoped to this branch's path prefix.
func (b *Branch) Action(cfg config.ChannelConfig) channel.Result {
	cfg.ID = scopedID(b.prefix, cfg.ID)
	if cfg.Path == "" {
		cfg.Path = b.prefix
	} else {
		cfg.Path = scopedID(b.prefix, cfg.Path)
	}
	return b.rt.Action(cfg)
}

// On subscribes a handler to a branch-scoped channel id.
func (b *Branch) On(id string, h subscription.Handler) (unsubscribe func()) {
	return b.rt.On(scopedID(b.prefix, id), h)
}

// Call invokes a branch-scoped channel.
func (b *Branch) Call(ctx context.Context, id string, payload any) cyrecore.Response {
	return b.rt.Call(ctx, scopedID(b.prefix, id), payload)
}

// Branch returns a further-nested branch under this one.
func (b *Branch) Branch(id string) *Branch {
	return b.rt.Branch(scopedID(b.prefix, id))
}

// Destroy forgets every channel registered under this branch's path,
// including nested branches, via a `**` wildcard match against the path
// index.
func (b *Branch) Destroy() int {
	matches := b.rt.Match(b.prefix + "/**")
	n := 0
	for _, m := range matches {
		if b.rt.Forget(m.ChannelID) {
			n++
		}
	}
	return n
}
