// Package config holds the declarative configuration types Cyre channels
// and the global runtime are built from, and the viper-backed loader for
// the latter.
package config

import (
	"time"

	"github.com/neuralline/cyre-go/internal/cyrecore"
)

// SchemaFunc validates (and may coerce) a payload before the handler runs.
// A non-nil error blocks the call.
type SchemaFunc func(payload any) (any, error)

// ConditionFunc gates the pipeline: when it returns false the call is
// rejected ("condition not satisfied") and the handler does not run.
type ConditionFunc func(payload any) bool

// SelectorFunc replaces the payload with a projection of it.
type SelectorFunc func(payload any) any

// TransformFunc maps the payload to a new value.
type TransformFunc func(payload any) any

// Repeat represents the scheduling repeat field: unset, a finite count
// (including the blocking 0), or infinite (JS `true`).
type Repeat struct {
	set      bool
	infinite bool
	count    int
}

// RepeatN returns a finite repeat count. n == 0 is meaningful: it blocks
// the channel at registration instead of ever firing.
func RepeatN(n int) Repeat { return Repeat{set: true, count: n} }

// RepeatForever returns the infinite-repeat value (`repeat: true`).
func RepeatForever() Repeat { return Repeat{set: true, infinite: true} }

// IsSet reports whether a repeat value was configured at all.
func (r Repeat) IsSet() bool { return r.set }

// IsInfinite reports whether repeat runs until forget() is called.
func (r Repeat) IsInfinite() bool { return r.infinite }

// Count returns the finite repeat count. Meaningless when IsInfinite.
func (r Repeat) Count() int { return r.count }

// IsBlocking reports the repeat:0 cross-rule: a channel configured with an
// explicit zero repeat count never executes.
func (r Repeat) IsBlocking() bool { return r.set && !r.infinite && r.count == 0 }

// Value returns the repeat field the way it's surfaced in response
// metadata: true for infinite, the finite count, or nil when unset.
func (r Repeat) Value() any {
	if !r.set {
		return nil
	}
	if r.infinite {
		return true
	}
	return r.count
}

// ChannelConfig is the declarative, pre-compilation configuration for a
// channel: the full set of options `action()` accepts before compilation.
//
// StageOrder records the order processing-returning fields were declared in;
// Go struct literals carry no such order, so Builder threads it explicitly
// as fields are attached (mirroring the teacher's pipeline.Builder fluent
// chain in internal/pipeline/builder.go). Configs assembled without Builder
// fall back to the canonical field order (channel.canonicalOrder, applied in
// channel.assemblePipeline).
type ChannelConfig struct {
	ID          string
	Name        string
	Type        string
	Description string
	Tags        []string
	Version     string

	Path  string
	Group string

	Required      cyrecore.Required
	Schema        SchemaFunc
	Condition     ConditionFunc
	Selector      SelectorFunc
	Transform     TransformFunc
	DetectChanges bool

	Throttle time.Duration
	Debounce time.Duration
	MaxWait  time.Duration
	Block    bool
	Priority cyrecore.Priority

	Delay    time.Duration
	Interval time.Duration
	Repeat   Repeat

	StageOrder []cyrecore.StageKind

	// Extra carries unrecognized keys from a decoded wire config forward;
	// unknown fields surface as compiler warnings but are not dropped.
	Extra map[string]any
}

// Builder provides a fluent interface for assembling a ChannelConfig while
// recording declaration order, the way pipeline.Builder in the teacher
// assembles a Pipeline from WithX calls.
type Builder struct {
	cfg ChannelConfig
}

// NewBuilder starts a channel configuration for the given id.
func NewBuilder(id string) *Builder {
	return &Builder{cfg: ChannelConfig{ID: id}}
}

func (b *Builder) WithName(name string) *Builder               { b.cfg.Name = name; return b }
func (b *Builder) WithType(t string) *Builder                  { b.cfg.Type = t; return b }
func (b *Builder) WithDescription(d string) *Builder           { b.cfg.Description = d; return b }
func (b *Builder) WithTags(tags ...string) *Builder            { b.cfg.Tags = tags; return b }
func (b *Builder) WithVersion(v string) *Builder               { b.cfg.Version = v; return b }
func (b *Builder) WithPath(path string) *Builder               { b.cfg.Path = path; return b }
func (b *Builder) WithGroup(group string) *Builder             { b.cfg.Group = group; return b }
func (b *Builder) WithThrottle(d time.Duration) *Builder       { b.cfg.Throttle = d; return b }
func (b *Builder) WithDebounce(d time.Duration) *Builder       { b.cfg.Debounce = d; return b }
func (b *Builder) WithMaxWait(d time.Duration) *Builder        { b.cfg.MaxWait = d; return b }
func (b *Builder) WithBlock() *Builder                         { b.cfg.Block = true; return b }
func (b *Builder) WithPriority(p cyrecore.Priority) *Builder    { b.cfg.Priority = p; return b }
func (b *Builder) WithDelay(d time.Duration) *Builder           { b.cfg.Delay = d; return b }
func (b *Builder) WithInterval(d time.Duration) *Builder        { b.cfg.Interval = d; return b }
func (b *Builder) WithRepeat(r Repeat) *Builder                 { b.cfg.Repeat = r; return b }
func (b *Builder) WithExtra(key string, value any) *Builder {
	if b.cfg.Extra == nil {
		b.cfg.Extra = make(map[string]any)
	}
	b.cfg.Extra[key] = value
	return b
}

// Required appends the required stage to the declaration order.
func (b *Builder) Required(mode cyrecore.Required) *Builder {
	b.cfg.Required = mode
	b.cfg.StageOrder = append(b.cfg.StageOrder, cyrecore.StageRequired)
	return b
}

// Schema appends the schema stage to the declaration order.
func (b *Builder) Schema(fn SchemaFunc) *Builder {
	b.cfg.Schema = fn
	b.cfg.StageOrder = append(b.cfg.StageOrder, cyrecore.StageSchema)
	return b
}

// Condition appends the condition stage to the declaration order.
func (b *Builder) Condition(fn ConditionFunc) *Builder {
	b.cfg.Condition = fn
	b.cfg.StageOrder = append(b.cfg.StageOrder, cyrecore.StageCondition)
	return b
}

// Selector appends the selector stage to the declaration order.
func (b *Builder) Selector(fn SelectorFunc) *Builder {
	b.cfg.Selector = fn
	b.cfg.StageOrder = append(b.cfg.StageOrder, cyrecore.StageSelector)
	return b
}

// Transform appends the transform stage to the declaration order.
func (b *Builder) Transform(fn TransformFunc) *Builder {
	b.cfg.Transform = fn
	b.cfg.StageOrder = append(b.cfg.StageOrder, cyrecore.StageTransform)
	return b
}

// DetectChanges appends the change-detection stage to the declaration order.
func (b *Builder) DetectChanges() *Builder {
	b.cfg.DetectChanges = true
	b.cfg.StageOrder = append(b.cfg.StageOrder, cyrecore.StageDetectChanges)
	return b
}

// Build returns the assembled configuration.
func (b *Builder) Build() ChannelConfig {
	return b.cfg
}
