// Package cyrecore defines the types shared across every Cyre subsystem:
// the response envelope, processing stages, priorities, and a handful of
// sentinel errors.
package cyrecore

import (
	"errors"
	"time"
)

// Priority controls TimeKeeper tie-breaking and recuperation admission.
type Priority string

const (
	PriorityCritical   Priority = "critical"
	PriorityHigh       Priority = "high"
	PriorityMedium     Priority = "medium"
	PriorityLow        Priority = "low"
	PriorityBackground Priority = "background"
)

// Source identifies where a payload snapshot in history came from.
type Source string

const (
	SourceInitial  Source = "initial"
	SourceCall     Source = "call"
	SourcePipeline Source = "pipeline"
	SourceExternal Source = "external"
)

// Required expresses the three-state "required" field from the channel config.
type Required string

const (
	RequiredFalse     Required = ""
	RequiredTrue      Required = "true"
	RequiredNonEmpty  Required = "non-empty"
)

// Response is the uniform envelope every call() returns.
type Response struct {
	OK        bool
	Payload   any
	Message   string
	Error     string
	Timestamp int64
	Metadata  map[string]any
}

// NowMillis is the single clock read used across the runtime so tests can
// reason about ordering without depending on wall-clock drift between calls.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Ok builds a successful response.
func Ok(payload any, message string, metadata map[string]any) Response {
	return Response{
		OK:        true,
		Payload:   payload,
		Message:   message,
		Timestamp: NowMillis(),
		Metadata:  metadata,
	}
}

// Fail builds a rejected/failed response.
func Fail(message string, metadata map[string]any) Response {
	return Response{
		OK:        false,
		Message:   message,
		Timestamp: NowMillis(),
		Metadata:  metadata,
	}
}

// FailErr builds a rejected response carrying a handler error string.
func FailErr(message, errStr string, metadata map[string]any) Response {
	return Response{
		OK:        false,
		Message:   message,
		Error:     errStr,
		Timestamp: NowMillis(),
		Metadata:  metadata,
	}
}

// Sentinel errors every caller can match with errors.Is.
var (
	ErrChannelNotFound  = errors.New("cyre: channel not found")
	ErrChannelBlocked   = errors.New("cyre: channel is blocked")
	ErrNoSubscriber     = errors.New("cyre: no subscriber")
	ErrInvalidID        = errors.New("cyre: invalid channel id")
	ErrInvalidPath      = errors.New("cyre: invalid path")
	ErrFormationExists  = errors.New("cyre: formation already active")
	ErrInvalidDuration  = errors.New("cyre: invalid duration")
)

// StageKind tags the operator a compiled pipeline stage was built from, for
// diagnostics (cmd stats prints it) and so the call engine can recognise
// the detectChanges marker stage.
type StageKind string

const (
	StageRequired      StageKind = "required"
	StageSchema        StageKind = "schema"
	StageCondition     StageKind = "condition"
	StageSelector      StageKind = "selector"
	StageTransform     StageKind = "transform"
	StageDetectChanges StageKind = "detectChanges"
)

// StageResult is what every compiled pipeline stage function returns.
type StageResult struct {
	OK       bool
	Data     any
	Error    string
	Blocking bool
	Halt     bool
	Meta     map[string]any
}

// StageFunc is a compiled pipeline stage: a function reference resolved once
// at compile time, never looked up by name on the hot path.
type StageFunc func(payload any) StageResult

// Stage pairs a compiled function with the kind it was built from, so
// diagnostics and the call engine can inspect the pipeline without
// re-parsing the config.
type Stage struct {
	Kind StageKind
	Fn   StageFunc
}
