package cyrelog

import (
	"testing"

	"github.com/neuralline/cyre-go/internal/config"
)

func TestNewNopDoesNotPanic(t *testing.T) {
	l := NewNop()
	l.Info("hello")
	l.WithField("k", "v").Warn("fields work")
	l.WithFields(map[string]any{"a": 1}).Error("multi field")
	l.WithError(errBoom).Debug("with error")
}

var errBoom = testErr("boom")

type testErr string

func (e testErr) Error() string { return string(e) }

func TestNewFromConfigDefaults(t *testing.T) {
	cfg := config.Default().Log
	l := New(cfg)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	l.Info("ready")
}

func TestNewWithFileRotationEnabled(t *testing.T) {
	cfg := config.Default().Log
	cfg.File.Enabled = true
	cfg.File.Path = t.TempDir() + "/cyre.log"

	l := New(cfg)
	l.Info("rotated")
}
