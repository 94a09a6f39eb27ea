package configwatch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/neuralline/cyre-go/internal/channel"
	"github.com/neuralline/cyre-go/internal/config"
)

type fakeRuntime struct {
	mu       sync.Mutex
	actioned []string
	forgotten []string
}

func (f *fakeRuntime) Action(cfg config.ChannelConfig) channel.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actioned = append(f.actioned, cfg.ID)
	return channel.Compile(cfg)
}

func (f *fakeRuntime) Forget(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, id)
	return true
}

func (f *fakeRuntime) snapshot() (actioned, forgotten []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.actioned...), append([]string(nil), f.forgotten...)
}

func TestWatcherReactsToCreateWriteRemove(t *testing.T) {
	dir := t.TempDir()
	rt := &fakeRuntime{}

	w, err := New(dir, rt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.Start()
	defer w.Stop()

	file := filepath.Join(dir, "greet.yaml")
	if err := os.WriteFile(file, []byte("id: greet\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, func() bool {
		actioned, _ := rt.snapshot()
		return len(actioned) >= 1
	})

	if err := os.Remove(file); err != nil {
		t.Fatalf("remove: %v", err)
	}

	waitFor(t, func() bool {
		_, forgotten := rt.snapshot()
		return len(forgotten) >= 1
	})

	_, forgotten := rt.snapshot()
	if forgotten[0] != "greet" {
		t.Errorf("expected forgotten id 'greet', got %q", forgotten[0])
	}
}

func TestLoadExistingPicksUpFilesAlreadyOnDisk(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yml"), []byte("id: a\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rt := &fakeRuntime{}
	w, err := New(dir, rt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.LoadExisting(); err != nil {
		t.Fatalf("LoadExisting: %v", err)
	}

	actioned, _ := rt.snapshot()
	if len(actioned) != 1 || actioned[0] != "a" {
		t.Errorf("expected channel 'a' loaded, got %v", actioned)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
