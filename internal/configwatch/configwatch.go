// Package configwatch gives an embedding process the teacher's SIGHUP
// reload story without the signal: it watches a directory of per-channel
// YAML files with fsnotify and reacts to create/write/remove the way
// internal/task's daemon reload propagates config deltas, adapted to
// Cyre's "one file per channel" declarative unit instead of one big
// config.yml.
package configwatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/neuralline/cyre-go/internal/channel"
	"github.com/neuralline/cyre-go/internal/config"
)

// Runtime is the subset of pkg/cyre.Runtime the watcher needs: registering
// a decoded channel on create/write, and forgetting one on remove. Declared
// here (rather than imported from pkg/cyre) to keep configwatch free of a
// dependency on the public facade package.
type Runtime interface {
	Action(cfg config.ChannelConfig) channel.Result
	Forget(id string) bool
}

// Watcher watches a directory of channel YAML files and reconciles the
// runtime against disk state.
type Watcher struct {
	dir string
	rt  Runtime

	fsw *fsnotify.Watcher

	mu       sync.Mutex
	idByFile map[string]string // file path -> channel id, for delete-time lookup

	errCh  chan error
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Watcher over dir. Call Start to begin reacting to events.
func New(dir string, rt Runtime) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("configwatch: new fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("configwatch: watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:      dir,
		rt:       rt,
		fsw:      fsw,
		idByFile: make(map[string]string),
		errCh:    make(chan error, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// LoadExisting registers every *.yml/*.yaml file already present in the
// watched directory, so a restart picks up the directory's current state
// before reacting to further changes.
func (w *Watcher) LoadExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("configwatch: read dir %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !isChannelFile(e.Name()) {
			continue
		}
		w.handleUpsert(filepath.Join(w.dir, e.Name()))
	}
	return nil
}

// Start begins processing filesystem events in a background goroutine.
func (w *Watcher) Start() {
	go w.run()
}

// Stop halts the watcher and closes the underlying fsnotify handle.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	<-w.doneCh
	return w.fsw.Close()
}

// Errors reports non-fatal watcher errors: fsnotify errors and channel files
// that fail to decode. The buffer holds one error; further errors are dropped
// while it is full. The channel is never closed.
func (w *Watcher) Errors() <-chan error { return w.errCh }

func (w *Watcher) run() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errCh <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !isChannelFile(ev.Name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.handleRemove(ev.Name)
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		w.handleUpsert(ev.Name)
	}
}

func (w *Watcher) handleUpsert(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	cfg, err := config.DecodeChannelYAML(data)
	if err != nil {
		select {
		case w.errCh <- fmt.Errorf("configwatch: %s: %w", path, err):
		default:
		}
		return
	}

	w.mu.Lock()
	w.idByFile[path] = cfg.ID
	w.mu.Unlock()

	w.rt.Action(cfg)
}

func (w *Watcher) handleRemove(path string) {
	w.mu.Lock()
	id, ok := w.idByFile[path]
	delete(w.idByFile, path)
	w.mu.Unlock()

	if !ok {
		return
	}
	w.rt.Forget(id)
}

func isChannelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yml" || ext == ".yaml"
}
