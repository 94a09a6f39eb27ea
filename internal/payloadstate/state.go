// Package payloadstate holds the latest payload per channel plus a bounded
// history ring, and implements the structural-equality comparison
// detectChanges is built on.
package payloadstate

import (
	"reflect"
	"sync"

	"github.com/neuralline/cyre-go/internal/cyrecore"
)

// Entry is one snapshot in a channel's history ring.
type Entry struct {
	Payload   any
	Timestamp int64
	Source    cyrecore.Source
}

// Store is the latest-per-channel payload store with bounded history.
// Grounded on the teacher's FlowRegistry: a single shared map guarded by one
// lock, generalized here from arbitrary flow state to payload snapshots
// because the ring-buffer and history-read operations need more than the
// load/store/delete verbs sync.Map exposes.
type Store struct {
	mu         sync.RWMutex
	current    map[string]any
	history    map[string][]Entry
	maxHistory int
}

// New returns a payload store whose history ring holds at most maxHistory
// entries per channel (spec default is 50).
func New(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = 50
	}
	return &Store{
		current:    make(map[string]any),
		history:    make(map[string][]Entry),
		maxHistory: maxHistory,
	}
}

// Get returns the current payload for a channel.
func (s *Store) Get(id string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.current[id]
	return v, ok
}

// Set records a new current payload and appends it to the history ring,
// dropping the oldest entry once the ring is full.
func (s *Store) Set(id string, payload any, source cyrecore.Source, timestamp int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current[id] = payload
	entry := Entry{Payload: payload, Timestamp: timestamp, Source: source}

	ring := s.history[id]
	ring = append(ring, entry)
	if len(ring) > s.maxHistory {
		ring = ring[len(ring)-s.maxHistory:]
	}
	s.history[id] = ring
}

// GetHistory returns up to limit most-recent entries, newest last. limit<=0
// returns the full ring.
func (s *Store) GetHistory(id string, limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring := s.history[id]
	if limit <= 0 || limit >= len(ring) {
		out := make([]Entry, len(ring))
		copy(out, ring)
		return out
	}
	out := make([]Entry, limit)
	copy(out, ring[len(ring)-limit:])
	return out
}

// Clear wipes every channel's current payload and history. Forgetting a
// single channel does not touch its payload state — only an explicit Clear
// does, per the "preserve history until explicitly cleared" lifecycle rule.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = make(map[string]any)
	s.history = make(map[string][]Entry)
}

// DetectChanges reports whether payload differs structurally from the
// channel's currently stored payload (the pre-transform basis adopted for
// the detectChanges stage).
func (s *Store) DetectChanges(id string, payload any) bool {
	prev, ok := s.Get(id)
	if !ok {
		return true
	}
	return !Equal(prev, payload)
}

// Equal is the structural-equality comparison detectChanges and the
// compiled detectChanges stage use: deep value comparison for ordinary
// data. A function value never compares equal, not even to itself, and
// reflect.DeepEqual likewise treats any non-nil function nested inside a
// structure as unequal. reflect.DeepEqual already tracks visited pointers,
// so cyclic structures compare safely rather than looping.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() == reflect.Func || vb.Kind() == reflect.Func {
		return false
	}
	return reflect.DeepEqual(a, b)
}
