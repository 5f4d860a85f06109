// Package state implements the scoped key/value map described in spec.md
// §4.B: one Store per procedure invocation, restricted to JSON-serialisable
// values so every mutation can be journalled and replayed identically.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/AnthusAI/Tactus/eventlog"
)

// Value is any value a Store holds. The type itself does not restrict the
// shape; Set rejects a value that encoding/json cannot marshal, so every
// stored value can be journalled.
type Value any

// Store is a scoped key/value map for one procedure invocation. Every
// mutation emits a log-class event through the owning log so the event
// stream remains the single source of truth for what happened, per
// spec.md §4.B.
type Store struct {
	mu  sync.Mutex
	log eventlog.Log
	m   map[string]Value
}

// New constructs an empty Store that reports mutations through log.
func New(log eventlog.Log) *Store {
	return &Store{log: log, m: make(map[string]Value)}
}

// Get returns the value stored under key, or nil if absent.
func (s *Store) Get(key string) Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key]
}

// Has reports whether key has ever been set.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[key]
	return ok
}

// Set stores value under key, emitting a log-class event. A value that
// encoding/json cannot marshal is rejected with an error and not stored.
func (s *Store) Set(ctx context.Context, key string, value Value) error {
	if _, err := json.Marshal(value); err != nil {
		return fmt.Errorf("state: value for key %q is not JSON-serialisable: %w", key, err)
	}
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return s.emit(ctx, "set", key, value)
}

// Incr adds delta to the numeric value under key (treating an absent key as
// zero) and returns the new value. Non-numeric existing values are an
// invariant violation surfaced as a panic-free type error.
func (s *Store) Incr(ctx context.Context, key string, delta float64) (float64, error) {
	s.mu.Lock()
	cur, ok := s.m[key]
	var base float64
	if ok {
		f, isFloat := cur.(float64)
		if !isFloat {
			s.mu.Unlock()
			return 0, fmt.Errorf("state: key %q holds a non-numeric value and cannot be incremented", key)
		}
		base = f
	}
	next := base + delta
	s.m[key] = next
	s.mu.Unlock()
	if err := s.emit(ctx, "incr", key, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Clear removes every key, emitting a single log-class event.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.m = make(map[string]Value)
	s.mu.Unlock()
	return s.emit(ctx, "clear", "", nil)
}

// Dump returns a shallow copy of the entire store.
func (s *Store) Dump() map[string]Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Value, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

func (s *Store) emit(ctx context.Context, op, key string, value Value) error {
	if s.log == nil {
		return nil
	}
	_, err := s.log.Append(ctx, eventlog.Event{
		Type: eventlog.TypeLog,
		Payload: map[string]any{
			"scope": "state",
			"op":    op,
			"key":   key,
			"value": value,
		},
	})
	return err
}
