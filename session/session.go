// Package session implements the per-agent message log and context filter
// chain described in spec.md §4.F. The session itself is a plain ordered
// log; filters derive a read-only view for a given turn and never mutate it.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/AnthusAI/Tactus/eventlog"
	"github.com/AnthusAI/Tactus/model"
	"github.com/AnthusAI/Tactus/state"
)

// Session is a single ordered message log for one agent.
type Session struct {
	mu       sync.Mutex
	log      eventlog.Log
	messages []model.Message
}

// New constructs an empty Session. log is stored on the Session, but no
// Session method appends events to it.
func New(log eventlog.Log) *Session {
	return &Session{log: log}
}

// Append adds msg to the end of the log.
func (s *Session) Append(msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// History returns a copy of every message in the log, in order.
func (s *Session) History() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Clear empties the log.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// InjectSystem prepends a system message to the log.
func (s *Session) InjectSystem(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append([]model.Message{{Role: model.RoleSystem, Parts: []model.Part{model.TextPart{Text: text}}}}, s.messages...)
}

// SaveTo serializes the session's full history into a JSON-compatible value
// and stores it under key in store, so scripts can persist and later reload
// a session across sub-procedure boundaries.
func (s *Session) SaveTo(ctx context.Context, store *state.Store, key string) error {
	data, err := json.Marshal(s.History())
	if err != nil {
		return err
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	return store.Set(ctx, key, value)
}

// LoadFrom replaces the session's history with the value stored under key in
// store.
func (s *Session) LoadFrom(store *state.Store, key string) error {
	value := store.Get(key)
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var messages []model.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = messages
	return nil
}

// Filter derives a visible message list for one turn from the session's
// current history. Filters never mutate the underlying log (spec.md §4.F).
type Filter interface {
	Apply(messages []model.Message) []model.Message
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func([]model.Message) []model.Message

func (f FilterFunc) Apply(messages []model.Message) []model.Message { return f(messages) }
