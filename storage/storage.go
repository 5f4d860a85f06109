// Package storage defines the pluggable durability boundary referenced by
// spec.md §6. Concrete database-backed storage drivers are an out-of-core
// external collaborator per spec.md §1; this package defines only the
// interface and a reference in-memory implementation so eventlog/durable and
// checkpoint/durable have something real to wrap and test against.
package storage

import (
	"context"
	"sync"
)

// Record is one opaque, ordered write against a named stream (an invocation
// ID for event logs, a step ID namespace for checkpoints).
type Record struct {
	Stream string
	Seq    uint64
	Data   []byte
}

// Backend is the durability boundary every persistence-backed component
// mirrors its writes through. A concrete backend (Postgres, SQLite, a
// key-value store) lives outside this module; Memory below is the reference
// implementation used in tests and as the zero-config default.
type Backend interface {
	Append(ctx context.Context, record Record) error
	Load(ctx context.Context, stream string) ([]Record, error)
}

// Memory is a reference Backend that keeps everything in process memory.
// It exists to exercise the Backend interface end to end without pulling in
// a real database driver, which spec.md §1 scopes out of this module.
type Memory struct {
	mu      sync.Mutex
	streams map[string][]Record
}

// NewMemory constructs an empty in-memory Backend.
func NewMemory() *Memory {
	return &Memory{streams: make(map[string][]Record)}
}

func (m *Memory) Append(_ context.Context, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streams == nil {
		m.streams = make(map[string][]Record)
	}
	m.streams[record.Stream] = append(m.streams[record.Stream], record)
	return nil
}

func (m *Memory) Load(_ context.Context, stream string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.streams[stream]))
	copy(out, m.streams[stream])
	return out, nil
}
