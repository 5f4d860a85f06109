// Package inmem provides the default in-memory eventlog.Log implementation.
// It is always available and backs every invocation unless a durable
// StorageBackend is configured; durability beyond process lifetime is
// delegated to eventlog/durable, which wraps a Log with mirrored writes.
package inmem

import (
	"context"
	"sync"

	"github.com/AnthusAI/Tactus/eventlog"
)

// Log is a mutex-guarded, slice-backed eventlog.Log. Sequence numbers are
// assigned densely starting at 1, satisfying spec.md §3 invariant 1 and the
// §8 property that sequence numbers form a dense strictly-increasing series.
type Log struct {
	mu           sync.Mutex
	invocationID string
	events       []eventlog.Event
	closed       bool
}

var _ eventlog.Log = (*Log)(nil)

// New constructs an empty in-memory log for the given invocation.
func New(invocationID string) *Log {
	return &Log{invocationID: invocationID}
}

// Append assigns the next sequence number to event and stores it.
func (l *Log) Append(_ context.Context, event eventlog.Event) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, &eventlog.ErrClosed{InvocationID: l.invocationID}
	}
	event.Seq = uint64(len(l.events)) + 1
	event.InvocationID = l.invocationID
	l.events = append(l.events, event)
	return event.Seq, nil
}

// Since returns every event recorded after the given sequence number.
func (l *Log) Since(_ context.Context, since uint64) ([]eventlog.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if since >= uint64(len(l.events)) {
		return nil, nil
	}
	out := make([]eventlog.Event, len(l.events)-int(since))
	copy(out, l.events[since:])
	return out, nil
}

// Snapshot returns every event recorded so far.
func (l *Log) Snapshot(ctx context.Context) ([]eventlog.Event, error) {
	return l.Since(ctx, 0)
}

// Close marks the log closed, rejecting any further appends. Matches the
// spec.md §4.A contract that stores may reject appends once an invocation
// reaches a terminal status.
func (l *Log) Close(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
