// Package durable wraps an in-memory eventlog.Log with mirrored writes to a
// storage.Backend, giving invocations durability beyond process lifetime
// without this module owning a concrete database driver (spec.md §1).
package durable

import (
	"context"
	"encoding/json"

	"github.com/AnthusAI/Tactus/eventlog"
	"github.com/AnthusAI/Tactus/eventlog/inmem"
	"github.com/AnthusAI/Tactus/storage"
)

// Log mirrors every Append to a storage.Backend after applying it to an
// in-memory eventlog.Log, so reads are served from memory while writes are
// durable.
type Log struct {
	mem     *inmem.Log
	backend storage.Backend
	stream  string
}

var _ eventlog.Log = (*Log)(nil)

// New constructs a durable Log for invocationID, mirroring writes to stream
// in backend.
func New(invocationID string, backend storage.Backend) *Log {
	return &Log{mem: inmem.New(invocationID), backend: backend, stream: invocationID}
}

// Restore replays every record previously mirrored to backend for stream
// into a fresh in-memory Log, for resuming an invocation after a process
// restart.
func Restore(ctx context.Context, invocationID string, backend storage.Backend) (*Log, error) {
	l := New(invocationID, backend)
	records, err := backend.Load(ctx, invocationID)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		var event eventlog.Event
		if err := json.Unmarshal(record.Data, &event); err != nil {
			return nil, err
		}
		if _, err := l.mem.Append(ctx, event); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Log) Append(ctx context.Context, event eventlog.Event) (uint64, error) {
	seq, err := l.mem.Append(ctx, event)
	if err != nil {
		return 0, err
	}
	event.Seq = seq
	data, err := json.Marshal(event)
	if err != nil {
		return seq, err
	}
	if err := l.backend.Append(ctx, storage.Record{Stream: l.stream, Seq: seq, Data: data}); err != nil {
		return seq, err
	}
	return seq, nil
}

func (l *Log) Since(ctx context.Context, since uint64) ([]eventlog.Event, error) {
	return l.mem.Since(ctx, since)
}

func (l *Log) Snapshot(ctx context.Context) ([]eventlog.Event, error) {
	return l.mem.Snapshot(ctx)
}

func (l *Log) Close(ctx context.Context) error {
	return l.mem.Close(ctx)
}
