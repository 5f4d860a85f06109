// Package durable wraps an in-memory checkpoint.Journal with mirrored
// writes to a storage.Backend, so a resumed invocation can rebuild its
// journal after a process restart.
package durable

import (
	"context"
	"encoding/json"

	"github.com/AnthusAI/Tactus/checkpoint"
	"github.com/AnthusAI/Tactus/checkpoint/inmem"
	"github.com/AnthusAI/Tactus/storage"
)

type wireEntry struct {
	Step    checkpoint.StepID `json:"step"`
	TypeTag string            `json:"type_tag"`
	Value   json.RawMessage   `json:"value"`
}

// Journal mirrors every journalled write to a storage.Backend.
type Journal struct {
	mem     *inmem.Journal
	backend storage.Backend
	stream  string
	seq     uint64
}

var _ checkpoint.Journal = (*Journal)(nil)

// New constructs a durable Journal for invocationID, mirroring writes to
// stream in backend.
func New(invocationID string, backend storage.Backend) *Journal {
	return &Journal{mem: inmem.New(), backend: backend, stream: "checkpoint:" + invocationID}
}

// Restore replays every record previously mirrored to backend for
// invocationID into a fresh in-memory Journal, for resuming after a process
// restart.
func Restore(ctx context.Context, invocationID string, backend storage.Backend) (*Journal, error) {
	j := New(invocationID, backend)
	records, err := backend.Load(ctx, j.stream)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		var we wireEntry
		if err := json.Unmarshal(record.Data, &we); err != nil {
			return nil, err
		}
		if _, err := j.mem.ReadThrough(ctx, we.Step, we.TypeTag, func(context.Context) (json.RawMessage, error) {
			return we.Value, nil
		}); err != nil {
			return nil, err
		}
		j.seq = record.Seq
	}
	return j, nil
}

func (j *Journal) ReadThrough(ctx context.Context, step checkpoint.StepID, typeTag string, fn func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	if j.mem.Has(step) {
		return j.mem.ReadThrough(ctx, step, typeTag, fn)
	}
	value, err := j.mem.ReadThrough(ctx, step, typeTag, fn)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(wireEntry{Step: step, TypeTag: typeTag, Value: value})
	if err != nil {
		return value, err
	}
	j.seq++
	if err := j.backend.Append(ctx, storage.Record{Stream: j.stream, Seq: j.seq, Data: data}); err != nil {
		return value, err
	}
	return value, nil
}

func (j *Journal) Has(step checkpoint.StepID) bool { return j.mem.Has(step) }

func (j *Journal) Purge(ctx context.Context) error { return j.mem.Purge(ctx) }
