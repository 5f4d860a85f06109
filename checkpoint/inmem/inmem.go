// Package inmem provides the default in-memory checkpoint.Journal
// implementation.
package inmem

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/AnthusAI/Tactus/checkpoint"
	"github.com/AnthusAI/Tactus/tactuserr"
)

type record struct {
	typeTag string
	value   json.RawMessage
}

// Journal is a mutex-guarded, map-backed checkpoint.Journal.
type Journal struct {
	mu      sync.Mutex
	entries map[checkpoint.StepID]record
}

var _ checkpoint.Journal = (*Journal)(nil)

// New constructs an empty Journal.
func New() *Journal {
	return &Journal{entries: make(map[checkpoint.StepID]record)}
}

// ReadThrough implements checkpoint.Journal.
func (j *Journal) ReadThrough(ctx context.Context, step checkpoint.StepID, typeTag string, fn func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	j.mu.Lock()
	rec, hit := j.entries[step]
	j.mu.Unlock()

	if hit {
		if rec.typeTag != typeTag {
			return nil, tactuserr.Newf(tactuserr.KindCheckpointConflict,
				"step %s: journalled as %q, code now expects %q", step, rec.typeTag, typeTag)
		}
		return rec.value, nil
	}

	value, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	j.mu.Lock()
	j.entries[step] = record{typeTag: typeTag, value: value}
	j.mu.Unlock()
	return value, nil
}

// Has reports whether step has a journalled value.
func (j *Journal) Has(step checkpoint.StepID) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.entries[step]
	return ok
}

// Purge discards every journalled entry.
func (j *Journal) Purge(context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = make(map[checkpoint.StepID]record)
	return nil
}

// Snapshot returns a stable copy of the journal contents, keyed by StepID.
func (j *Journal) Snapshot() map[checkpoint.StepID]json.RawMessage {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[checkpoint.StepID]json.RawMessage, len(j.entries))
	for k, v := range j.entries {
		out[k] = v.value
	}
	return out
}

func (j *Journal) String() string {
	return fmt.Sprintf("inmem.Journal{entries: %d}", len(j.entries))
}
