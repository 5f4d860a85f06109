// Package checkpoint implements the replay journal that makes procedure
// invocations resumable (spec.md §4.C). Every journallable primitive — tool
// calls, agent turns, HITL requests, user-level Step.run — consults the
// journal before performing its effect, so a resumed invocation replays
// prior results instead of repeating side effects.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AnthusAI/Tactus/tactuserr"
)

// StepID identifies one journallable call site within an invocation. It
// takes the form "<callsite>:<ordinal>", where callsite is a stable
// designator of the lexical call site in the user script and ordinal is the
// per-call-site invocation counter, so deterministic scripts produce
// identical StepIDs run to run (spec.md §4.C).
type StepID string

// New builds a StepID from a callsite designator and its per-callsite
// ordinal.
func New(callsite string, ordinal int) StepID {
	return StepID(fmt.Sprintf("%s:%d", callsite, ordinal))
}

// Journal is the namespaced read-through cache backing one invocation. Child
// invocations hold their own Journal namespace (spec.md §4.C "scope").
type Journal interface {
	// ReadThrough implements the journal's core contract: on a hit, return
	// the stored raw JSON without calling fn; on a miss, call fn, journal
	// its result under typeTag, and return it. A hit whose stored typeTag
	// differs from typeTag raises CheckpointConflict, so a StepID whose
	// expected Go type changed across code versions is not silently
	// misdecoded. Decoding into a Go type is left to the caller (see
	// ReadThroughValue).
	ReadThrough(ctx context.Context, step StepID, typeTag string, fn func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, error)
	// Has reports whether step already has a journalled value, without
	// decoding it.
	Has(step StepID) bool
	// Purge discards every journalled entry. Nothing in this module calls it:
	// the scheduler does not purge a journal when its invocation terminates.
	Purge(ctx context.Context) error
}

// ReadThroughValue is a convenience wrapper around Journal.ReadThrough for
// callers working with a concrete Go type T instead of raw JSON.
func ReadThroughValue[T any](ctx context.Context, j Journal, step StepID, typeTag string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	raw, err := j.ReadThrough(ctx, step, typeTag, func(ctx context.Context) (json.RawMessage, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, tactuserr.Wrap(tactuserr.KindCheckpointConflict, err, fmt.Sprintf("step %s: journalled value does not match expected type", step))
	}
	return out, nil
}
