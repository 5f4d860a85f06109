package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/AnthusAI/Tactus/scheduler"
)

// wireEvent is the NDJSON shape streamed to stdout for `run`, matching
// spec.md §6's subscribe(invocation_id, since_seq) wire format: one JSON
// object per line, in sequence order.
type wireEvent struct {
	Seq          uint64    `json:"seq"`
	InvocationID string    `json:"invocation_id"`
	Type         string    `json:"type"`
	At           time.Time `json:"at"`
	Payload      any       `json:"payload,omitempty"`
}

// streamEvents polls h's invocation log for newly appended events every
// interval and writes each as one NDJSON line to w, until h reaches a
// terminal status. The in-memory engine runs each invocation on its own
// goroutine with no push-based subscribe channel (spec.md §6 describes the
// interface, not a transport), so polling Since is the straightforward way
// a CLI subscriber keeps up with a running invocation. logs resolves the
// invocation's log lazily since Interpreter constructs it slightly after
// Spawn returns the handle.
func streamEvents(ctx context.Context, w io.Writer, logs *logRegistry, sched *scheduler.Scheduler, h *scheduler.Handle) {
	var since uint64
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	drain := func() {
		log, ok := logs.get(h.ID)
		if !ok {
			return
		}
		events, err := log.Since(ctx, since)
		if err != nil {
			return
		}
		for _, e := range events {
			since = e.Seq
			line, err := json.Marshal(wireEvent{
				Seq:          e.Seq,
				InvocationID: e.InvocationID,
				Type:         string(e.Type),
				At:           e.At,
				Payload:      e.Payload,
			})
			if err != nil {
				continue
			}
			fmt.Fprintln(w, string(line))
		}
	}

	for {
		select {
		case <-ticker.C:
			drain()
			if isTerminal(sched.Status(h).Status) {
				drain()
				return
			}
		case <-ctx.Done():
			drain()
			return
		}
	}
}

func isTerminal(s scheduler.Status) bool {
	switch s {
	case scheduler.StatusCompleted, scheduler.StatusFailed, scheduler.StatusCancelled:
		return true
	default:
		return false
	}
}
