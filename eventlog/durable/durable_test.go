package durable_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthusAI/Tactus/eventlog"
	"github.com/AnthusAI/Tactus/eventlog/durable"
	"github.com/AnthusAI/Tactus/storage"
)

func TestAppendMirrorsToBackendAndServesReadsFromMemory(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	log := durable.New("inv-1", backend)

	seq, err := log.Append(ctx, eventlog.Event{Type: eventlog.TypeLog, InvocationID: "inv-1"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	records, err := backend.Load(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	snapshot, err := log.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, eventlog.TypeLog, snapshot[0].Type)
}

func TestRestoreRebuildsLogFromBackend(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	original := durable.New("inv-2", backend)

	_, err := original.Append(ctx, eventlog.Event{Type: eventlog.TypeToolCall, Payload: map[string]any{"tool": "shout"}})
	require.NoError(t, err)
	_, err = original.Append(ctx, eventlog.Event{Type: eventlog.TypeStageChange, Payload: map[string]any{"to": "done"}})
	require.NoError(t, err)

	restored, err := durable.Restore(ctx, "inv-2", backend)
	require.NoError(t, err)

	events, err := restored.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, eventlog.TypeToolCall, events[0].Type)
	assert.Equal(t, eventlog.TypeStageChange, events[1].Type)
}

func TestSinceReturnsOnlyNewerEvents(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	log := durable.New("inv-3", backend)

	first, err := log.Append(ctx, eventlog.Event{Type: eventlog.TypeLog})
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.Event{Type: eventlog.TypeLog})
	require.NoError(t, err)

	events, err := log.Since(ctx, first)
	require.NoError(t, err)
	require.Len(t, events, 1)
}
