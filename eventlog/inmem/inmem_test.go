package inmem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthusAI/Tactus/eventlog"
	"github.com/AnthusAI/Tactus/eventlog/inmem"
)

func TestAppendAssignsDenseStrictlyIncreasingSeq(t *testing.T) {
	ctx := context.Background()
	log := inmem.New("inv-1")

	for i := 0; i < 5; i++ {
		seq, err := log.Append(ctx, eventlog.Event{Type: eventlog.TypeLog})
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), seq)
	}
}

func TestSinceReturnsOnlyNewerEvents(t *testing.T) {
	ctx := context.Background()
	log := inmem.New("inv-1")
	for i := 0; i < 3; i++ {
		_, err := log.Append(ctx, eventlog.Event{Type: eventlog.TypeLog})
		require.NoError(t, err)
	}

	events, err := log.Since(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(2), events[0].Seq)
	assert.Equal(t, uint64(3), events[1].Seq)
}

func TestAppendAfterCloseRejected(t *testing.T) {
	ctx := context.Background()
	log := inmem.New("inv-1")
	require.NoError(t, log.Close(ctx))

	_, err := log.Append(ctx, eventlog.Event{Type: eventlog.TypeLog})
	var closedErr *eventlog.ErrClosed
	require.ErrorAs(t, err, &closedErr)
}

func TestSnapshotReturnsAllEventsInOrder(t *testing.T) {
	ctx := context.Background()
	log := inmem.New("inv-1")
	_, _ = log.Append(ctx, eventlog.Event{Type: eventlog.TypeExecution})
	_, _ = log.Append(ctx, eventlog.Event{Type: eventlog.TypeAgentTurn})

	snap, err := log.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, eventlog.TypeExecution, snap[0].Type)
	assert.Equal(t, eventlog.TypeAgentTurn, snap[1].Type)
}
