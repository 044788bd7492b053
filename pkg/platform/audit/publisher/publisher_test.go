package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "fieldgate/pkg/domain"
	audit "fieldgate/pkg/platform/audit"
	"fieldgate/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	sessionID := id.NewSessionID()
	event := audit.Event{
		SessionID: sessionID,
		Action:    string(audit.EventSessionStarted),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := pub.List(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventSessionStarted), events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero(), "timestamp should be stamped on emit")
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))

	sessionID := id.NewSessionID()
	for i := 0; i < 5; i++ {
		err := pub.Emit(context.Background(), audit.Event{
			SessionID: sessionID,
			Action:    string(audit.EventLocationLocked),
		})
		require.NoError(t, err)
	}

	// Close flushes the queue before returning.
	pub.Close()

	events, err := store.ListBySession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestPublisher_AsyncOverflowDropsInsteadOfBlocking(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))

	sessionID := id.NewSessionID()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = pub.Emit(context.Background(), audit.Event{
				SessionID: sessionID,
				Action:    string(audit.EventRoleSelected),
			})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked on a full queue; audit must be fail-open")
	}
	pub.Close()
}
