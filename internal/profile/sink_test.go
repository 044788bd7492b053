package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "fieldgate/pkg/domain-errors"
	id "fieldgate/pkg/domain"
)

type scriptedSink struct {
	failures int
	calls    int
	err      error
}

func (s *scriptedSink) Deliver(context.Context, id.SessionID, Role, Profile) error {
	s.calls++
	if s.calls <= s.failures {
		if s.err != nil {
			return s.err
		}
		return errors.New("portal unavailable")
	}
	return nil
}

func instantSleep(r *RetrySink) { r.sleep = func(context.Context, time.Duration) error { return nil } }

func TestRetrySinkSucceedsAfterTransientFailures(t *testing.T) {
	next := &scriptedSink{failures: 2}
	retries := 0
	sink := NewRetrySink(next, WithAttempts(3), WithOnRetry(func() { retries++ }))
	instantSleep(sink)

	err := sink.Deliver(context.Background(), id.NewSessionID(), RoleGuest, Profile{Name: "Budi"})
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)
	assert.Equal(t, 2, retries)
}

func TestRetrySinkGivesUpAfterAttempts(t *testing.T) {
	next := &scriptedSink{failures: 10}
	sink := NewRetrySink(next, WithAttempts(3))
	instantSleep(sink)

	err := sink.Deliver(context.Background(), id.NewSessionID(), RoleGuest, Profile{Name: "Budi"})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnavailable))
	assert.Equal(t, 3, next.calls)
}

func TestRetrySinkDoesNotRetryInvalidInput(t *testing.T) {
	next := &scriptedSink{
		failures: 10,
		err:      dErrors.New(dErrors.CodeInvalidInput, "missing name"),
	}
	sink := NewRetrySink(next, WithAttempts(3))
	instantSleep(sink)

	err := sink.Deliver(context.Background(), id.NewSessionID(), RoleGuest, Profile{})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
	assert.Equal(t, 1, next.calls)
}

func TestRetrySinkStopsWhenContextCancelled(t *testing.T) {
	next := &scriptedSink{failures: 10}
	sink := NewRetrySink(next, WithAttempts(5), WithBackoff(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sink.Deliver(ctx, id.NewSessionID(), RoleGuest, Profile{Name: "Budi"})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnavailable))
	assert.Equal(t, 1, next.calls)
}
