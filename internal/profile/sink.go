package profile

import (
	"context"
	"log/slog"
	"time"

	dErrors "fieldgate/pkg/domain-errors"
	id "fieldgate/pkg/domain"
)

// Sink receives the profile of a completed verification. The hosting portal
// implements this to persist the member and open its dashboard session.
type Sink interface {
	Deliver(ctx context.Context, sessionID id.SessionID, role Role, profile Profile) error
}

// RetrySink wraps a Sink with bounded retry. Handoff is the last step of the
// flow and the portal side may be briefly unavailable, so transient failures
// get a few backed-off attempts before the flow reports the handoff as
// failed.
type RetrySink struct {
	next     Sink
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	onRetry  func()
}

type RetryOption func(*RetrySink)

// WithAttempts sets the total number of delivery attempts (minimum 1).
func WithAttempts(attempts int) RetryOption {
	return func(r *RetrySink) {
		if attempts >= 1 {
			r.attempts = attempts
		}
	}
}

// WithBackoff sets the initial backoff; it doubles between attempts.
func WithBackoff(backoff time.Duration) RetryOption {
	return func(r *RetrySink) {
		r.backoff = backoff
	}
}

func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(r *RetrySink) {
		r.logger = logger
	}
}

// WithOnRetry registers a callback fired on each retry, for metrics.
func WithOnRetry(fn func()) RetryOption {
	return func(r *RetrySink) {
		r.onRetry = fn
	}
}

func NewRetrySink(next Sink, opts ...RetryOption) *RetrySink {
	r := &RetrySink{
		next:     next,
		attempts: 3,
		backoff:  200 * time.Millisecond,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RetrySink) Deliver(ctx context.Context, sessionID id.SessionID, role Role, profile Profile) error {
	var lastErr error
	delay := r.backoff

	for attempt := 1; attempt <= r.attempts; attempt++ {
		lastErr = r.next.Deliver(ctx, sessionID, role, profile)
		if lastErr == nil {
			return nil
		}
		// Bad input will not improve on retry.
		if dErrors.Is(lastErr, dErrors.CodeInvalidInput) {
			return lastErr
		}
		if attempt == r.attempts {
			break
		}

		if r.onRetry != nil {
			r.onRetry()
		}
		if r.logger != nil {
			r.logger.WarnContext(ctx, "profile handoff failed, retrying",
				"session_id", sessionID.String(),
				"attempt", attempt,
				"error", lastErr,
			)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "handoff abandoned")
		}
		delay *= 2
	}
	return dErrors.Wrap(lastErr, dErrors.CodeUnavailable, "profile handoff failed")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
