package verification

import (
	"context"
	"log/slog"
	"time"
)

// Janitor reaps abandoned sessions whose TTL has lapsed. Stores with native
// expiry make the sweep a no-op; the in-memory store relies on it.
type Janitor struct {
	store    SessionStore
	interval time.Duration
	logger   *slog.Logger
	clock    Clock
}

type JanitorOption func(*Janitor)

func WithJanitorLogger(logger *slog.Logger) JanitorOption {
	return func(j *Janitor) { j.logger = logger }
}

func WithJanitorClock(clock Clock) JanitorOption {
	return func(j *Janitor) { j.clock = clock }
}

func NewJanitor(store SessionStore, interval time.Duration, opts ...JanitorOption) *Janitor {
	j := &Janitor{
		store:    store,
		interval: interval,
		logger:   slog.Default(),
		clock:    realClock{},
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run sweeps on the configured interval until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep removes expired sessions once.
func (j *Janitor) Sweep(ctx context.Context) {
	removed, err := j.store.DeleteExpired(ctx, j.clock.Now())
	if err != nil {
		j.logger.WarnContext(ctx, "session sweep failed", "error", err)
		return
	}
	if removed > 0 {
		j.logger.InfoContext(ctx, "reaped expired sessions", "count", removed)
	}
}
