// Package publisher provides the default audit publisher: synchronous store
// writes by default, optional async buffering for hot paths. Verification
// audit is fail-open — a lost ops event must never block a user mid-flow —
// so async drops are logged, not returned.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "fieldgate/pkg/domain"
	audit "fieldgate/pkg/platform/audit"
)

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	inbox  chan audit.Event
	wg     sync.WaitGroup
	closed chan struct{}
}

type Option func(*Publisher)

// WithLogger sets a logger for drop/error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer switches the publisher to buffered async delivery with the
// given queue depth.
func WithAsyncBuffer(depth int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, depth)
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. In sync mode the store write happens inline; in
// async mode the event is queued and a full queue drops the event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit queue full, dropping event", "action", event.Action)
		}
	}
	return nil
}

// List returns events recorded for a session.
func (p *Publisher) List(ctx context.Context, sessionID id.SessionID) ([]audit.Event, error) {
	return p.store.ListBySession(ctx, sessionID)
}

// Close flushes the async queue and stops the drain goroutine.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	close(p.closed)
	p.wg.Wait()
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for {
		select {
		case event := <-p.inbox:
			p.append(event)
		case <-p.closed:
			for {
				select {
				case event := <-p.inbox:
					p.append(event)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) append(event audit.Event) {
	if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
		p.logger.Warn("failed to append audit event", "action", event.Action, "error", err)
	}
}
