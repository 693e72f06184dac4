package audit

import (
	"context"
	"log/slog"
	"time"
)

// Publisher captures structured audit events. Appends are synchronous for
// integrity events (a reconciler mutation without its audit row is itself
// drift) and best-effort for operations events.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for emission failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit persists an integrity event. Returns the store error so callers can
// fail the mutation when the audit trail cannot be written.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	p.prepare(&event)
	return p.store.Append(ctx, event)
}

// EmitBestEffort persists an operations event, logging instead of failing.
// Registration submission must never roll back because an audit row could
// not be written.
func (p *Publisher) EmitBestEffort(ctx context.Context, event Event) {
	p.prepare(&event)
	if err := p.store.Append(ctx, event); err != nil && p.logger != nil {
		p.logger.WarnContext(ctx, "audit append failed",
			"action", event.Action,
			"subject", event.Subject,
			"error", err,
		)
	}
}

func (p *Publisher) prepare(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = AuditEvent(event.Action).Category()
	}
}
