package audit

import "context"

// Store persists audit events. Implementations: in-memory (tests, dev mode)
// and the Postgres outbox (production, relayed to Kafka by the outbox worker).
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}
