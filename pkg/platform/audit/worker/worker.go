// Package worker relays audit events from the Postgres outbox to Kafka.
//
// The relay polls the outbox table, publishes each entry to the topic for its
// category, and deletes the entry only after the publish is acknowledged, so
// an event is delivered at least once even if the process dies mid-batch.
package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "gatepass/pkg/platform/audit"
)

// Producer publishes a payload to a topic. Satisfied by kafka.Producer; tests
// swap in a recording fake.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte) error
}

// TopicFor maps an event category to its Kafka topic.
func TopicFor(category audit.EventCategory) string {
	switch category {
	case audit.CategoryIntegrity:
		return "gatepass.audit.integrity"
	default:
		return "gatepass.audit.operations"
	}
}

// Relay drains the outbox table into Kafka.
type Relay struct {
	db       *sql.DB
	producer Producer
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewRelay(db *sql.DB, producer Producer, logger *slog.Logger) *Relay {
	return &Relay{
		db:       db,
		producer: producer,
		logger:   logger,
		interval: 500 * time.Millisecond,
		batch:    100,
	}
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.DrainOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

type outboxRow struct {
	id       uuid.UUID
	subject  string
	payload  []byte
	category audit.EventCategory
}

// DrainOnce publishes and removes up to one batch of outbox entries.
func (r *Relay) DrainOnce(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload
		FROM outbox
		ORDER BY created_at ASC
		LIMIT $1
	`, r.batch)
	if err != nil {
		return fmt.Errorf("query outbox: %w", err)
	}

	var entries []outboxRow
	for rows.Next() {
		var entry outboxRow
		var eventType string
		if err := rows.Scan(&entry.id, &entry.subject, &eventType, &entry.payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox row: %w", err)
		}
		entry.category = audit.AuditEvent(eventType).Category()
		entries = append(entries, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, entry := range entries {
		topic := TopicFor(entry.category)
		if err := r.producer.Publish(ctx, topic, entry.subject, entry.payload); err != nil {
			// Leave the row in place; the next tick retries from here.
			return fmt.Errorf("publish outbox entry %s: %w", entry.id, err)
		}
		if _, err := r.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = $1`, entry.id); err != nil {
			return fmt.Errorf("delete outbox entry %s: %w", entry.id, err)
		}
	}
	return nil
}

// DecodeEvent parses an outbox payload back into an audit event plus its ID.
// Shared by the consumer so the wire format lives in one place.
func DecodeEvent(payload []byte) (uuid.UUID, audit.Event, error) {
	var raw struct {
		ID        string `json:"ID"`
		Category  string `json:"Category"`
		Timestamp string `json:"Timestamp"`
		Subject   string `json:"Subject"`
		Action    string `json:"Action"`
		Reason    string `json:"Reason"`
		RequestID string `json:"RequestID"`
		ActorID   string `json:"ActorID"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return uuid.Nil, audit.Event{}, fmt.Errorf("unmarshal audit payload: %w", err)
	}
	eventID, err := uuid.Parse(raw.ID)
	if err != nil {
		return uuid.Nil, audit.Event{}, fmt.Errorf("parse event id: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
	if err != nil {
		return uuid.Nil, audit.Event{}, fmt.Errorf("parse event timestamp: %w", err)
	}
	return eventID, audit.Event{
		Category:  audit.EventCategory(raw.Category),
		Timestamp: ts,
		Subject:   raw.Subject,
		Action:    raw.Action,
		Reason:    raw.Reason,
		RequestID: raw.RequestID,
		ActorID:   raw.ActorID,
	}, nil
}
