package consumer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"gatepass/internal/platform/kafka"
	audit "gatepass/pkg/platform/audit"
	"gatepass/pkg/platform/audit/worker"
)

// EventSink writes a decoded event under its original ID. Satisfied by the
// Postgres audit store's AppendWithID.
type EventSink interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// MaterializeHandler turns outbox payloads back into queryable audit_events
// rows. Idempotent via the sink's ON CONFLICT DO NOTHING, so redelivery after
// a commit failure is harmless.
type MaterializeHandler struct {
	sink   EventSink
	logger *slog.Logger
}

func NewMaterializeHandler(sink EventSink, logger *slog.Logger) *MaterializeHandler {
	return &MaterializeHandler{sink: sink, logger: logger}
}

func (h *MaterializeHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	eventID, event, err := worker.DecodeEvent(msg.Value)
	if err != nil {
		// A payload that cannot decode never will; log and commit past it.
		h.logger.ErrorContext(ctx, "undecodable audit payload, skipping",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	return h.sink.AppendWithID(ctx, eventID, event)
}
