package audit

import "time"

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and topic routing.
type EventCategory string

const (
	// CategoryIntegrity covers events that mutate persisted registration or
	// visitor state outside the normal write path. These must always be
	// persisted so reconciler runs are fully auditable.
	CategoryIntegrity EventCategory = "integrity"

	// CategoryOperations covers routine write-path events useful for
	// debugging and operational visibility. These can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Subject identifies the entity acted on (registration number,
	// visitor ID, exhibition ID) as a string.
	Subject string
	Action  string
	// Reason records why the mutation happened, e.g. which invariant the
	// reconciler was restoring.
	Reason string
	// RequestID is the correlation ID from HTTP request context, empty for
	// scheduled reconciler runs.
	RequestID string
	// ActorID is the operator subject for admin-triggered mutations.
	ActorID string
}

type AuditEvent string

const (
	// Write-path events
	EventRegistrationCreated AuditEvent = "registration_created"
	EventVisitorCreated      AuditEvent = "visitor_created"
	EventVisitorMatched      AuditEvent = "visitor_matched"

	// Reconciler events
	EventVisitorMerged             AuditEvent = "visitor_merged"
	EventMergeAmbiguous            AuditEvent = "visitor_merge_ambiguous"
	EventOrphanRegistrationGone    AuditEvent = "orphan_registration_removed"
	EventOrphanVisitorGone         AuditEvent = "orphan_visitor_removed"
	EventDuplicateRegistrationGone AuditEvent = "duplicate_registration_removed"
	EventCustomFieldsReconciled    AuditEvent = "custom_fields_reconciled"
	EventAggregatesRecomputed      AuditEvent = "aggregates_recomputed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventRegistrationCreated: CategoryOperations,
	EventVisitorCreated:      CategoryOperations,
	EventVisitorMatched:      CategoryOperations,

	EventVisitorMerged:             CategoryIntegrity,
	EventMergeAmbiguous:            CategoryIntegrity,
	EventOrphanRegistrationGone:    CategoryIntegrity,
	EventOrphanVisitorGone:         CategoryIntegrity,
	EventDuplicateRegistrationGone: CategoryIntegrity,
	EventCustomFieldsReconciled:    CategoryIntegrity,
	EventAggregatesRecomputed:      CategoryIntegrity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
