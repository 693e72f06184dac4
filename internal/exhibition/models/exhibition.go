package models

import (
	"time"

	id "gatepass/pkg/domain"
)

// Status is the exhibition lifecycle state, owned by the external lifecycle
// manager. The engine only reads it.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Exhibition mirrors the externally-owned exhibition record. ScopeKey
// partitions the sequence counters; CurrentRegistrationsCount is a derived
// aggregate whose source of truth is the registrations collection.
type Exhibition struct {
	ID                        id.ExhibitionID
	ScopeKey                  string
	Name                      string
	StartsAt                  *time.Time
	EndsAt                    *time.Time
	Status                    Status
	CurrentRegistrationsCount int64
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// Clone returns a copy so in-memory stores hand out snapshots.
func (e *Exhibition) Clone() *Exhibition {
	out := *e
	if e.StartsAt != nil {
		t := *e.StartsAt
		out.StartsAt = &t
	}
	if e.EndsAt != nil {
		t := *e.EndsAt
		out.EndsAt = &t
	}
	return &out
}
