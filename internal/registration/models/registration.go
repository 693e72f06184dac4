package models

import (
	"slices"
	"time"

	id "gatepass/pkg/domain"
	"gatepass/pkg/fielddata"
)

// Status is the registration lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCheckedIn Status = "checked_in"
	StatusCancelled Status = "cancelled"
)

// Registration is one submitted registration. The registration number is
// globally unique; the storage-level unique constraint is the final backstop
// behind the allocator.
type Registration struct {
	ID                 id.RegistrationID
	RegistrationNumber string
	VisitorID          id.VisitorID
	ExhibitionID       id.ExhibitionID
	RegistrationDate   time.Time
	Category           string
	Interests          []string
	// CustomFields is the admin-configurable open mapping. Reconciliation
	// may later move canonical keys out of it onto the visitor.
	CustomFields fielddata.Map
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active reports whether the registration counts toward exhibition totals.
func (r *Registration) Active() bool {
	return r.Status != StatusCancelled
}

// Clone returns a deep copy so in-memory stores hand out snapshots.
func (r *Registration) Clone() *Registration {
	out := *r
	out.Interests = slices.Clone(r.Interests)
	out.CustomFields = r.CustomFields.Clone()
	return &out
}
