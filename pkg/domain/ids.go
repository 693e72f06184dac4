// Package domain holds the typed identifiers shared across the service.
//
// IDs are distinct types over uuid.UUID so a VisitorID can never be passed
// where a RegistrationID is expected. Parsing enforces the invariant that
// IDs are valid, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "gatepass/pkg/domain-errors"
)

type (
	// VisitorID identifies a canonical visitor record.
	VisitorID uuid.UUID
	// RegistrationID identifies a single registration row.
	RegistrationID uuid.UUID
	// ExhibitionID identifies an exhibition (owned externally).
	ExhibitionID uuid.UUID
)

// NewVisitorID returns a fresh random visitor ID.
func NewVisitorID() VisitorID { return VisitorID(uuid.New()) }

// NewRegistrationID returns a fresh random registration ID.
func NewRegistrationID() RegistrationID { return RegistrationID(uuid.New()) }

// NewExhibitionID returns a fresh random exhibition ID.
func NewExhibitionID() ExhibitionID { return ExhibitionID(uuid.New()) }

func (id VisitorID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ExhibitionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

func (id VisitorID) String() string      { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id ExhibitionID) String() string   { return uuid.UUID(id).String() }

// MarshalText lets typed IDs round-trip through JSON as canonical UUID strings.
func (id VisitorID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id RegistrationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ExhibitionID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }

func (id *VisitorID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = VisitorID(u)
	return nil
}

func (id *RegistrationID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = RegistrationID(u)
	return nil
}

func (id *ExhibitionID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = ExhibitionID(u)
	return nil
}

// ParseVisitorID validates and returns a VisitorID.
func ParseVisitorID(s string) (VisitorID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return VisitorID{}, err
	}
	return VisitorID(u), nil
}

// ParseRegistrationID validates and returns a RegistrationID.
func ParseRegistrationID(s string) (RegistrationID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return RegistrationID{}, err
	}
	return RegistrationID(u), nil
}

// ParseExhibitionID validates and returns an ExhibitionID.
func ParseExhibitionID(s string) (ExhibitionID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ExhibitionID{}, err
	}
	return ExhibitionID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}
