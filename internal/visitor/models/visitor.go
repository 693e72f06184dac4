package models

import (
	"slices"
	"time"

	id "gatepass/pkg/domain"
	"gatepass/pkg/fielddata"
)

// Visitor is the canonical identity record for a contact. One row per
// non-empty phone; rows without a phone can never be deduplicated.
//
// TotalRegistrations, LastRegistrationDate and RegisteredExhibitions are
// derived aggregates: caches recomputable from the registrations collection,
// never a source of truth.
type Visitor struct {
	ID      id.VisitorID
	Phone   string
	Email   string
	Name    string
	Company string
	// Attributes mirrors admin-configured dynamic fields.
	Attributes fielddata.Map

	TotalRegistrations    int64
	LastRegistrationDate  *time.Time
	RegisteredExhibitions []id.ExhibitionID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FillEmpty merges contact data non-destructively: only currently-empty
// fields are filled, populated ones are never overwritten. Reports whether
// anything changed.
func (v *Visitor) FillEmpty(email, name, company string, attrs fielddata.Map) bool {
	changed := false
	if v.Email == "" && email != "" {
		v.Email = email
		changed = true
	}
	if v.Name == "" && name != "" {
		v.Name = name
		changed = true
	}
	if v.Company == "" && company != "" {
		v.Company = company
		changed = true
	}
	for key, value := range attrs {
		if v.setAttributeIfEmpty(key, value) {
			changed = true
		}
	}
	return changed
}

// SetCoreFieldIfEmpty fills one of the canonical core fields (name, email,
// company, phone) when it is currently empty. Unknown fields report false.
func (v *Visitor) SetCoreFieldIfEmpty(field, value string) bool {
	if value == "" {
		return false
	}
	switch field {
	case "name":
		if v.Name == "" {
			v.Name = value
			return true
		}
	case "email":
		if v.Email == "" {
			v.Email = value
			return true
		}
	case "company":
		if v.Company == "" {
			v.Company = value
			return true
		}
	case "phone":
		if v.Phone == "" {
			v.Phone = value
			return true
		}
	}
	return false
}

// SetAttributeIfEmpty fills a dynamic attribute when absent or empty.
func (v *Visitor) SetAttributeIfEmpty(key string, value any) bool {
	return v.setAttributeIfEmpty(key, value)
}

func (v *Visitor) setAttributeIfEmpty(key string, value any) bool {
	if value == nil || value == "" {
		return false
	}
	existing, ok := v.Attributes[key]
	if ok && existing != nil && existing != "" {
		return false
	}
	if v.Attributes == nil {
		v.Attributes = fielddata.Map{}
	}
	v.Attributes[key] = value
	return true
}

// HasExhibition reports whether the visitor already counts the exhibition.
func (v *Visitor) HasExhibition(exhibitionID id.ExhibitionID) bool {
	return slices.Contains(v.RegisteredExhibitions, exhibitionID)
}

// AddExhibition records the exhibition in the derived set, keeping it a set.
func (v *Visitor) AddExhibition(exhibitionID id.ExhibitionID) {
	if !v.HasExhibition(exhibitionID) {
		v.RegisteredExhibitions = append(v.RegisteredExhibitions, exhibitionID)
	}
}

// Clone returns a deep copy so in-memory stores hand out snapshots.
func (v *Visitor) Clone() *Visitor {
	out := *v
	out.Attributes = v.Attributes.Clone()
	out.RegisteredExhibitions = slices.Clone(v.RegisteredExhibitions)
	if v.LastRegistrationDate != nil {
		t := *v.LastRegistrationDate
		out.LastRegistrationDate = &t
	}
	return &out
}
