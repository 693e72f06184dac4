// Package service implements visitor identity resolution and repair.
//
// Resolution is optimistic: insert first, and only on a uniqueness conflict
// fall back to looking up the winner. A lookup-then-create sequence has a
// window where two concurrent submissions both miss and both insert; the
// partial unique index closes that window, and this service leans on it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	regmodels "gatepass/internal/registration/models"
	"gatepass/internal/visitor/canonical"
	"gatepass/internal/visitor/models"
	id "gatepass/pkg/domain"
	derrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/fielddata"
	"gatepass/pkg/platform/audit"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// resolveAttempts bounds the insert/lookup race loop. Each retry means the
// winning row was deleted between our conflict and our lookup, which only a
// concurrent merge can cause.
const resolveAttempts = 3

// Store is the visitor persistence contract.
type Store interface {
	Create(ctx context.Context, v *models.Visitor) error
	FindByID(ctx context.Context, visitorID id.VisitorID) (*models.Visitor, error)
	FindByPhone(ctx context.Context, phone string) (*models.Visitor, error)
	Update(ctx context.Context, v *models.Visitor) error
	Delete(ctx context.Context, visitorID id.VisitorID) error
	List(ctx context.Context) ([]*models.Visitor, error)
	ApplyRegistration(ctx context.Context, visitorID id.VisitorID, exhibitionID id.ExhibitionID, at time.Time) error
}

// RegistrationStore is the slice of the registration store this service
// needs for merges and custom-field reconciliation.
type RegistrationStore interface {
	FindByID(ctx context.Context, registrationID id.RegistrationID) (*regmodels.Registration, error)
	ListByVisitor(ctx context.Context, visitorID id.VisitorID) ([]*regmodels.Registration, error)
	ReassignVisitor(ctx context.Context, fromID, toID id.VisitorID) (int64, error)
	UpdateCustomFields(ctx context.Context, registrationID id.RegistrationID, fields fielddata.Map, at time.Time) error
}

type Service struct {
	visitors      Store
	registrations RegistrationStore
	audit         *audit.Publisher
	logger        *slog.Logger
}

func New(visitors Store, registrations RegistrationStore, auditor *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{
		visitors:      visitors,
		registrations: registrations,
		audit:         auditor,
		logger:        logger,
	}
}

// ResolveInput carries the contact data arriving with a registration.
type ResolveInput struct {
	Phone      string
	Email      string
	Name       string
	Company    string
	Attributes fielddata.Map
}

// ResolveOrCreate returns the visitor identified by the input's phone,
// creating one when none exists. An empty phone always creates a fresh
// visitor: phoneless rows carry no identity and are never matched against.
//
// On a phone match, empty fields on the existing visitor are filled from the
// input; populated fields are left alone. Reports whether the visitor was
// created.
func (s *Service) ResolveOrCreate(ctx context.Context, input ResolveInput) (*models.Visitor, bool, error) {
	now := requestcontext.Now(ctx)

	if input.Phone == "" {
		v := newVisitor(input, now)
		if err := s.visitors.Create(ctx, v); err != nil {
			return nil, false, derrors.Wrap(err, derrors.CodeUnavailable, "create visitor")
		}
		s.emitVisitor(ctx, audit.EventVisitorCreated, v.ID, "no phone supplied")
		return v, true, nil
	}

	for attempt := 0; attempt < resolveAttempts; attempt++ {
		v := newVisitor(input, now)
		err := s.visitors.Create(ctx, v)
		if err == nil {
			s.emitVisitor(ctx, audit.EventVisitorCreated, v.ID, "new phone")
			return v, true, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, false, derrors.Wrap(err, derrors.CodeUnavailable, "create visitor")
		}

		existing, err := s.visitors.FindByPhone(ctx, input.Phone)
		if errors.Is(err, sentinel.ErrNotFound) {
			// The row that beat us is already gone. Loop and insert again.
			continue
		}
		if err != nil {
			return nil, false, derrors.Wrap(err, derrors.CodeUnavailable, "find visitor by phone")
		}

		if existing.FillEmpty(input.Email, input.Name, input.Company, input.Attributes) {
			existing.UpdatedAt = now
			if err := s.visitors.Update(ctx, existing); err != nil {
				if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrConflict) {
					continue
				}
				return nil, false, derrors.Wrap(err, derrors.CodeUnavailable, "update visitor")
			}
		}
		s.emitVisitor(ctx, audit.EventVisitorMatched, existing.ID, "matched by phone")
		return existing, false, nil
	}

	return nil, false, derrors.New(derrors.CodeConflict, "visitor resolution kept racing, giving up")
}

// FindByID loads one visitor.
func (s *Service) FindByID(ctx context.Context, visitorID id.VisitorID) (*models.Visitor, error) {
	v, err := s.visitors.FindByID(ctx, visitorID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, derrors.New(derrors.CodeNotFound, "visitor not found")
	}
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "find visitor")
	}
	return v, nil
}

// ApplyRegistration updates the visitor's derived aggregates for one new
// registration.
func (s *Service) ApplyRegistration(ctx context.Context, visitorID id.VisitorID, exhibitionID id.ExhibitionID, at time.Time) error {
	err := s.visitors.ApplyRegistration(ctx, visitorID, exhibitionID, at)
	if errors.Is(err, sentinel.ErrNotFound) {
		return derrors.New(derrors.CodeNotFound, "visitor not found")
	}
	if err != nil {
		return derrors.Wrap(err, derrors.CodeUnavailable, "apply registration to visitor")
	}
	return nil
}

// MergeDuplicate folds mergeID into keepID: registrations are reassigned,
// empty contact fields on the survivor are filled from the loser, the
// survivor's aggregates are recomputed from its (now complete) registration
// list, and the loser is deleted.
//
// Merging an already-merged visitor returns not-found rather than acting
// twice: once the loser row is gone the merge is complete.
func (s *Service) MergeDuplicate(ctx context.Context, keepID, mergeID id.VisitorID) (*models.Visitor, error) {
	if keepID == mergeID {
		return nil, derrors.New(derrors.CodeInvalidInput, "cannot merge a visitor into itself")
	}
	keep, err := s.visitors.FindByID(ctx, keepID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, derrors.New(derrors.CodeNotFound, "surviving visitor not found")
	}
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "find surviving visitor")
	}
	loser, err := s.visitors.FindByID(ctx, mergeID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, derrors.New(derrors.CodeNotFound, "merged visitor not found")
	}
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "find merged visitor")
	}

	now := requestcontext.Now(ctx)

	moved, err := s.registrations.ReassignVisitor(ctx, loser.ID, keep.ID)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "reassign registrations")
	}

	keep.FillEmpty(loser.Email, loser.Name, loser.Company, loser.Attributes)

	regs, err := s.registrations.ListByVisitor(ctx, keep.ID)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "list registrations for aggregate rebuild")
	}
	RecomputeAggregates(keep, regs)
	keep.UpdatedAt = now

	// The loser must be gone before the survivor is written: while both rows
	// exist the loser may still hold the phone under the uniqueness
	// constraint, and the survivor's update would collide with it.
	if err := s.visitors.Delete(ctx, loser.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "delete merged visitor")
	}
	if err := s.visitors.Update(ctx, keep); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "update surviving visitor")
	}

	if err := s.audit.Emit(ctx, audit.Event{
		Subject:   keep.ID.String(),
		Action:    string(audit.EventVisitorMerged),
		Reason:    fmt.Sprintf("merged %s, moved %d registrations", loser.ID, moved),
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   requestcontext.Operator(ctx),
		Timestamp: now,
	}); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "record merge audit event")
	}
	return keep, nil
}

// Survivor picks which of several same-phone visitors survives a merge: the
// one the most registrations reference, then the earliest-created. When both
// tie the choice would be arbitrary, so the set is reported instead of
// resolved.
//
// references carries per-visitor counts taken from the registrations
// collection. The TotalRegistrations aggregate is deliberately not consulted:
// it is a rebuildable cache, and the sweep that calls this is the thing that
// rebuilds it.
func Survivor(candidates []*models.Visitor, references map[id.VisitorID]int64) (*models.Visitor, []*models.Visitor, error) {
	if len(candidates) < 2 {
		return nil, nil, derrors.New(derrors.CodeInvalidInput, "need at least two visitors to pick a survivor")
	}
	keep := candidates[0]
	ambiguous := false
	for _, c := range candidates[1:] {
		switch {
		case references[c.ID] > references[keep.ID]:
			keep, ambiguous = c, false
		case references[c.ID] < references[keep.ID]:
		case c.CreatedAt.Before(keep.CreatedAt):
			keep, ambiguous = c, false
		case c.CreatedAt.Equal(keep.CreatedAt):
			ambiguous = true
		}
	}
	if ambiguous {
		return nil, nil, derrors.New(derrors.CodeMergeAmbiguous, "duplicate visitors tie on registrations and creation time")
	}
	losers := make([]*models.Visitor, 0, len(candidates)-1)
	for _, c := range candidates {
		if c.ID != keep.ID {
			losers = append(losers, c)
		}
	}
	return keep, losers, nil
}

// ReconcileCustomFields moves canonical keys out of a registration's custom
// fields onto its visitor. A canonical value fills the visitor field only
// when that field is empty; either way the key leaves the custom-field map,
// so a second run over the same registration is a no-op.
func (s *Service) ReconcileCustomFields(ctx context.Context, registrationID id.RegistrationID) (bool, error) {
	reg, err := s.registrations.FindByID(ctx, registrationID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, derrors.New(derrors.CodeNotFound, "registration not found")
	}
	if err != nil {
		return false, derrors.Wrap(err, derrors.CodeUnavailable, "find registration")
	}
	if len(reg.CustomFields) == 0 {
		return false, nil
	}

	v, err := s.visitors.FindByID(ctx, reg.VisitorID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, derrors.New(derrors.CodeInvariantViolation, "registration references a missing visitor")
	}
	if err != nil {
		return false, derrors.Wrap(err, derrors.CodeUnavailable, "find visitor")
	}

	remaining := fielddata.Map{}
	visitorChanged := false
	for key, value := range reg.CustomFields {
		normalized, core, ok := canonical.Match(key)
		if !ok {
			remaining[key] = value
			continue
		}
		if core {
			if text, isText := fielddata.AsString(value); isText && v.SetCoreFieldIfEmpty(normalized, text) {
				visitorChanged = true
			}
		} else if v.SetAttributeIfEmpty(normalized, value) {
			visitorChanged = true
		}
	}
	if len(remaining) == len(reg.CustomFields) {
		return false, nil
	}

	now := requestcontext.Now(ctx)
	if visitorChanged {
		v.UpdatedAt = now
		if err := s.visitors.Update(ctx, v); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// A canonical phone value collided with another visitor's
				// phone. Leave both rows alone; the duplicate sweep owns this.
				return false, derrors.New(derrors.CodeConflict, "canonical phone already belongs to another visitor")
			}
			return false, derrors.Wrap(err, derrors.CodeUnavailable, "update visitor")
		}
	}
	if err := s.registrations.UpdateCustomFields(ctx, reg.ID, remaining, now); err != nil {
		return false, derrors.Wrap(err, derrors.CodeUnavailable, "strip canonical custom fields")
	}

	if err := s.audit.Emit(ctx, audit.Event{
		Subject:   reg.RegistrationNumber,
		Action:    string(audit.EventCustomFieldsReconciled),
		Reason:    fmt.Sprintf("moved %d canonical keys to visitor %s", len(reg.CustomFields)-len(remaining), v.ID),
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   requestcontext.Operator(ctx),
		Timestamp: now,
	}); err != nil {
		return false, derrors.Wrap(err, derrors.CodeUnavailable, "record reconciliation audit event")
	}
	return true, nil
}

// RecomputeAggregates rebuilds a visitor's derived fields from the full
// registration list. Shared with the reconciler's aggregate sweep.
func RecomputeAggregates(v *models.Visitor, regs []*regmodels.Registration) {
	v.TotalRegistrations = int64(len(regs))
	v.LastRegistrationDate = nil
	v.RegisteredExhibitions = nil
	for _, r := range regs {
		if v.LastRegistrationDate == nil || r.RegistrationDate.After(*v.LastRegistrationDate) {
			t := r.RegistrationDate
			v.LastRegistrationDate = &t
		}
		v.AddExhibition(r.ExhibitionID)
	}
}

func newVisitor(input ResolveInput, now time.Time) *models.Visitor {
	return &models.Visitor{
		ID:         id.NewVisitorID(),
		Phone:      input.Phone,
		Email:      input.Email,
		Name:       input.Name,
		Company:    input.Company,
		Attributes: input.Attributes.Clone(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *Service) emitVisitor(ctx context.Context, action audit.AuditEvent, visitorID id.VisitorID, reason string) {
	s.audit.EmitBestEffort(ctx, audit.Event{
		Subject:   visitorID.String(),
		Action:    string(action),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		Timestamp: requestcontext.Now(ctx),
	})
}
