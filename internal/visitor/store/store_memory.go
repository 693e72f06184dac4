package store

import (
	"context"
	"sync"
	"time"

	"gatepass/internal/visitor/models"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// InMemory mimics the Postgres store's constraint semantics: one row per
// non-empty phone, conflict reported as sentinel.ErrConflict.
type InMemory struct {
	mu       sync.RWMutex
	byID     map[id.VisitorID]*models.Visitor
	phoneIdx map[string]id.VisitorID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:     make(map[id.VisitorID]*models.Visitor),
		phoneIdx: make(map[string]id.VisitorID),
	}
}

func (s *InMemory) Create(_ context.Context, v *models.Visitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[v.ID]; exists {
		return sentinel.ErrConflict
	}
	if v.Phone != "" {
		if _, taken := s.phoneIdx[v.Phone]; taken {
			return sentinel.ErrConflict
		}
		s.phoneIdx[v.Phone] = v.ID
	}
	s.byID[v.ID] = v.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, visitorID id.VisitorID) (*models.Visitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[visitorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return v.Clone(), nil
}

func (s *InMemory) FindByPhone(_ context.Context, phone string) (*models.Visitor, error) {
	if phone == "" {
		return nil, sentinel.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	visitorID, ok := s.phoneIdx[phone]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[visitorID].Clone(), nil
}

func (s *InMemory) Update(_ context.Context, v *models.Visitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[v.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if v.Phone != "" {
		if owner, taken := s.phoneIdx[v.Phone]; taken && owner != v.ID {
			return sentinel.ErrConflict
		}
	}
	if current.Phone != "" && current.Phone != v.Phone {
		delete(s.phoneIdx, current.Phone)
	}
	if v.Phone != "" {
		s.phoneIdx[v.Phone] = v.ID
	}
	s.byID[v.ID] = v.Clone()
	return nil
}

func (s *InMemory) Delete(_ context.Context, visitorID id.VisitorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[visitorID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if owner, indexed := s.phoneIdx[v.Phone]; indexed && owner == visitorID {
		delete(s.phoneIdx, v.Phone)
	}
	delete(s.byID, visitorID)
	return nil
}

// Seed stores a visitor without uniqueness checks, mirroring rows that
// predate the phone constraint. The phone index keeps its current owner, so
// seeded duplicates are reachable by ID and List but not by FindByPhone.
func (s *InMemory) Seed(v *models.Visitor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.Phone != "" {
		if _, taken := s.phoneIdx[v.Phone]; !taken {
			s.phoneIdx[v.Phone] = v.ID
		}
	}
	s.byID[v.ID] = v.Clone()
}

// List returns all visitors; the reconciler scans with it.
func (s *InMemory) List(_ context.Context) ([]*models.Visitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Visitor, 0, len(s.byID))
	for _, v := range s.byID {
		out = append(out, v.Clone())
	}
	return out, nil
}

// ApplyRegistration bumps the derived aggregates for one new registration.
func (s *InMemory) ApplyRegistration(_ context.Context, visitorID id.VisitorID, exhibitionID id.ExhibitionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[visitorID]
	if !ok {
		return sentinel.ErrNotFound
	}
	v.TotalRegistrations++
	if v.LastRegistrationDate == nil || at.After(*v.LastRegistrationDate) {
		t := at
		v.LastRegistrationDate = &t
	}
	v.AddExhibition(exhibitionID)
	v.UpdatedAt = at
	return nil
}
