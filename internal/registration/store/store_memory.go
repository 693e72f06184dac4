package store

import (
	"context"
	"sync"
	"time"

	"gatepass/internal/registration/models"
	id "gatepass/pkg/domain"
	"gatepass/pkg/fielddata"
	"gatepass/pkg/platform/sentinel"
)

// InMemory mirrors the Postgres store's semantics, including the unique
// constraint on registration_number reported as sentinel.ErrConflict.
type InMemory struct {
	mu        sync.RWMutex
	byID      map[id.RegistrationID]*models.Registration
	numberIdx map[string]id.RegistrationID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:      make(map[id.RegistrationID]*models.Registration),
		numberIdx: make(map[string]id.RegistrationID),
	}
}

func (s *InMemory) Insert(_ context.Context, r *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[r.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, taken := s.numberIdx[r.RegistrationNumber]; taken {
		return sentinel.ErrConflict
	}
	s.numberIdx[r.RegistrationNumber] = r.ID
	s.byID[r.ID] = r.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, registrationID id.RegistrationID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[registrationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemory) FindByNumber(_ context.Context, number string) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	registrationID, ok := s.numberIdx[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[registrationID].Clone(), nil
}

func (s *InMemory) ListByVisitor(_ context.Context, visitorID id.VisitorID) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Registration
	for _, r := range s.byID {
		if r.VisitorID == visitorID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Registration, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, r.Clone())
	}
	return out, nil
}

// ReassignVisitor moves every registration from one visitor to another,
// returning how many rows changed. Used by duplicate merges.
func (s *InMemory) ReassignVisitor(_ context.Context, fromID, toID id.VisitorID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var moved int64
	for _, r := range s.byID {
		if r.VisitorID == fromID {
			r.VisitorID = toID
			moved++
		}
	}
	return moved, nil
}

func (s *InMemory) UpdateCustomFields(_ context.Context, registrationID id.RegistrationID, fields fielddata.Map, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[registrationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	r.CustomFields = fields.Clone()
	r.UpdatedAt = at
	return nil
}

func (s *InMemory) Delete(_ context.Context, registrationID id.RegistrationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[registrationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.numberIdx, r.RegistrationNumber)
	delete(s.byID, registrationID)
	return nil
}

// CountActiveByExhibition counts non-cancelled registrations, the source of
// truth behind the exhibition's mirrored counter.
func (s *InMemory) CountActiveByExhibition(_ context.Context, exhibitionID id.ExhibitionID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, r := range s.byID {
		if r.ExhibitionID == exhibitionID && r.Active() {
			n++
		}
	}
	return n, nil
}
