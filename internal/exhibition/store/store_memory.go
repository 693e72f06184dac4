package store

import (
	"context"
	"sync"
	"time"

	"gatepass/internal/exhibition/models"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

type InMemory struct {
	mu   sync.RWMutex
	byID map[id.ExhibitionID]*models.Exhibition
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[id.ExhibitionID]*models.Exhibition)}
}

func (s *InMemory) Create(_ context.Context, e *models.Exhibition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[e.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.byID {
		if existing.ScopeKey == e.ScopeKey {
			return sentinel.ErrConflict
		}
	}
	s.byID[e.ID] = e.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, exhibitionID id.ExhibitionID) (*models.Exhibition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[exhibitionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Exhibition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Exhibition, 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, e.Clone())
	}
	return out, nil
}

// IncrementCount bumps the mirrored registration counter in place.
func (s *InMemory) IncrementCount(_ context.Context, exhibitionID id.ExhibitionID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[exhibitionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	e.CurrentRegistrationsCount += delta
	e.UpdatedAt = time.Now()
	return nil
}

// SetCount overwrites the mirrored counter; the reconciler uses it when
// rebuilding from the registrations collection.
func (s *InMemory) SetCount(_ context.Context, exhibitionID id.ExhibitionID, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[exhibitionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	e.CurrentRegistrationsCount = count
	e.UpdatedAt = time.Now()
	return nil
}
