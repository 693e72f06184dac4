package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	exmodels "gatepass/internal/exhibition/models"
	exhibitionstore "gatepass/internal/exhibition/store"
	"gatepass/internal/registration/metrics"
	"gatepass/internal/registration/models"
	regstore "gatepass/internal/registration/store"
	"gatepass/internal/sequence"
	visitorservice "gatepass/internal/visitor/service"
	visitorstore "gatepass/internal/visitor/store"
	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/audit"
	auditmemory "gatepass/pkg/platform/audit/store/memory"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// conflictingStore injects unique-constraint conflicts ahead of a real store,
// simulating a counter that fell behind the registrations table.
type conflictingStore struct {
	*regstore.InMemory
	conflicts int
}

func (c *conflictingStore) Insert(ctx context.Context, r *models.Registration) error {
	if c.conflicts > 0 {
		c.conflicts--
		return sentinel.ErrConflict
	}
	return c.InMemory.Insert(ctx, r)
}

type RegistrationServiceSuite struct {
	suite.Suite
	registrations *conflictingStore
	exhibitions   *exhibitionstore.InMemory
	visitors      *visitorstore.InMemory
	seqStore      *sequence.InMemoryStore
	service       *Service
	exhibition    *exmodels.Exhibition
	ctx           context.Context
	now           time.Time
}

func (s *RegistrationServiceSuite) SetupTest() {
	s.registrations = &conflictingStore{InMemory: regstore.NewInMemory()}
	s.exhibitions = exhibitionstore.NewInMemory()
	s.visitors = visitorstore.NewInMemory()
	s.seqStore = sequence.NewInMemoryStore()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := audit.NewPublisher(auditmemory.NewInMemoryStore())
	visitorSvc := visitorservice.New(s.visitors, s.registrations, publisher, logger)
	allocator := sequence.NewAllocator(s.seqStore, sequence.DefaultWidth)

	s.service = New(s.registrations, s.exhibitions, nil, visitorSvc, allocator,
		publisher, metrics.New(prometheus.NewRegistry()), logger)

	s.now = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.exhibition = s.newExhibition("TECHEXPO2025-SCOPE", "Tech Expo 2025")
}

func (s *RegistrationServiceSuite) newExhibition(scopeKey, name string) *exmodels.Exhibition {
	e := &exmodels.Exhibition{
		ID:        id.ExhibitionID(uuid.New()),
		ScopeKey:  scopeKey,
		Name:      name,
		Status:    exmodels.StatusOpen,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.Require().NoError(s.exhibitions.Create(context.Background(), e))
	return e
}

func TestRegistrationServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistrationServiceSuite))
}

func (s *RegistrationServiceSuite) register(req RegisterRequest) *RegisterResult {
	result, err := s.service.Register(s.ctx, req)
	s.Require().NoError(err)
	return result
}

func (s *RegistrationServiceSuite) TestRegister() {
	s.Run("first registration of the day gets sequence 0001", func() {
		result := s.register(RegisterRequest{
			ExhibitionID: s.exhibition.ID,
			Phone:        "+919876543210",
			Name:         "Asha",
		})
		s.Equal("REG-20250115-0001", result.Registration.RegistrationNumber)
		s.True(result.VisitorCreated)
		s.Equal(models.StatusConfirmed, result.Registration.Status)
	})

	s.Run("second registration increments the sequence", func() {
		result := s.register(RegisterRequest{
			ExhibitionID: s.exhibition.ID,
			Phone:        "+919876543211",
			Name:         "Ravi",
		})
		s.Equal("REG-20250115-0002", result.Registration.RegistrationNumber)
	})

	s.Run("exhibition count is bumped", func() {
		e, err := s.exhibitions.FindByID(s.ctx, s.exhibition.ID)
		s.Require().NoError(err)
		s.Equal(int64(2), e.CurrentRegistrationsCount)
	})

	s.Run("unknown exhibition rejected", func() {
		_, err := s.service.Register(s.ctx, RegisterRequest{
			ExhibitionID: id.ExhibitionID(uuid.New()),
			Name:         "Nobody",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("missing exhibition id rejected", func() {
		_, err := s.service.Register(s.ctx, RegisterRequest{Name: "Nobody"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("closed exhibition rejected", func() {
		closed := &exmodels.Exhibition{
			ID:        id.ExhibitionID(uuid.New()),
			ScopeKey:  "CLOSED2025",
			Name:      "Closed Expo",
			Status:    exmodels.StatusClosed,
			CreatedAt: s.now,
			UpdatedAt: s.now,
		}
		s.Require().NoError(s.exhibitions.Create(s.ctx, closed))

		_, err := s.service.Register(s.ctx, RegisterRequest{
			ExhibitionID: closed.ID,
			Name:         "Late",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// TestNumberConflictRetry: when the unique constraint rejects an allocated
// number, the coordinator retries with a fresh sequence instead of failing
// the submission.
func (s *RegistrationServiceSuite) TestNumberConflictRetry() {
	s.registrations.conflicts = 2

	result := s.register(RegisterRequest{
		ExhibitionID: s.exhibition.ID,
		Phone:        "+919876543212",
		Name:         "Retry",
	})
	// Two allocations burned by conflicts, third one sticks.
	s.Equal("REG-20250115-0003", result.Registration.RegistrationNumber)
}

func (s *RegistrationServiceSuite) TestNumberConflictExhaustion() {
	s.registrations.conflicts = 10

	_, err := s.service.Register(s.ctx, RegisterRequest{
		ExhibitionID: s.exhibition.ID,
		Phone:        "+919876543213",
		Name:         "Doomed",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

// TestRepeatVisitorAcrossExhibitions walks the documented aggregate scenario:
// one phone registering for two exhibitions yields a single visitor with
// both exhibitions in the derived set.
func (s *RegistrationServiceSuite) TestRepeatVisitorAcrossExhibitions() {
	other := s.newExhibition("GADGETWORLD2025", "Gadget World")

	first := s.register(RegisterRequest{
		ExhibitionID: s.exhibition.ID,
		Phone:        "+919876543210",
		Name:         "Asha",
	})
	second := s.register(RegisterRequest{
		ExhibitionID: other.ID,
		Phone:        "+919876543210",
	})

	s.True(first.VisitorCreated)
	s.False(second.VisitorCreated)
	s.Equal(first.Visitor.ID, second.Visitor.ID)

	v, err := s.visitors.FindByID(s.ctx, first.Visitor.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), v.TotalRegistrations)
	s.ElementsMatch([]id.ExhibitionID{s.exhibition.ID, other.ID}, v.RegisteredExhibitions)
	s.Require().NotNil(v.LastRegistrationDate)
	s.True(v.LastRegistrationDate.Equal(s.now))

	s.Run("same exhibition twice still counts both registrations", func() {
		third := s.register(RegisterRequest{
			ExhibitionID: s.exhibition.ID,
			Phone:        "+919876543210",
		})
		s.Equal(first.Visitor.ID, third.Visitor.ID)

		v, err := s.visitors.FindByID(s.ctx, first.Visitor.ID)
		s.Require().NoError(err)
		s.Equal(int64(3), v.TotalRegistrations)
		// The exhibition set stays a set.
		s.Len(v.RegisteredExhibitions, 2)
	})
}

func (s *RegistrationServiceSuite) TestFindByNumber() {
	created := s.register(RegisterRequest{
		ExhibitionID: s.exhibition.ID,
		Phone:        "+919876543214",
		Name:         "Lookup",
	})

	s.Run("finds by visible number", func() {
		found, err := s.service.FindByNumber(s.ctx, created.Registration.RegistrationNumber)
		s.Require().NoError(err)
		s.Equal(created.Registration.ID, found.ID)
	})

	s.Run("unknown number reports not found", func() {
		_, err := s.service.FindByNumber(s.ctx, "REG-19990101-0001")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("empty number rejected", func() {
		_, err := s.service.FindByNumber(s.ctx, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
