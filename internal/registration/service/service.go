// Package service coordinates the registration write path: resolve the
// visitor, allocate a sequence number, persist the registration, then update
// the derived aggregates.
//
// Only the registration insert is load-bearing. Aggregate updates after it
// are best-effort caches; a failure there is logged and left for the
// reconciler, never surfaced to the submitter.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	exmodels "gatepass/internal/exhibition/models"
	"gatepass/internal/registration/metrics"
	"gatepass/internal/registration/models"
	"gatepass/internal/sequence"
	visitormodels "gatepass/internal/visitor/models"
	visitorservice "gatepass/internal/visitor/service"
	id "gatepass/pkg/domain"
	derrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/fielddata"
	"gatepass/pkg/platform/audit"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// insertAttempts bounds retries against the registration number unique
// constraint. Each retry allocates a fresh sequence, so a collision here
// means counter state was lost (e.g. a restored backup); three attempts ride
// through a small gap without looping on a systemic one.
const insertAttempts = 3

// Store is the registration persistence contract used by the coordinator.
type Store interface {
	Insert(ctx context.Context, r *models.Registration) error
	FindByID(ctx context.Context, registrationID id.RegistrationID) (*models.Registration, error)
	FindByNumber(ctx context.Context, number string) (*models.Registration, error)
	ListByVisitor(ctx context.Context, visitorID id.VisitorID) ([]*models.Registration, error)
}

// ExhibitionStore resolves the scope key and mirrors the registration count.
type ExhibitionStore interface {
	FindByID(ctx context.Context, exhibitionID id.ExhibitionID) (*exmodels.Exhibition, error)
	IncrementCount(ctx context.Context, exhibitionID id.ExhibitionID, delta int64) error
}

// CountCache mirrors exhibition counts in a fast store; may be nil.
type CountCache interface {
	Increment(ctx context.Context, exhibitionID id.ExhibitionID) error
}

// VisitorResolver is the slice of the visitor service the write path uses.
type VisitorResolver interface {
	ResolveOrCreate(ctx context.Context, input visitorservice.ResolveInput) (*visitormodels.Visitor, bool, error)
	ApplyRegistration(ctx context.Context, visitorID id.VisitorID, exhibitionID id.ExhibitionID, at time.Time) error
}

type Service struct {
	registrations Store
	exhibitions   ExhibitionStore
	countCache    CountCache
	visitors      VisitorResolver
	allocator     *sequence.Allocator
	audit         *audit.Publisher
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func New(
	registrations Store,
	exhibitions ExhibitionStore,
	countCache CountCache,
	visitors VisitorResolver,
	allocator *sequence.Allocator,
	auditor *audit.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		registrations: registrations,
		exhibitions:   exhibitions,
		countCache:    countCache,
		visitors:      visitors,
		allocator:     allocator,
		audit:         auditor,
		metrics:       m,
		logger:        logger,
	}
}

// RegisterRequest is one registration submission.
type RegisterRequest struct {
	ExhibitionID id.ExhibitionID
	Phone        string
	Email        string
	Name         string
	Company      string
	Category     string
	Interests    []string
	CustomFields fielddata.Map
}

// RegisterResult reports what the submission produced.
type RegisterResult struct {
	Registration   *models.Registration
	Visitor        *visitormodels.Visitor
	VisitorCreated bool
}

// Register performs the full write path for one submission.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	started := time.Now()
	result, err := s.register(ctx, req)
	s.metrics.RegisterDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		s.metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	s.metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	return result, nil
}

func (s *Service) register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if req.ExhibitionID.IsNil() {
		return nil, derrors.New(derrors.CodeInvalidInput, "exhibition id is required")
	}
	if req.Name == "" && req.Phone == "" && req.Email == "" {
		return nil, derrors.New(derrors.CodeInvalidInput, "at least one of name, phone or email is required")
	}

	exhibition, err := s.exhibitions.FindByID(ctx, req.ExhibitionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, derrors.New(derrors.CodeNotFound, "exhibition not found")
	}
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "find exhibition")
	}
	if exhibition.Status == exmodels.StatusClosed {
		return nil, derrors.New(derrors.CodeConflict, "exhibition is closed for registration")
	}

	// Custom fields stay on the registration; only canonical contact data
	// feeds identity resolution.
	visitor, created, err := s.visitors.ResolveOrCreate(ctx, visitorservice.ResolveInput{
		Phone:   req.Phone,
		Email:   req.Email,
		Name:    req.Name,
		Company: req.Company,
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.metrics.VisitorsResolved.WithLabelValues("created").Inc()
	} else {
		s.metrics.VisitorsResolved.WithLabelValues("matched").Inc()
	}

	now := requestcontext.Now(ctx)
	bucket := sequence.DateBucket(now)

	registration, err := s.insertWithFreshNumber(ctx, exhibition.ScopeKey, bucket, visitor.ID, req, now)
	if err != nil {
		return nil, err
	}

	// Past this point the registration exists. Aggregate bumps are cache
	// maintenance; failures are logged and left for the reconciler.
	if err := s.exhibitions.IncrementCount(ctx, exhibition.ID, 1); err != nil {
		s.logger.WarnContext(ctx, "exhibition count bump failed",
			"exhibition_id", exhibition.ID, "error", err)
	}
	if s.countCache != nil {
		if err := s.countCache.Increment(ctx, exhibition.ID); err != nil {
			s.logger.WarnContext(ctx, "cached exhibition count bump failed",
				"exhibition_id", exhibition.ID, "error", err)
		}
	}
	if err := s.visitors.ApplyRegistration(ctx, visitor.ID, exhibition.ID, registration.RegistrationDate); err != nil {
		s.logger.WarnContext(ctx, "visitor aggregate bump failed",
			"visitor_id", visitor.ID, "error", err)
	}

	s.audit.EmitBestEffort(ctx, audit.Event{
		Subject:   registration.RegistrationNumber,
		Action:    string(audit.EventRegistrationCreated),
		Reason:    "registration submitted",
		RequestID: requestcontext.RequestID(ctx),
		Timestamp: now,
	})

	return &RegisterResult{
		Registration:   registration,
		Visitor:        visitor,
		VisitorCreated: created,
	}, nil
}

func (s *Service) insertWithFreshNumber(
	ctx context.Context,
	scopeKey, bucket string,
	visitorID id.VisitorID,
	req RegisterRequest,
	now time.Time,
) (*models.Registration, error) {
	for attempt := 0; attempt < insertAttempts; attempt++ {
		seq, err := s.allocator.Allocate(ctx, scopeKey, bucket)
		if err != nil {
			return nil, err
		}
		registration := &models.Registration{
			ID:                 id.NewRegistrationID(),
			RegistrationNumber: s.allocator.FormatNumber(bucket, seq),
			VisitorID:          visitorID,
			ExhibitionID:       req.ExhibitionID,
			RegistrationDate:   now,
			Category:           req.Category,
			Interests:          req.Interests,
			CustomFields:       req.CustomFields.Clone(),
			Status:             models.StatusConfirmed,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		err = s.registrations.Insert(ctx, registration)
		if err == nil {
			return registration, nil
		}
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.NumberConflicts.Inc()
			s.logger.WarnContext(ctx, "registration number collision, retrying",
				"number", registration.RegistrationNumber, "attempt", attempt+1)
			continue
		}
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "insert registration")
	}
	return nil, derrors.New(derrors.CodeConflict, "could not allocate a unique registration number")
}

// FindByNumber loads one registration by its visible number.
func (s *Service) FindByNumber(ctx context.Context, number string) (*models.Registration, error) {
	if number == "" {
		return nil, derrors.New(derrors.CodeInvalidInput, "registration number is required")
	}
	r, err := s.registrations.FindByNumber(ctx, number)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, derrors.New(derrors.CodeNotFound, "registration not found")
	}
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "find registration")
	}
	return r, nil
}

// ListByVisitor loads all registrations attached to one visitor.
func (s *Service) ListByVisitor(ctx context.Context, visitorID id.VisitorID) ([]*models.Registration, error) {
	regs, err := s.registrations.ListByVisitor(ctx, visitorID)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeUnavailable, "list registrations")
	}
	return regs, nil
}
