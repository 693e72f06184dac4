package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,ExhibitionStore,CountCache,VisitorResolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	exmodels "gatepass/internal/exhibition/models"
	"gatepass/internal/registration/metrics"
	"gatepass/internal/registration/service/mocks"
	"gatepass/internal/sequence"
	visitormodels "gatepass/internal/visitor/models"
	visitorservice "gatepass/internal/visitor/service"
	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/audit"
	auditmemory "gatepass/pkg/platform/audit/store/memory"
)

type mockFixture struct {
	registrations *mocks.MockStore
	exhibitions   *mocks.MockExhibitionStore
	countCache    *mocks.MockCountCache
	visitors      *mocks.MockVisitorResolver
	service       *Service
	exhibition    *exmodels.Exhibition
	visitor       *visitormodels.Visitor
}

func newMockFixture(t *testing.T) *mockFixture {
	ctrl := gomock.NewController(t)
	f := &mockFixture{
		registrations: mocks.NewMockStore(ctrl),
		exhibitions:   mocks.NewMockExhibitionStore(ctrl),
		countCache:    mocks.NewMockCountCache(ctrl),
		visitors:      mocks.NewMockVisitorResolver(ctrl),
	}
	f.service = New(f.registrations, f.exhibitions, f.countCache, f.visitors,
		sequence.NewAllocator(sequence.NewInMemoryStore(), sequence.DefaultWidth),
		audit.NewPublisher(auditmemory.NewInMemoryStore()),
		metrics.New(prometheus.NewRegistry()),
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	f.exhibition = &exmodels.Exhibition{
		ID:       id.ExhibitionID(uuid.New()),
		ScopeKey: "TECHEXPO2025",
		Status:   exmodels.StatusOpen,
	}
	f.visitor = &visitormodels.Visitor{
		ID:    id.NewVisitorID(),
		Phone: "+919876543210",
	}
	return f
}

// Aggregate updates after a committed insert are caches the reconciler can
// rebuild, so none of their failures may surface to the submitter.
func TestRegisterAggregateFailuresAreSwallowed(t *testing.T) {
	f := newMockFixture(t)
	ctx := context.Background()

	f.exhibitions.EXPECT().FindByID(gomock.Any(), f.exhibition.ID).Return(f.exhibition, nil)
	f.visitors.EXPECT().ResolveOrCreate(gomock.Any(), gomock.Any()).Return(f.visitor, false, nil)
	f.registrations.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)

	f.exhibitions.EXPECT().IncrementCount(gomock.Any(), f.exhibition.ID, int64(1)).
		Return(errors.New("count table locked"))
	f.countCache.EXPECT().Increment(gomock.Any(), f.exhibition.ID).
		Return(errors.New("redis down"))
	f.visitors.EXPECT().ApplyRegistration(gomock.Any(), f.visitor.ID, f.exhibition.ID, gomock.Any()).
		Return(errors.New("visitor row contended"))

	result, err := f.service.Register(ctx, RegisterRequest{
		ExhibitionID: f.exhibition.ID,
		Phone:        f.visitor.Phone,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Registration.RegistrationNumber)
}

func TestRegisterResolutionFailureAbortsBeforeInsert(t *testing.T) {
	f := newMockFixture(t)

	f.exhibitions.EXPECT().FindByID(gomock.Any(), f.exhibition.ID).Return(f.exhibition, nil)
	f.visitors.EXPECT().ResolveOrCreate(gomock.Any(), gomock.Any()).
		Return(nil, false, dErrors.New(dErrors.CodeConflict, "visitor contention"))
	// No Insert expectation: the write path must not reach the store.

	_, err := f.service.Register(context.Background(), RegisterRequest{
		ExhibitionID: f.exhibition.ID,
		Phone:        f.visitor.Phone,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestRegisterPassesResolveInputThrough(t *testing.T) {
	f := newMockFixture(t)

	f.exhibitions.EXPECT().FindByID(gomock.Any(), f.exhibition.ID).Return(f.exhibition, nil)
	f.visitors.EXPECT().
		ResolveOrCreate(gomock.Any(), visitorservice.ResolveInput{
			Phone:   "+919876543210",
			Email:   "asha@example.com",
			Name:    "Asha",
			Company: "Acme",
		}).
		Return(f.visitor, true, nil)
	f.registrations.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
	f.exhibitions.EXPECT().IncrementCount(gomock.Any(), f.exhibition.ID, int64(1)).Return(nil)
	f.countCache.EXPECT().Increment(gomock.Any(), f.exhibition.ID).Return(nil)
	f.visitors.EXPECT().ApplyRegistration(gomock.Any(), f.visitor.ID, f.exhibition.ID, gomock.Any()).Return(nil)

	result, err := f.service.Register(context.Background(), RegisterRequest{
		ExhibitionID: f.exhibition.ID,
		Phone:        "+919876543210",
		Email:        "asha@example.com",
		Name:         "Asha",
		Company:      "Acme",
	})
	require.NoError(t, err)
	assert.True(t, result.VisitorCreated)
}
