package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	exhibitionstore "gatepass/internal/exhibition/store"
	"gatepass/internal/reconciler/handler"
	"gatepass/internal/reconciler/metrics"
	"gatepass/internal/reconciler/service"
	regmodels "gatepass/internal/registration/models"
	regstore "gatepass/internal/registration/store"
	visitormodels "gatepass/internal/visitor/models"
	visitorservice "gatepass/internal/visitor/service"
	visitorstore "gatepass/internal/visitor/store"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/audit"
	auditmemory "gatepass/pkg/platform/audit/store/memory"
)

type ReconcileHandlerSuite struct {
	suite.Suite
	router        chi.Router
	visitors      *visitorstore.InMemory
	registrations *regstore.InMemory
	now           time.Time
}

func (s *ReconcileHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := audit.NewPublisher(auditmemory.NewInMemoryStore())

	s.visitors = visitorstore.NewInMemory()
	s.registrations = regstore.NewInMemory()
	exhibitions := exhibitionstore.NewInMemory()

	visitorSvc := visitorservice.New(s.visitors, s.registrations, publisher, logger)
	reconciler := service.New(s.visitors, s.registrations, exhibitions, nil, visitorSvc,
		publisher, metrics.New(prometheus.NewRegistry()), logger)

	s.now = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	s.router = chi.NewRouter()
	handler.NewHandler(reconciler, func(ctx context.Context, keepID, mergeID id.VisitorID) error {
		_, err := visitorSvc.MergeDuplicate(ctx, keepID, mergeID)
		return err
	}, logger).Register(s.router)
}

func TestReconcileHandlerSuite(t *testing.T) {
	suite.Run(t, new(ReconcileHandlerSuite))
}

func (s *ReconcileHandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	if body == "" {
		body = "{}"
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *ReconcileHandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *ReconcileHandlerSuite) seedOrphanRegistration() *regmodels.Registration {
	reg := &regmodels.Registration{
		ID:                 id.NewRegistrationID(),
		RegistrationNumber: "REG-20250113-0001",
		VisitorID:          id.NewVisitorID(),
		ExhibitionID:       id.NewExhibitionID(),
		RegistrationDate:   s.now.Add(-48 * time.Hour),
		Status:             regmodels.StatusConfirmed,
		CreatedAt:          s.now.Add(-48 * time.Hour),
		UpdatedAt:          s.now.Add(-48 * time.Hour),
	}
	s.Require().NoError(s.registrations.Insert(context.Background(), reg))
	return reg
}

func (s *ReconcileHandlerSuite) TestOrphans() {
	orphan := s.seedOrphanRegistration()

	s.Run("dry run reports without deleting", func() {
		rec := s.do(http.MethodPost, "/reconcile/orphans?dry_run=true", "")
		s.Require().Equal(http.StatusOK, rec.Code)

		body := s.decode(rec)
		s.Equal([]any{orphan.RegistrationNumber}, body["orphan_registrations_removed"])

		_, err := s.registrations.FindByID(context.Background(), orphan.ID)
		s.Require().NoError(err)
	})

	s.Run("real run deletes", func() {
		rec := s.do(http.MethodPost, "/reconcile/orphans", "")
		s.Require().Equal(http.StatusOK, rec.Code)

		_, err := s.registrations.FindByID(context.Background(), orphan.ID)
		s.Require().Error(err)
	})
}

func (s *ReconcileHandlerSuite) TestDuplicateRegistrationFlow() {
	visitor := &visitormodels.Visitor{
		ID:        id.NewVisitorID(),
		Phone:     "+919876543210",
		CreatedAt: s.now.Add(-72 * time.Hour),
		UpdatedAt: s.now.Add(-72 * time.Hour),
	}
	s.Require().NoError(s.visitors.Create(context.Background(), visitor))

	exhibitionID := id.NewExhibitionID()
	newReg := func(number string, at time.Time) *regmodels.Registration {
		reg := &regmodels.Registration{
			ID:                 id.NewRegistrationID(),
			RegistrationNumber: number,
			VisitorID:          visitor.ID,
			ExhibitionID:       exhibitionID,
			RegistrationDate:   at,
			Status:             regmodels.StatusConfirmed,
			CreatedAt:          at,
			UpdatedAt:          at,
		}
		s.Require().NoError(s.registrations.Insert(context.Background(), reg))
		return reg
	}
	newReg("REG-20250113-0010", s.now.Add(-48*time.Hour))
	dup := newReg("REG-20250114-0010", s.now.Add(-24*time.Hour))

	s.Run("scan is report-only", func() {
		rec := s.do(http.MethodGet, "/reconcile/duplicate-registrations", "")
		s.Require().Equal(http.StatusOK, rec.Code)

		body := s.decode(rec)
		groups := body["duplicate_registrations"].([]any)
		s.Require().Len(groups, 1)
		group := groups[0].(map[string]any)
		s.Equal("REG-20250113-0010", group["keep"])
		s.Equal([]any{dup.RegistrationNumber}, group["candidates"])
	})

	s.Run("confirm requires ids", func() {
		rec := s.do(http.MethodPost, "/reconcile/duplicate-registrations/confirm", `{"registration_ids": []}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("confirm removes the named registration", func() {
		rec := s.do(http.MethodPost, "/reconcile/duplicate-registrations/confirm",
			`{"registration_ids": ["`+dup.ID.String()+`"]}`)
		s.Require().Equal(http.StatusOK, rec.Code)

		body := s.decode(rec)
		s.Equal([]any{dup.RegistrationNumber}, body["removed"])

		_, err := s.registrations.FindByID(context.Background(), dup.ID)
		s.Require().Error(err)
	})
}

func (s *ReconcileHandlerSuite) TestOperatorMerge() {
	keep := &visitormodels.Visitor{
		ID:        id.NewVisitorID(),
		Phone:     "+15550001111",
		CreatedAt: s.now.Add(-48 * time.Hour),
	}
	merge := &visitormodels.Visitor{
		ID:        id.NewVisitorID(),
		Phone:     "+15550001111",
		CreatedAt: s.now.Add(-48 * time.Hour),
	}
	s.Require().NoError(s.visitors.Create(context.Background(), keep))
	s.visitors.Seed(merge)

	s.Run("merges the named pair", func() {
		rec := s.do(http.MethodPost, "/reconcile/merge",
			`{"keep_id": "`+keep.ID.String()+`", "merge_id": "`+merge.ID.String()+`"}`)
		s.Require().Equal(http.StatusOK, rec.Code)

		_, err := s.visitors.FindByID(context.Background(), merge.ID)
		s.Require().Error(err)
	})

	s.Run("repeating the merge is not found", func() {
		rec := s.do(http.MethodPost, "/reconcile/merge",
			`{"keep_id": "`+keep.ID.String()+`", "merge_id": "`+merge.ID.String()+`"}`)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("malformed ids rejected", func() {
		rec := s.do(http.MethodPost, "/reconcile/merge", `{"keep_id": "x", "merge_id": "y"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *ReconcileHandlerSuite) TestFullRun() {
	rec := s.do(http.MethodPost, "/reconcile/run", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	body := s.decode(rec)
	s.Contains(body, "visitors_merged")
	s.Contains(body, "exhibition_counts_fixed")
}
