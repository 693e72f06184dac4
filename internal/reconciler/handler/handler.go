// Package handler exposes operator-facing reconciliation endpoints. The
// router mounts these behind operator token auth.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatepass/internal/reconciler/service"
	id "gatepass/pkg/domain"
	derrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/httputil"
	"gatepass/pkg/requestcontext"
)

// Reconciler is the slice of the reconciler service exposed over HTTP.
type Reconciler interface {
	Run(ctx context.Context) (*service.Report, error)
	RemoveOrphans(ctx context.Context, report *service.Report) error
	FindOrphans(ctx context.Context, report *service.Report) error
	DeduplicateVisitors(ctx context.Context, report *service.Report) error
	FindDuplicateRegistrations(ctx context.Context, report *service.Report) error
	ReconcileAllCustomFields(ctx context.Context, report *service.Report) error
	RecomputeVisitorAggregates(ctx context.Context, report *service.Report) error
	RecomputeExhibitionCounts(ctx context.Context, report *service.Report) error
	RemoveConfirmedDuplicates(ctx context.Context, registrationIDs []id.RegistrationID) ([]string, error)
}

type Handler struct {
	reconciler Reconciler
	merge      func(ctx context.Context, keepID, mergeID id.VisitorID) error
	logger     *slog.Logger
}

// MergeFunc adapts the visitor service's MergeDuplicate for the handler,
// which only needs success or failure.
type MergeFunc func(ctx context.Context, keepID, mergeID id.VisitorID) error

func NewHandler(reconciler Reconciler, merge MergeFunc, logger *slog.Logger) *Handler {
	return &Handler{reconciler: reconciler, merge: merge, logger: logger}
}

// Register mounts the reconciliation routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/reconcile/run", h.runAll)
	r.Post("/reconcile/orphans", h.orphans)
	r.Post("/reconcile/duplicate-visitors", h.sweep(func(s Reconciler) sweepFn { return s.DeduplicateVisitors }))
	r.Get("/reconcile/duplicate-registrations", h.sweep(func(s Reconciler) sweepFn { return s.FindDuplicateRegistrations }))
	r.Post("/reconcile/duplicate-registrations/confirm", h.confirmDuplicates)
	r.Post("/reconcile/merge", h.mergeVisitors)
	r.Post("/reconcile/custom-fields", h.sweep(func(s Reconciler) sweepFn { return s.ReconcileAllCustomFields }))
	r.Post("/reconcile/aggregates", h.aggregates)
}

type sweepFn func(ctx context.Context, report *service.Report) error

func (h *Handler) runAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.Run(r.Context())
	if err != nil {
		h.logReconcileError(r, "full sweep", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) sweep(pick func(Reconciler) sweepFn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := &service.Report{}
		if err := pick(h.reconciler)(r.Context(), report); err != nil {
			h.logReconcileError(r, "sweep", err)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, report)
	}
}

// orphans removes dangling registrations and visitors, or only lists them
// when the caller passes dry_run=true.
func (h *Handler) orphans(w http.ResponseWriter, r *http.Request) {
	sweep := h.reconciler.RemoveOrphans
	op := "orphan removal"
	if r.URL.Query().Get("dry_run") == "true" {
		sweep = h.reconciler.FindOrphans
		op = "orphan scan"
	}
	report := &service.Report{}
	if err := sweep(r.Context(), report); err != nil {
		h.logReconcileError(r, op, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) aggregates(w http.ResponseWriter, r *http.Request) {
	report := &service.Report{}
	if err := h.reconciler.RecomputeVisitorAggregates(r.Context(), report); err != nil {
		h.logReconcileError(r, "visitor aggregates", err)
		httputil.WriteError(w, err)
		return
	}
	if err := h.reconciler.RecomputeExhibitionCounts(r.Context(), report); err != nil {
		h.logReconcileError(r, "exhibition counts", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

type confirmRequest struct {
	RegistrationIDs []string `json:"registration_ids"`
}

func (h *Handler) confirmDuplicates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[confirmRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if len(req.RegistrationIDs) == 0 {
		httputil.WriteError(w, derrors.New(derrors.CodeInvalidInput, "registration_ids is required"))
		return
	}
	ids := make([]id.RegistrationID, 0, len(req.RegistrationIDs))
	for _, raw := range req.RegistrationIDs {
		parsed, err := id.ParseRegistrationID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		ids = append(ids, parsed)
	}
	removed, err := h.reconciler.RemoveConfirmedDuplicates(ctx, ids)
	if err != nil {
		h.logReconcileError(r, "confirmed duplicate removal", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

type mergeRequest struct {
	KeepID  string `json:"keep_id"`
	MergeID string `json:"merge_id"`
}

// mergeVisitors lets an operator resolve a group the automatic tie-break
// refused to touch.
func (h *Handler) mergeVisitors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[mergeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	keepID, err := id.ParseVisitorID(req.KeepID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	mergeID, err := id.ParseVisitorID(req.MergeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.merge(ctx, keepID, mergeID); err != nil {
		h.logReconcileError(r, "operator merge", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"kept": keepID.String(), "merged": mergeID.String()})
}

func (h *Handler) logReconcileError(r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "reconciliation failed",
		"op", op,
		"operator", requestcontext.Operator(r.Context()),
		"error", err,
	)
}
