// Package handler exposes the public registration surface.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	regmodels "gatepass/internal/registration/models"
	"gatepass/internal/registration/service"
	visitormodels "gatepass/internal/visitor/models"
	id "gatepass/pkg/domain"
	derrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/fielddata"
	"gatepass/pkg/platform/httputil"
	"gatepass/pkg/requestcontext"
)

// Registrar is the slice of the registration service this handler uses.
type Registrar interface {
	Register(ctx context.Context, req service.RegisterRequest) (*service.RegisterResult, error)
	FindByNumber(ctx context.Context, number string) (*regmodels.Registration, error)
	ListByVisitor(ctx context.Context, visitorID id.VisitorID) ([]*regmodels.Registration, error)
}

// VisitorFinder loads visitor records for the read endpoint.
type VisitorFinder interface {
	FindByID(ctx context.Context, visitorID id.VisitorID) (*visitormodels.Visitor, error)
}

type Handler struct {
	registrations Registrar
	visitors      VisitorFinder
	logger        *slog.Logger
}

func NewHandler(registrations Registrar, visitors VisitorFinder, logger *slog.Logger) *Handler {
	return &Handler{registrations: registrations, visitors: visitors, logger: logger}
}

// Register mounts the public routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/registrations", h.create)
	r.Get("/registrations/{number}", h.getByNumber)
	r.Get("/visitors/{id}", h.getVisitor)
	r.Get("/visitors/{id}/registrations", h.listVisitorRegistrations)
}

type createRequest struct {
	ExhibitionID string        `json:"exhibition_id"`
	Phone        string        `json:"phone"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	Company      string        `json:"company"`
	Category     string        `json:"category"`
	Interests    []string      `json:"interests,omitempty"`
	CustomFields fielddata.Map `json:"custom_fields,omitempty"`
}

type createResponse struct {
	Registration   registrationResponse `json:"registration"`
	VisitorID      string               `json:"visitor_id"`
	VisitorCreated bool                 `json:"visitor_created"`
}

type registrationResponse struct {
	RegistrationNumber string        `json:"registration_number"`
	VisitorID          string        `json:"visitor_id"`
	ExhibitionID       string        `json:"exhibition_id"`
	RegistrationDate   time.Time     `json:"registration_date"`
	Category           string        `json:"category,omitempty"`
	Interests          []string      `json:"interests,omitempty"`
	CustomFields       fielddata.Map `json:"custom_fields,omitempty"`
	Status             string        `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
}

type visitorResponse struct {
	ID                    string        `json:"id"`
	Phone                 string        `json:"phone,omitempty"`
	Email                 string        `json:"email,omitempty"`
	Name                  string        `json:"name,omitempty"`
	Company               string        `json:"company,omitempty"`
	Attributes            fielddata.Map `json:"attributes,omitempty"`
	TotalRegistrations    int64         `json:"total_registrations"`
	LastRegistrationDate  *time.Time    `json:"last_registration_date,omitempty"`
	RegisteredExhibitions []string      `json:"registered_exhibitions,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[createRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	exhibitionID, err := id.ParseExhibitionID(req.ExhibitionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.CustomFields.Sanitize(); err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeInvalidInput, err.Error()))
		return
	}

	result, err := h.registrations.Register(ctx, service.RegisterRequest{
		ExhibitionID: exhibitionID,
		Phone:        req.Phone,
		Email:        req.Email,
		Name:         req.Name,
		Company:      req.Company,
		Category:     req.Category,
		Interests:    req.Interests,
		CustomFields: req.CustomFields,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "registration failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, createResponse{
		Registration:   toRegistrationResponse(result.Registration),
		VisitorID:      result.Visitor.ID.String(),
		VisitorCreated: result.VisitorCreated,
	})
}

func (h *Handler) getByNumber(w http.ResponseWriter, r *http.Request) {
	registration, err := h.registrations.FindByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRegistrationResponse(registration))
}

func (h *Handler) getVisitor(w http.ResponseWriter, r *http.Request) {
	visitorID, err := id.ParseVisitorID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	visitor, err := h.visitors.FindByID(r.Context(), visitorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVisitorResponse(visitor))
}

func (h *Handler) listVisitorRegistrations(w http.ResponseWriter, r *http.Request) {
	visitorID, err := id.ParseVisitorID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	regs, err := h.registrations.ListByVisitor(r.Context(), visitorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]registrationResponse, 0, len(regs))
	for _, reg := range regs {
		out = append(out, toRegistrationResponse(reg))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"registrations": out})
}

func toRegistrationResponse(r *regmodels.Registration) registrationResponse {
	return registrationResponse{
		RegistrationNumber: r.RegistrationNumber,
		VisitorID:          r.VisitorID.String(),
		ExhibitionID:       r.ExhibitionID.String(),
		RegistrationDate:   r.RegistrationDate,
		Category:           r.Category,
		Interests:          r.Interests,
		CustomFields:       r.CustomFields,
		Status:             string(r.Status),
		CreatedAt:          r.CreatedAt,
	}
}

func toVisitorResponse(v *visitormodels.Visitor) visitorResponse {
	exhibitions := make([]string, 0, len(v.RegisteredExhibitions))
	for _, e := range v.RegisteredExhibitions {
		exhibitions = append(exhibitions, e.String())
	}
	return visitorResponse{
		ID:                    v.ID.String(),
		Phone:                 v.Phone,
		Email:                 v.Email,
		Name:                  v.Name,
		Company:               v.Company,
		Attributes:            v.Attributes,
		TotalRegistrations:    v.TotalRegistrations,
		LastRegistrationDate:  v.LastRegistrationDate,
		RegisteredExhibitions: exhibitions,
		CreatedAt:             v.CreatedAt,
	}
}
