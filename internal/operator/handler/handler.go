// Package handler exposes operator token issuance: the configured operator
// exchanges email and password for the bearer token the admin routes require.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatepass/internal/operator/secrets"
	derrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/httputil"
	"gatepass/pkg/requestcontext"
)

// TokenIssuer mints operator bearer tokens.
type TokenIssuer interface {
	GenerateOperatorToken(subject string, expiresIn time.Duration) (string, error)
}

type Handler struct {
	email        string
	passwordHash string
	tokenTTL     time.Duration
	tokens       TokenIssuer
	logger       *slog.Logger
}

// NewHandler builds the token endpoint for one configured operator. Empty
// email or hash leaves the endpoint mounted but disabled; tokens must then be
// minted out of band.
func NewHandler(email, passwordHash string, tokenTTL time.Duration, tokens TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{
		email:        email,
		passwordHash: passwordHash,
		tokenTTL:     tokenTTL,
		tokens:       tokens,
		logger:       logger,
	}
}

// Register mounts the token route.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/token", h.issueToken)
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[tokenRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if h.email == "" || h.passwordHash == "" {
		httputil.WriteError(w, derrors.New(derrors.CodeUnavailable, "operator login is not configured"))
		return
	}
	// Same envelope for unknown email and bad password; which one failed is
	// only in the log.
	if req.Email != h.email {
		h.logger.WarnContext(ctx, "operator login rejected", "email", req.Email, "reason", "unknown email")
		httputil.WriteError(w, derrors.New(derrors.CodeUnauthorized, "invalid credentials"))
		return
	}
	if err := secrets.Verify(req.Password, h.passwordHash); err != nil {
		h.logger.WarnContext(ctx, "operator login rejected", "email", req.Email, "reason", "password mismatch")
		httputil.WriteError(w, derrors.New(derrors.CodeUnauthorized, "invalid credentials"))
		return
	}
	token, err := h.tokens.GenerateOperatorToken(req.Email, h.tokenTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "operator token mint failed", "error", err)
		httputil.WriteError(w, derrors.Wrap(err, derrors.CodeInternal, "mint operator token"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresIn: int64(h.tokenTTL.Seconds()),
	})
}
