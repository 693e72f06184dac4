package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"gatepass/pkg/requestcontext"
)

// TokenValidator validates an operator bearer token. Satisfied by
// jwttoken.Service.
type TokenValidator interface {
	ValidateOperatorToken(tokenString string) (subject string, err error)
}

// RequireOperator guards the reconciler admin endpoints. Every destructive
// reconciliation action must be attributable to an operator.
func RequireOperator(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}

			subject, err := validator.ValidateOperatorToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized admin access - invalid token",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithOperator(ctx, subject)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}
