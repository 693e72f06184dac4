package handler_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"gatepass/internal/jwttoken"
	"gatepass/internal/operator/handler"
	"gatepass/internal/operator/secrets"
)

type TokenHandlerSuite struct {
	suite.Suite
	router chi.Router
	tokens *jwttoken.Service
}

func (s *TokenHandlerSuite) SetupTest() {
	hash, err := secrets.Hash("op-password")
	s.Require().NoError(err)

	s.tokens = jwttoken.NewService("test-signing-key", "gatepass")
	s.router = chi.NewRouter()
	handler.NewHandler("ops@example.com", hash, time.Hour, s.tokens,
		slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func TestTokenHandlerSuite(t *testing.T) {
	suite.Run(t, new(TokenHandlerSuite))
}

func (s *TokenHandlerSuite) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *TokenHandlerSuite) TestIssueToken() {
	rec := s.post(`{"email": "ops@example.com", "password": "op-password"}`)
	s.Require().Equal(http.StatusOK, rec.Code)

	body := rec.Body.String()
	s.Contains(body, `"token"`)
	s.Contains(body, `"expires_in":3600`)

	// The minted token passes the same validation the admin routes run.
	var resp struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	subject, err := s.tokens.ValidateOperatorToken(resp.Token)
	s.Require().NoError(err)
	s.Equal("ops@example.com", subject)
}

func (s *TokenHandlerSuite) TestRejectsBadCredentials() {
	s.Run("wrong password", func() {
		rec := s.post(`{"email": "ops@example.com", "password": "not-it"}`)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("unknown email", func() {
		rec := s.post(`{"email": "intruder@example.com", "password": "op-password"}`)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("malformed body", func() {
		rec := s.post(`{"email": `)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *TokenHandlerSuite) TestUnconfiguredLoginUnavailable() {
	router := chi.NewRouter()
	handler.NewHandler("", "", time.Hour, s.tokens, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(router)

	req := httptest.NewRequest(http.MethodPost, "/auth/token",
		strings.NewReader(`{"email": "ops@example.com", "password": "op-password"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}
