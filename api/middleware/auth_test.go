package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	pkgauth "github.com/certtracker/certtracker-backend/pkg/auth"
	"github.com/certtracker/certtracker-backend/pkg/auth/session"
	"github.com/certtracker/certtracker-backend/pkg/config"
	"github.com/certtracker/certtracker-backend/pkg/enums"
	"github.com/certtracker/certtracker-backend/pkg/logger"
)

type stubSessionChecker struct {
	alive bool
	err   error
}

func (s stubSessionChecker) HasSession(ctx context.Context, accessID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.alive, nil
}

func discardLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
}

func mintToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg, time.Now(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Email:  "nurse@example.com",
		Plan:   enums.PlanPro,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "certtracker", ExpirationMinutes: 15}
	handler := Auth(cfg, stubSessionChecker{alive: true}, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsMalformedToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "certtracker", ExpirationMinutes: 15}
	handler := Auth(cfg, stubSessionChecker{alive: true}, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "certtracker", ExpirationMinutes: 15}
	token := mintToken(t, cfg, uuid.New())

	handler := Auth(cfg, stubSessionChecker{alive: false}, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthFailsClosedOnSessionLookupError(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "certtracker", ExpirationMinutes: 15}
	token := mintToken(t, cfg, uuid.New())

	handler := Auth(cfg, stubSessionChecker{err: errors.New("redis down")}, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code == http.StatusOK {
		t.Fatal("expected the request rejected when session lookup fails")
	}
}

func TestAuthInjectsIdentity(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "certtracker", ExpirationMinutes: 60}
	userID := uuid.New()
	token := mintToken(t, cfg, userID)

	var captured struct {
		user  uuid.UUID
		email string
		plan  enums.Plan
	}
	handler := Auth(cfg, stubSessionChecker{alive: true}, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.email = EmailFromContext(r.Context())
		captured.plan = PlanFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != userID {
		t.Fatalf("expected user %s got %s", userID, captured.user)
	}
	if captured.email != "nurse@example.com" {
		t.Fatalf("unexpected email %q", captured.email)
	}
	if captured.plan != enums.PlanPro {
		t.Fatalf("unexpected plan %q", captured.plan)
	}
}
