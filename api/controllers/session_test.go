package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/consultly-backend/pkg/auth"
	"github.com/angelmondragon/consultly-backend/pkg/config"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

type stubSessionRevoker struct {
	lastRevoked string
	lastExpiry  time.Time
	revokeErr   error
}

func (s *stubSessionRevoker) Revoke(ctx context.Context, accessID string, expiresAt time.Time) error {
	s.lastRevoked = accessID
	s.lastExpiry = expiresAt
	return s.revokeErr
}

func testJWT() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "consultly", ExpirationMinutes: 15}
}

func TestAuthLogoutRevokesToken(t *testing.T) {
	cfg := testJWT()
	now := time.Now()
	token, err := auth.MintAccessToken(cfg, now, auth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleClient,
		JTI:    "access-1",
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	manager := &stubSessionRevoker{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	AuthLogout(manager, cfg, testLogger())(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if manager.lastRevoked != "access-1" {
		t.Fatalf("expected access-1 revoked, got %q", manager.lastRevoked)
	}
	if diff := manager.lastExpiry.Sub(now.Add(cfg.Expiration())); diff > time.Second || diff < -time.Second {
		t.Fatalf("unexpected expiry %s", manager.lastExpiry)
	}
}

func TestAuthLogoutAcceptsExpiredToken(t *testing.T) {
	cfg := testJWT()
	token, err := auth.MintAccessToken(cfg, time.Now().Add(-time.Hour), auth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleProvider,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	manager := &stubSessionRevoker{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	AuthLogout(manager, cfg, testLogger())(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if manager.lastRevoked == "" {
		t.Fatal("expected revocation")
	}
}

func TestAuthLogoutRejectsMissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	resp := httptest.NewRecorder()
	AuthLogout(&stubSessionRevoker{}, testJWT(), testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
