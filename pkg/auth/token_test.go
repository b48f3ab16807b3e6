package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/pkg/config"
	"github.com/dvillegas/storefront-backend/pkg/enums"
)

func jwtTestConfig(expirationMinutes int) config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "storefront",
		ExpirationMinutes: expirationMinutes,
	}
}

func mustMint(t *testing.T, cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) string {
	t.Helper()
	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	return token
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := jwtTestConfig(30)
	now := time.Now().UTC()
	userID := uuid.New()

	token := mustMint(t, cfg, now, AccessTokenPayload{
		UserID: userID,
		Role:   enums.UserRoleCustomer,
	})

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != userID || claims.Role != enums.UserRoleCustomer {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("issuer %q, want %q", claims.Issuer, cfg.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("jti must be populated")
	}

	wantExp := now.Add(30 * time.Minute)
	if drift := claims.ExpiresAt.Sub(wantExp).Abs(); drift >= time.Second {
		t.Fatalf("exp drifted %v from %v", drift, wantExp.UTC())
	}
}

func TestTamperedTokenFailsParse(t *testing.T) {
	cfg := jwtTestConfig(10)
	token := mustMint(t, cfg, time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleAdmin,
	})

	if _, err := ParseAccessToken(cfg, token+"x"); err == nil {
		t.Fatal("expected signature verification to fail")
	}
}

func TestExpiredTokenFailsParse(t *testing.T) {
	cfg := jwtTestConfig(15)
	issuedAnHourAgo := time.Now().Add(-time.Hour)
	token := mustMint(t, cfg, issuedAnHourAgo, AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleCustomer,
	})

	_, err := ParseAccessToken(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMintRejectsInvalidRole(t *testing.T) {
	if _, err := MintAccessToken(jwtTestConfig(5), time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   "",
	}); err == nil {
		t.Fatal("expected invalid role error")
	}
}
