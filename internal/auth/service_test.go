package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/dvillegas/storefront-backend/pkg/auth"
	"github.com/dvillegas/storefront-backend/pkg/config"
	"github.com/dvillegas/storefront-backend/pkg/db/models"
	"github.com/dvillegas/storefront-backend/pkg/enums"
	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
	"github.com/dvillegas/storefront-backend/pkg/security"
)

type stubUserRepo struct {
	user          *models.User
	lastLoginSet  bool
	findEmailSeen string
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	s.findEmailSeen = email
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.lastLoginSet = true
	return nil
}

type stubSessionManager struct {
	refreshToken string
	err          error
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.refreshToken, nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "storefront",
		ExpirationMinutes: 30,
	}
}

func testUser(t *testing.T, password string, active bool) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &models.User{
		ID:           uuid.New(),
		Email:        "shopper@example.com",
		PasswordHash: hash,
		FirstName:    "Sam",
		LastName:     "Shopper",
		Role:         enums.UserRoleCustomer,
		IsActive:     active,
	}
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubUserRepo{user: testUser(t, "hunter2-hunter2", true)}
	sessions := &stubSessionManager{refreshToken: "refresh-token"}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    " Shopper@Example.com ",
		Password: "hunter2-hunter2",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("expected access token")
	}
	if resp.RefreshToken != "refresh-token" {
		t.Fatalf("unexpected refresh token %q", resp.RefreshToken)
	}
	if !repo.lastLoginSet {
		t.Fatal("expected last login to be recorded")
	}
	if repo.findEmailSeen != "shopper@example.com" {
		t.Fatalf("expected normalized email lookup, got %q", repo.findEmailSeen)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse minted token: %v", err)
	}
	if claims.Role != enums.UserRoleCustomer {
		t.Fatalf("unexpected role in claims: %s", claims.Role)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &stubUserRepo{user: testUser(t, "correct-password", true)}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: &stubSessionManager{refreshToken: "r"},
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "shopper@example.com",
		Password: "wrong-password",
	})
	assertAuthCode(t, err, pkgerrors.CodeInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, err := NewService(ServiceParams{
		UserRepo:       &stubUserRepo{},
		SessionManager: &stubSessionManager{refreshToken: "r"},
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever-password",
	})
	assertAuthCode(t, err, pkgerrors.CodeInvalidCredentials)
}

func TestLoginInactiveUser(t *testing.T) {
	repo := &stubUserRepo{user: testUser(t, "hunter2-hunter2", false)}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: &stubSessionManager{refreshToken: "r"},
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "shopper@example.com",
		Password: "hunter2-hunter2",
	})
	assertAuthCode(t, err, pkgerrors.CodeInvalidCredentials)
}

func assertAuthCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	var domainErr *pkgerrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error, got %v", err)
	}
	if domainErr.Code() != code {
		t.Fatalf("expected code %s, got %s", code, domainErr.Code())
	}
}
