package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dvillegas/storefront-backend/pkg/auth"
	"github.com/dvillegas/storefront-backend/pkg/auth/session"
	"github.com/dvillegas/storefront-backend/pkg/config"
	"github.com/dvillegas/storefront-backend/pkg/enums"
	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
)

type sessionCheckStub struct {
	live bool
	err  error
}

func (s sessionCheckStub) HasSession(context.Context, string) (bool, error) {
	return s.live, s.err
}

func authTestConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
}

func signedToken(t *testing.T, cfg config.JWTConfig, role enums.UserRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

// serveAuthed drives one request through Auth and reports what the inner
// handler observed in its context.
func serveAuthed(t *testing.T, checker session.AccessSessionChecker, header string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()

	seen := map[string]string{}
	guarded := Auth(authTestConfig(), checker, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen["user"] = UserIDFromContext(r.Context())
		seen["role"] = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	return rec, seen
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	cases := map[string]string{
		"no header":     "",
		"blank bearer":  "Bearer   ",
		"garbage token": "Bearer not-a-jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec, seen := serveAuthed(t, sessionCheckStub{live: true}, header)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status %d, want 401", rec.Code)
			}
			if len(seen) != 0 {
				t.Fatal("inner handler must not run")
			}
		})
	}
}

func TestAuthSeedsContextForValidToken(t *testing.T) {
	token := signedToken(t, authTestConfig(), enums.UserRoleCustomer)

	rec, seen := serveAuthed(t, sessionCheckStub{live: true}, "Bearer "+token)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d, want 204", rec.Code)
	}
	if seen["user"] == "" {
		t.Fatal("user id missing from handler context")
	}
	if seen["role"] != string(enums.UserRoleCustomer) {
		t.Fatalf("role %q, want customer", seen["role"])
	}
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	token := signedToken(t, authTestConfig(), enums.UserRoleCustomer)

	rec, seen := serveAuthed(t, sessionCheckStub{live: false}, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
	if len(seen) != 0 {
		t.Fatal("inner handler must not run")
	}
}

func TestAuthFailsClosedOnSessionStoreError(t *testing.T) {
	token := signedToken(t, authTestConfig(), enums.UserRoleAdmin)

	rec, _ := serveAuthed(t, sessionCheckStub{err: context.DeadlineExceeded}, "Bearer "+token)
	assertErrorCode(t, rec, pkgerrors.CodeDependency)
}
