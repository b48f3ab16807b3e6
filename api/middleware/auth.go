package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dvillegas/storefront-backend/api/responses"
	pkgAuth "github.com/dvillegas/storefront-backend/pkg/auth"
	"github.com/dvillegas/storefront-backend/pkg/auth/session"
	"github.com/dvillegas/storefront-backend/pkg/config"
	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
	"github.com/dvillegas/storefront-backend/pkg/logger"
)

// Auth authenticates requests with a bearer JWT and rejects tokens whose
// server-side session has been revoked. The claims land in the request
// context for handlers downstream.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			deny := func(err error) {
				responses.WriteError(r.Context(), logg, w, err)
			}

			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				deny(pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			switch {
			case err != nil:
				deny(pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			case claims.ID == "":
				deny(pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			if sessions != nil {
				live, err := sessions.HasSession(r.Context(), claims.ID)
				if err != nil {
					deny(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !live {
					deny(pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(authedContext(r.Context(), logg, claims)))
		}
		return http.HandlerFunc(fn)
	}
}

// bearerToken strips an optional case-insensitive "Bearer" scheme prefix.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= 7 && strings.EqualFold(header[:7], "bearer ") {
		header = header[7:]
	}
	return strings.TrimSpace(header)
}

func authedContext(ctx context.Context, logg *logger.Logger, claims *pkgAuth.AccessTokenClaims) context.Context {
	userID := claims.UserID.String()
	role := string(claims.Role)

	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxRole, role)
	if logg == nil {
		return ctx
	}
	return logg.WithFields(ctx, map[string]any{
		"user_id":    userID,
		"actor_role": role,
	})
}
