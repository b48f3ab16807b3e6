package middleware

import (
	"fmt"
	"net/http"

	"github.com/dvillegas/storefront-backend/api/responses"
	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
	"github.com/dvillegas/storefront-backend/pkg/logger"
)

// Recoverer turns a handler panic into a 500 response instead of letting
// the connection die mid-write.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			defer recoverPanic(logg, w, r)
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

func recoverPanic(logg *logger.Logger, w http.ResponseWriter, r *http.Request) {
	cause := recover()
	if cause == nil {
		return
	}

	err := fmt.Errorf("panic: %v", cause)
	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"panic": cause})
		logg.Error(ctx, "panic.recovered", err)
	}
	responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
}
