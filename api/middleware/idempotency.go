package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/dvillegas/storefront-backend/api/responses"
	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
	"github.com/dvillegas/storefront-backend/pkg/logger"
	pkgredis "github.com/dvillegas/storefront-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// idempotencyRule matches a route either exactly or by prefix+suffix, which
// covers routes with a path parameter in the middle.
type idempotencyRule struct {
	method string
	exact  string
	prefix string
	suffix string
	ttl    time.Duration
}

func (rule idempotencyRule) matches(method, pattern string) bool {
	if rule.method != method {
		return false
	}
	if rule.exact != "" {
		return pattern == rule.exact
	}
	return strings.HasPrefix(pattern, rule.prefix) && strings.HasSuffix(pattern, rule.suffix)
}

// Money- and stock-touching routes keep their records for a week; the rest
// get a day.
var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, exact: "/api/v1/auth/register", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/cart/items", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/cart/items/", suffix: "/increase", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/cart/items/", suffix: "/decrease", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/notifications/", suffix: "/read", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/notifications/read-all", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/admin/products", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/admin/categories", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/admin/orders/", suffix: "/status", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, exact: "/api/v1/orders", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/orders/", suffix: "/pay", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/orders/", suffix: "/cancel", ttl: criticalIdempotencyTTL},
}

// idempotencyRecord is the stored response. The request hash detects a key
// reused with a different body.
type idempotencyRecord struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

// Idempotency replays the recorded response for a repeated Idempotency-Key
// on guarded routes, so retried checkouts and payments run the handler once.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := routeTTL(r.Method, routePattern(r))
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if key == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			guard := idempotencyGuard{
				store:       store,
				logg:        logg,
				storeKey:    store.IdempotencyKey(requestScope(r), key),
				requestHash: hashBody(body),
				ttl:         ttl,
			}
			guard.serve(w, r, next)
		})
	}
}

type idempotencyGuard struct {
	store       pkgredis.IdempotencyStore
	logg        *logger.Logger
	storeKey    string
	requestHash string
	ttl         time.Duration
}

func (g idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()

	stored, err := g.store.Get(ctx, g.storeKey)
	if err != nil && !errors.Is(err, redis.Nil) {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	if stored != "" {
		g.replay(ctx, w, stored)
		return
	}

	capture := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(capture, r)
	g.record(ctx, capture)
}

// replay writes the previously recorded response, rejecting keys reused
// with a different request body.
func (g idempotencyGuard) replay(ctx context.Context, w http.ResponseWriter, stored string) {
	var rec idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &rec); err != nil {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if rec.RequestHash != g.requestHash {
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key reused with different request body"))
		return
	}

	if ct := rec.Headers["Content-Type"]; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(rec.Status)
	if decoded, err := base64.StdEncoding.DecodeString(rec.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

// record persists the captured response. Persistence failures are logged,
// not surfaced: the client already has its response.
func (g idempotencyGuard) record(ctx context.Context, capture *responseCapture) {
	rec := idempotencyRecord{
		Status:      capture.statusOrOK(),
		Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
		RequestHash: g.requestHash,
	}
	if ct := capture.Header().Get("Content-Type"); ct != "" {
		rec.Headers = map[string]string{"Content-Type": ct}
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		logError(ctx, g.logg, "marshal idempotency record", err)
		return
	}
	if _, err := g.store.SetNX(ctx, g.storeKey, string(payload), g.ttl); err != nil {
		logError(ctx, g.logg, "persist idempotency record", err)
	}
}

// requestScope ties a key to the caller and route, so two users (or two
// endpoints) can share a key value without colliding.
func requestScope(r *http.Request) string {
	return strings.Join([]string{
		UserIDFromContext(r.Context()),
		r.Method,
		r.URL.Path,
	}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	if len(pattern) > 1 {
		pattern = strings.TrimRight(pattern, "/")
	}
	for _, rule := range idempotencyRules {
		if rule.matches(method, pattern) {
			return rule.ttl, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusOrOK() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
