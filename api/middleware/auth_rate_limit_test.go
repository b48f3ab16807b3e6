package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
)

type memoryRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemoryRateStore() *memoryRateStore {
	return &memoryRateStore{counts: map[string]int64{}}
}

func (m *memoryRateStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, want pkgerrors.Code) {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if payload.Error.Code != string(want) {
		t.Fatalf("error code %s, want %s", payload.Error.Code, want)
	}
}

func loginAttempt(handler http.Handler, path, email, ip string) *httptest.ResponseRecorder {
	body := `{"email":"` + email + `","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.RemoteAddr = ip
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthRateLimitPassesBodyThrough(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 2, 2)
	var seenBody string
	handler := AuthRateLimit(policy, newMemoryRateStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		seenBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	rec := loginAttempt(handler, "/api/v1/auth/login", "tester@example.com", "1.2.3.4:5678")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	// The middleware reads the body to extract the email; the handler must
	// still see the full payload.
	if !strings.Contains(seenBody, `"email":"tester@example.com"`) {
		t.Fatalf("handler saw body %s", seenBody)
	}
}

func TestAuthRateLimitBlocksEmailAxis(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 2)
	handler := AuthRateLimit(policy, newMemoryRateStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		if rec := loginAttempt(handler, "/api/v1/auth/login", "blocked@example.com", "1.2.3.4:5678"); rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: status %d, want 200", i+1, rec.Code)
		}
	}

	rec := loginAttempt(handler, "/api/v1/auth/login", "blocked@example.com", "1.2.3.4:5678")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", rec.Code)
	}
	assertErrorCode(t, rec, pkgerrors.CodeRateLimit)
}

func TestAuthRateLimitBlocksIPAxis(t *testing.T) {
	policy := NewAuthRateLimitPolicy("register", time.Minute, 1, 0)
	handler := AuthRateLimit(policy, newMemoryRateStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if rec := loginAttempt(handler, "/api/v1/auth/register", "foo@example.com", "5.6.7.8:1234"); rec.Code != http.StatusOK {
		t.Fatalf("first attempt: status %d, want 200", rec.Code)
	}

	// Different email, same source address: the IP axis still trips.
	rec := loginAttempt(handler, "/api/v1/auth/register", "bar@example.com", "5.6.7.8:1234")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", rec.Code)
	}
	assertErrorCode(t, rec, pkgerrors.CodeRateLimit)
}
