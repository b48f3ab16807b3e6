package square

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
)

func TestIdempotencyKeyPassthroughAndFallback(t *testing.T) {
	c := &Client{}

	if got := c.idempotencyKeyOr("pay", "caller-key"); got != "caller-key" {
		t.Fatalf("caller key replaced with %q", got)
	}
	if got := c.idempotencyKeyOr("pay", "   "); !strings.HasPrefix(got, "pay-") {
		t.Fatalf("generated key %q lacks prefix", got)
	}
	if got := c.NewIdempotencyKey("  "); !strings.HasPrefix(got, "sf-") {
		t.Fatalf("blank prefix should fall back, got %q", got)
	}
}

func TestScrubLogValue(t *testing.T) {
	if got := scrubLogValue("payment_token", "abc123"); got != "[REDACTED]" {
		t.Fatalf("sensitive key leaked: %v", got)
	}
	if got := scrubLogValue("status", "ok"); got != "ok" {
		t.Fatal("safe key must pass through untouched")
	}
}

func TestCodeForHTTPStatus(t *testing.T) {
	cases := map[int]pkgerrors.Code{
		http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
		http.StatusForbidden:           pkgerrors.CodeForbidden,
		http.StatusNotFound:            pkgerrors.CodeNotFound,
		http.StatusConflict:            pkgerrors.CodeConflict,
		http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
		http.StatusBadRequest:          pkgerrors.CodeValidation,
		http.StatusUnprocessableEntity: pkgerrors.CodeStateConflict,
		http.StatusTeapot:              pkgerrors.CodeValidation,
		http.StatusInternalServerError: pkgerrors.CodeDependency,
	}
	for status, want := range cases {
		if got := codeForHTTPStatus(status); got != want {
			t.Errorf("status %d mapped to %s, want %s", status, got, want)
		}
	}
}

func mappedCode(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	var domainErr *pkgerrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("want a domain error, got %T", err)
	}
	return domainErr.Code()
}

func TestGatewayErrorTranslation(t *testing.T) {
	c := &Client{}
	cases := map[string]struct {
		status  int
		payload string
		want    pkgerrors.Code
	}{
		"authentication failure": {
			status:  http.StatusUnauthorized,
			payload: `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`,
			want:    pkgerrors.CodeUnauthorized,
		},
		"idempotency key reused": {
			status:  http.StatusBadRequest,
			payload: `{"errors":[{"category":"API_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`,
			want:    pkgerrors.CodeConflict,
		},
		"plain not found": {
			status:  http.StatusNotFound,
			payload: `{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"NOT_FOUND"}]}`,
			want:    pkgerrors.CodeNotFound,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			apiErr := sqcore.NewAPIError(tc.status, errors.New(tc.payload))
			if got := mappedCode(t, c.toDomainError(apiErr, "create payment")); got != tc.want {
				t.Fatalf("code %s, want %s", got, tc.want)
			}
		})
	}
}

func TestTransportErrorBecomesDependency(t *testing.T) {
	c := &Client{}
	got := mappedCode(t, c.toDomainError(errors.New("network down"), "create payment"))
	if got != pkgerrors.CodeDependency {
		t.Fatalf("code %s, want dependency", got)
	}
}

func TestResolveEnvironment(t *testing.T) {
	valid := map[string]string{
		"":             sandboxEnv,
		"Sandbox":      sandboxEnv,
		" production ": productionEnv,
	}
	for in, want := range valid {
		got, err := resolveEnvironment(in)
		if err != nil {
			t.Fatalf("resolveEnvironment(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("resolveEnvironment(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := resolveEnvironment("staging"); err == nil {
		t.Fatal("unknown environment must be rejected")
	}
}
