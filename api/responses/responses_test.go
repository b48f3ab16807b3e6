package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
	"github.com/dvillegas/storefront-backend/pkg/types"
)

func writeErr(t *testing.T, err error) (*httptest.ResponseRecorder, types.ErrorEnvelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, err)

	var envelope types.ErrorEnvelope
	if decodeErr := json.NewDecoder(rec.Body).Decode(&envelope); decodeErr != nil {
		t.Fatalf("decode error envelope: %v", decodeErr)
	}
	return rec, envelope
}

func TestSuccessEnvelopeWrapsData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"greeting": "hi"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode success envelope: %v", err)
	}
	payload, ok := envelope.Data.(map[string]any)
	if !ok || payload["greeting"] != "hi" {
		t.Fatalf("payload %v, want greeting", envelope.Data)
	}
}

func TestValidationErrorKeepsDetails(t *testing.T) {
	rec, envelope := writeErr(t, pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"quantity": "must be positive"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	if envelope.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("code %s, want validation", envelope.Error.Code)
	}
	if envelope.Error.Details == nil {
		t.Fatal("validation details must reach the client")
	}
}

func TestDomainErrorMessageReachesClient(t *testing.T) {
	rec, envelope := writeErr(t, pkgerrors.New(pkgerrors.CodeInsufficientStock, "only 2 left"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
	if envelope.Error.Message != "only 2 left" {
		t.Fatalf("message %q, want the domain text verbatim", envelope.Error.Message)
	}
}

func TestUntypedErrorIsHiddenBehindInternal(t *testing.T) {
	rec, envelope := writeErr(t, errors.New("pq: connection reset"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", rec.Code)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("code %s, want internal", envelope.Error.Code)
	}
	if envelope.Error.Message == "pq: connection reset" {
		t.Fatal("raw error text must not leak to the client")
	}
	if envelope.Error.Details != nil {
		t.Fatal("internal errors carry no details")
	}
}
