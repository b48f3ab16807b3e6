package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := map[Code]struct {
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		CodeValidation:    {status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		CodeUnauthorized:  {status: http.StatusUnauthorized, publicMsg: "authentication required"},
		CodeForbidden:     {status: http.StatusForbidden, publicMsg: "access denied"},
		CodeNotFound:      {status: http.StatusNotFound, publicMsg: "resource not found"},
		CodeConflict:      {status: http.StatusConflict, publicMsg: "conflict detected"},
		CodeStateConflict: {status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		CodeInternal:      {status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		CodeDependency:    {status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for code, want := range tests {
		t.Run(string(code), func(t *testing.T) {
			meta := MetadataFor(code)
			if meta.HTTPStatus != want.status {
				t.Fatalf("expected status %d got %d", want.status, meta.HTTPStatus)
			}
			if meta.PublicMessage != want.publicMsg {
				t.Fatalf("expected public message %q got %q", want.publicMsg, meta.PublicMessage)
			}
			if meta.Retryable != want.retryable {
				t.Fatalf("expected retryable %v got %v", want.retryable, meta.Retryable)
			}
			if meta.DetailsAllowed != want.detailsOK {
				t.Fatalf("expected details allowed %v got %v", want.detailsOK, meta.DetailsAllowed)
			}
		})
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	if meta := MetadataFor("SOMETHING_UNKNOWN"); meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestNewCarriesCodeMessageAndDetails(t *testing.T) {
	err := New(CodeValidation, "missing foo")
	if err.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", err.Code())
	}
	if err.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", err.Message())
	}
	if err.Details() != nil {
		t.Fatalf("details should be nil by default")
	}
	if err.Error() != "VALIDATION_ERROR: missing foo" {
		t.Fatalf("unexpected Error() output %q", err.Error())
	}

	err.WithDetails(map[string]any{"field": "foo"})
	if err.Details() == nil {
		t.Fatalf("details should be preserved")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "saving cart")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap lost the cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatalf("As on a plain error should return nil")
	}
}
