package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeProductNotFound    Code = "PRODUCT_NOT_FOUND"
	CodeCartNotFound       Code = "CART_NOT_FOUND"
	CodeProductNotInCart   Code = "PRODUCT_NOT_IN_CART"
	CodeOrderNotFound      Code = "ORDER_NOT_FOUND"
	CodeOutOfStock         Code = "OUT_OF_STOCK"
	CodeInsufficientStock  Code = "INSUFFICIENT_STOCK"
	CodeConflict           Code = "CONFLICT"
	CodeStateConflict      Code = "STATE_CONFLICT"
	CodeRateLimit          Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeDependency         Code = "DEPENDENCY_ERROR"
)

// Metadata drives how a code is rendered at the edge: the HTTP status, the
// generic message used when the real one must stay private, and whether
// structured details may ride along.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func meta(status int, public string, detailsAllowed bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, DetailsAllowed: detailsAllowed}
}

func retryableMeta(status int, public string, detailsAllowed bool) Metadata {
	m := meta(status, public, detailsAllowed)
	m.Retryable = true
	return m
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:         meta(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:       meta(http.StatusUnauthorized, "authentication required", false),
	CodeInvalidCredentials: meta(http.StatusUnauthorized, "invalid credentials", false),
	CodeForbidden:          meta(http.StatusForbidden, "access denied", false),
	CodeNotFound:           meta(http.StatusNotFound, "resource not found", false),
	CodeProductNotFound:    meta(http.StatusNotFound, "product not found", false),
	CodeCartNotFound:       meta(http.StatusNotFound, "cart not found", false),
	CodeProductNotInCart:   meta(http.StatusNotFound, "product not in cart", false),
	CodeOrderNotFound:      meta(http.StatusNotFound, "order not found", false),
	CodeOutOfStock:         meta(http.StatusConflict, "product out of stock", true),
	CodeInsufficientStock:  meta(http.StatusConflict, "insufficient stock", true),
	CodeConflict:           meta(http.StatusConflict, "conflict detected", false),
	CodeStateConflict:      meta(http.StatusUnprocessableEntity, "state transition disallowed", true),
	CodeRateLimit:          meta(http.StatusTooManyRequests, "rate limit exceeded", false),
	CodeInternal:           retryableMeta(http.StatusInternalServerError, "internal server error", false),
	CodeDependency:         retryableMeta(http.StatusServiceUnavailable, "dependency unavailable", true),
}

// MetadataFor never misses; unknown codes are treated as internal.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error is the one error type that crosses service boundaries. Everything a
// handler returns eventually gets coerced into one of these.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

// Accessors tolerate a nil receiver so callers can chain off As without a
// nil check.

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As digs the typed error out of a wrapped chain, or returns nil.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
