package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/dvillegas/storefront-backend/pkg/config"
	pkgerrors "github.com/dvillegas/storefront-backend/pkg/errors"
	"github.com/dvillegas/storefront-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	sandboxBaseURL    = "https://connect.squareupsandbox.com"
	productionBaseURL = "https://connect.squareup.com"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("square logger is required")
)

// Client is the gateway wrapper around the Square SDK. It owns credential
// handling, request/response logging with field scrubbing, idempotency key
// generation, and the mapping from Square failures to domain error codes.
type Client struct {
	sdk         *sqclient.Client
	accessToken string
	environment string
	locationID  string
	baseURL     string
	logger      *logger.Logger
}

// NewClient validates the Square config and builds the SDK client pointed at
// the environment's base URL.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}

	env, err := resolveEnvironment(cfg.Environment())
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}

	baseURL := productionBaseURL
	if env == sandboxEnv {
		baseURL = sandboxBaseURL
	}

	c := &Client{
		sdk: sqclient.NewClient(
			sqoption.WithBaseURL(baseURL),
			sqoption.WithToken(token),
		),
		accessToken: token,
		environment: env,
		locationID:  strings.TrimSpace(cfg.LocationID),
		baseURL:     baseURL,
		logger:      logg,
	}
	logg.Info(ctx, "square client ready")
	return c, nil
}

// Environment reports the resolved Square environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// LocationID returns the configured Square location.
func (c *Client) LocationID() string {
	if c == nil {
		return ""
	}
	return c.locationID
}

// NewIdempotencyKey returns a fresh idempotency key with the given prefix.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "sf"
	}
	return key + "-" + uuid.NewString()
}

// CreatePayment charges the provided source for the given amount. Callers
// that retry pass their own idempotency key; otherwise one is generated per
// call.
func (c *Client) CreatePayment(ctx context.Context, params PaymentCreateParams) (*sq.Payment, error) {
	req := params.toSquareRequest(c.idempotencyKeyOr("payment.create", params.IdempotencyKey))
	c.emit(ctx, "request", "create_payment", map[string]any{
		"amount_cents": params.AmountCents,
		"customer_id":  params.CustomerID,
		"location_id":  params.LocationID,
	})

	resp, err := c.sdk.Payments.Create(ctx, req)
	if err != nil {
		c.emit(ctx, "error", "create_payment", map[string]any{"error": err.Error()})
		return nil, c.toDomainError(err, "create payment")
	}
	payment := resp.GetPayment()

	c.emit(ctx, "response", "create_payment", map[string]any{
		"payment_id": deref(payment.GetID()),
		"status":     deref(payment.GetStatus()),
	})
	return payment, nil
}

// CancelPayment voids an approved payment, returning the funds to the buyer.
// Used to unwind a charge when order settlement fails after the gateway call.
func (c *Client) CancelPayment(ctx context.Context, paymentID string) error {
	if strings.TrimSpace(paymentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	c.emit(ctx, "request", "cancel_payment", map[string]any{"payment_id": paymentID})

	if _, err := c.sdk.Payments.Cancel(ctx, &sq.CancelPaymentsRequest{PaymentID: paymentID}); err != nil {
		c.emit(ctx, "error", "cancel_payment", map[string]any{"error": err.Error()})
		return c.toDomainError(err, "cancel payment")
	}

	c.emit(ctx, "response", "cancel_payment", map[string]any{"payment_id": paymentID})
	return nil
}

func (c *Client) idempotencyKeyOr(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) emit(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}

	scrubbed := map[string]any{"operation": op, "phase": phase}
	for key, value := range fields {
		scrubbed[key] = scrubLogValue(key, value)
	}
	ctx = c.logger.WithFields(ctx, scrubbed)

	if phase == "error" {
		c.logger.Error(ctx, "square "+op, errors.New(fmt.Sprint(fields["error"])))
		return
	}
	c.logger.Info(ctx, "square "+phase)
}

var sensitiveLogKeys = []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"}

func scrubLogValue(key string, value any) any {
	lowered := strings.ToLower(key)
	for _, fragment := range sensitiveLogKeys {
		if strings.Contains(lowered, fragment) {
			return "[REDACTED]"
		}
	}
	return value
}

// toDomainError converts SDK failures into domain errors. Idempotency-key
// reuse and authentication failures get specific codes; everything else maps
// off the HTTP status.
func (c *Client) toDomainError(err error, op string) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf("square %s failed", op)

	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}

	for _, sqErr := range decodeSquareErrors(apiErr) {
		if sqErr == nil {
			continue
		}
		switch {
		case sqErr.Code == sq.ErrorCodeIdempotencyKeyReused:
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, msg)
		case sqErr.Category == sq.ErrorCategoryAuthenticationError:
			return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg)
		}
	}
	return pkgerrors.Wrap(codeForHTTPStatus(apiErr.StatusCode), err, msg)
}

// decodeSquareErrors digs the structured error list out of the API error.
// The SDK buries it as a JSON body behind Unwrap.
func decodeSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil || apiErr.Unwrap() == nil {
		return nil
	}
	raw := strings.TrimSpace(apiErr.Unwrap().Error())
	if raw == "" {
		return nil
	}

	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil
	}
	return body.Errors
}

var codeByHTTPStatus = map[int]pkgerrors.Code{
	http.StatusBadRequest:          pkgerrors.CodeValidation,
	http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
	http.StatusForbidden:           pkgerrors.CodeForbidden,
	http.StatusNotFound:            pkgerrors.CodeNotFound,
	http.StatusConflict:            pkgerrors.CodeConflict,
	http.StatusUnprocessableEntity: pkgerrors.CodeStateConflict,
	http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
}

func codeForHTTPStatus(status int) pkgerrors.Code {
	if code, ok := codeByHTTPStatus[status]; ok {
		return code
	}
	if status >= 400 && status < 500 {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeDependency
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func resolveEnvironment(raw string) (string, error) {
	switch env := strings.TrimSpace(strings.ToLower(raw)); env {
	case "":
		return sandboxEnv, nil
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}
