package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// PaymentCreateParams are the inputs for a Square charge. Amounts are in
// cents; Currency defaults to USD when blank.
type PaymentCreateParams struct {
	AmountCents    int64
	Currency       string
	LocationID     string
	CustomerID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
}

func (p PaymentCreateParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		LocationID:     optString(p.LocationID),
		CustomerID:     optString(p.CustomerID),
		SourceID:       p.SourceID,
		Note:           optString(p.Note),
		ReferenceID:    optString(p.ReferenceID),
	}
	if p.AmountCents > 0 {
		amount := p.AmountCents
		currency := sq.Currency(normalizeCurrency(p.Currency))
		req.AmountMoney = &sq.Money{Amount: &amount, Currency: &currency}
	}
	return req
}

// optString maps blank input to nil so the SDK omits the field entirely.
func optString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeCurrency(code string) string {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return "USD"
	}
	return normalized
}
