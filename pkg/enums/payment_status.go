package enums

import "fmt"

// PaymentStatus tracks the state of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentStatusPending, PaymentStatusSucceeded, PaymentStatusFailed:
		return true
	}
	return false
}

// ParsePaymentStatus validates raw input against the payment status enum.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	parsed := PaymentStatus(value)
	if !parsed.IsValid() {
		return "", fmt.Errorf("unknown payment status %q", value)
	}
	return parsed, nil
}
