package enums

import "fmt"

// CartStatus tracks the lifecycle of a shopping cart.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusCompleted CartStatus = "completed"
	CartStatusCanceled  CartStatus = "canceled"
	CartStatusExpired   CartStatus = "expired"
)

func (c CartStatus) String() string { return string(c) }

func (c CartStatus) IsValid() bool {
	switch c {
	case CartStatusActive, CartStatusCompleted, CartStatusCanceled, CartStatusExpired:
		return true
	}
	return false
}

// ParseCartStatus validates raw input against the cart status enum.
func ParseCartStatus(value string) (CartStatus, error) {
	parsed := CartStatus(value)
	if !parsed.IsValid() {
		return "", fmt.Errorf("unknown cart status %q", value)
	}
	return parsed, nil
}
