package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatUSD(t *testing.T) {
	cases := []struct {
		cents int
		want  string
	}{
		{0, "$0.00"},
		{5, "$0.05"},
		{1999, "$19.99"},
		{100000, "$1000.00"},
	}
	for _, tt := range cases {
		if got := FormatUSD(tt.cents); got != tt.want {
			t.Fatalf("FormatUSD(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestToCentsRoundTrip(t *testing.T) {
	for _, cents := range []int{0, 1, 99, 12345} {
		if got := ToCents(FromCents(cents)); got != cents {
			t.Fatalf("round trip %d -> %d", cents, got)
		}
	}
	half := decimal.RequireFromString("10.005")
	if got := ToCents(half); got != 1001 {
		t.Fatalf("expected half-up rounding to 1001, got %d", got)
	}
}
