package shared

import (
	"fmt"
	"math"
)

// Cents represents a currency amount in integer cents (BRL).
// All balance and reward arithmetic in the system happens on this type so
// that comparisons against the parent's balance are exact.
type Cents int64

// CentsFromFloat converts a decimal currency amount (e.g. 2.50 from a JSON
// payload) to Cents, rounding to the nearest cent.
func CentsFromFloat(v float64) Cents {
	return Cents(math.Round(v * 100))
}

// Float returns the decimal currency amount.
func (c Cents) Float() float64 {
	return float64(c) / 100
}

// IsValid checks that the amount is non-negative.
func (c Cents) IsValid() bool {
	return c >= 0
}

// Covers reports whether a balance of c covers the given amount.
func (c Cents) Covers(amount Cents) bool {
	return c >= amount
}

// String formats the amount as a decimal currency string, e.g. "R$ 2.50".
func (c Cents) String() string {
	return fmt.Sprintf("R$ %.2f", c.Float())
}
