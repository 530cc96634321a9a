package tender

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amounts are stored as NUMERIC(18,4).
const (
	MaxScale         = 4
	MaxIntegerDigits = 14

	// exponents outside this range are rejected before any arithmetic, so a
	// value like 1e300000000 is never expanded
	minExponent = -18
	maxExponent = MaxIntegerDigits
)

var ErrAmountOutOfRange = errors.New("amount out of range")

var amountLimit = decimal.New(1, MaxIntegerDigits)

// CheckAmount rejects amounts that cannot be stored exactly: more than
// MaxScale decimal places or MaxIntegerDigits integer digits. It does not
// look at the sign. The amount is never formatted into the error.
func CheckAmount(d decimal.Decimal) error {
	exp := d.Exponent()
	if exp < minExponent || exp > maxExponent {
		return fmt.Errorf("%w: exponent %d", ErrAmountOutOfRange, exp)
	}
	if !d.Equal(d.Truncate(MaxScale)) {
		return fmt.Errorf("%w: more than %d decimal places", ErrAmountOutOfRange, MaxScale)
	}
	if d.Abs().GreaterThanOrEqual(amountLimit) {
		return fmt.Errorf("%w: more than %d integer digits", ErrAmountOutOfRange, MaxIntegerDigits)
	}
	return nil
}
