// Package money represents monetary values in integer minor units (cents).
// Decimal inputs are rounded to the nearest cent once, at the boundary;
// every comparison and subtraction after that is exact integer math.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is money in minor units. No floats in the core.
type Amount int64

// ErrNotNumeric indicates the input could not be parsed as a decimal amount.
var ErrNotNumeric = errors.New("amount is not numeric")

// Parse converts a decimal string such as "600.00" into minor units,
// rounding to the nearest cent.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrNotNumeric
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	return FromDecimal(d), nil
}

// FromDecimal rounds to the nearest cent and converts to minor units.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount(d.Round(2).Shift(2).IntPart())
}

// FromFloat converts a float amount to minor units, rounding to the
// nearest cent. Only for ingesting legacy float data; core code keeps
// Amount end to end.
func FromFloat(f float64) Amount {
	return FromDecimal(decimal.NewFromFloat(f))
}

// Decimal returns the amount as a two-decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String formats the amount with two decimal places, e.g. "600.00".
func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

func (a Amount) IsPositive() bool { return a > 0 }
func (a Amount) IsZero() bool     { return a == 0 }

// Compare returns -1, 0 or 1 comparing a to b at cent precision.
func Compare(a, b Amount) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Remaining returns expected minus paid, floored at zero.
func Remaining(expected, paid Amount) Amount {
	if paid >= expected {
		return 0
	}
	return expected - paid
}

// MarshalJSON encodes the amount as a decimal string ("600.00") so
// clients never see raw minor units.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := Parse(s)
		if err != nil {
			return err
		}
		*a = v
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotNumeric, string(data))
	}
	*a = FromDecimal(d)
	return nil
}
