package domain

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (kuruş, cents). All arithmetic
// stays in integers; decimal is only used at the JSON boundary.
type Money int64

const (
	minorDigits = 2
	// maxMajorUnits bounds a single parsed amount. Running totals are
	// guarded separately by Money.Add.
	maxMajorUnits = 10_000_000_000_000
	// Exponent and length limits are checked before any rescaling, which
	// costs time proportional to the exponent.
	maxExponent     = 13
	minExponent     = -40
	maxAmountLength = 64
)

var maxMoney = decimal.New(maxMajorUnits, 0)

func (m Money) IsPositive() bool {
	return m > 0
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -minorDigits)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(minorDigits)
}

// ParseMoney accepts a decimal string with at most two fractional digits.
func ParseMoney(s string) (Money, error) {
	if len(s) > maxAmountLength {
		return 0, fmt.Errorf("%w: amount is longer than %d characters", ErrInvalidArgument, maxAmountLength)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: amount is not a number", ErrInvalidArgument)
	}
	return MoneyFromDecimal(d)
}

func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.Exponent() > maxExponent || d.Exponent() < minExponent {
		return 0, fmt.Errorf("%w: amount is out of range", ErrInvalidArgument)
	}
	if !d.Equal(d.Truncate(minorDigits)) {
		return 0, fmt.Errorf("%w: amount has more than %d decimal places", ErrInvalidArgument, minorDigits)
	}
	if d.Abs().GreaterThan(maxMoney) {
		return 0, fmt.Errorf("%w: amount is out of range", ErrInvalidArgument)
	}
	return Money(d.Shift(minorDigits).IntPart()), nil
}

// Add returns m+other, or ErrInvalidArgument when the sum overflows int64.
func (m Money) Add(other Money) (Money, error) {
	sum := m + other
	if (other > 0 && sum < m) || (other < 0 && sum > m) {
		return 0, fmt.Errorf("%w: total exceeds the supported range", ErrInvalidArgument)
	}
	return sum, nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts both 40.5 and "40.50".
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: amount is required", ErrInvalidArgument)
	}
	parsed, err := ParseMoney(string(raw))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
