// Package price implements the venue's monetary value type: an exact
// integer number of cents with total ordering, plus the one place prices
// are allowed to touch decimal arithmetic (the external boundary).
package price

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNegative is returned when a Price would be constructed below zero.
var ErrNegative = errors.New("price: negative value")

// Price is an immutable nonnegative integer number of minor units (cents).
// It is never constructed from a float64 without going through Parse,
// which applies a documented, reviewed rounding mode.
type Price int64

// Zero is a price of zero cents.
const Zero Price = 0

// FromCents builds a Price directly from an integer number of cents.
func FromCents(cents int64) (Price, error) {
	if cents < 0 {
		return 0, ErrNegative
	}
	return Price(cents), nil
}

// MustFromCents panics on a negative value; used for compile-time-known
// constants in tests and seed data.
func MustFromCents(cents int64) Price {
	p, err := FromCents(cents)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse converts an external decimal representation (at most two
// fractional digits, per spec) into cents using half-even rounding
// ("banker's rounding"): ties round to the nearest even cent. This mode is
// chosen because it is the rounding mode shopspring/decimal documents as
// bias-free under repeated aggregation, which matters for a venue that
// sums volumes and prices across many small orders.
func Parse(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("price: parse %q: %w", s, err)
	}
	return FromDecimal(d)
}

// FromDecimal converts a decimal.Decimal dollar amount into cents.
func FromDecimal(d decimal.Decimal) (Price, error) {
	cents := d.Mul(decimal.NewFromInt(100)).RoundBank(0)
	if cents.Sign() < 0 {
		return 0, ErrNegative
	}
	return Price(cents.IntPart()), nil
}

// Decimal renders the price back as a decimal dollar amount.
func (p Price) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(p)).Div(decimal.NewFromInt(100))
}

// String renders the price as a "$D.CC"-free plain decimal string, the
// form the audit wire format and CLI output both expect.
func (p Price) String() string {
	return p.Decimal().StringFixed(2)
}

// Cents returns the raw integer number of cents.
func (p Price) Cents() int64 { return int64(p) }

// Less reports whether p sorts strictly before other.
func (p Price) Less(other Price) bool { return p < other }

// Compare returns -1, 0, or 1 as p is less than, equal to, or greater than
// other, matching the convention of cmp.Compare.
func (p Price) Compare(other Price) int {
	switch {
	case p < other:
		return -1
	case p > other:
		return 1
	default:
		return 0
	}
}
