// Package core provides money parsing and handling utilities.
//
// This file contains the Money value type used for every balance and
// transaction sum, and the functions that turn untrusted input (strings or
// floats from JSON) into validated amounts.
package core

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed decimal amount with two fractional digits.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// NewMoney wraps d, rounding half away from zero to two decimal places.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(2)}
}

// FromCents builds an amount from an integer number of cents.
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// ParseAmount converts a decimal string to a positive Money value.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place. Signs, exponents, NaN and infinities are
// rejected, as is any value that rounds to zero or below.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
//	ParseAmount("-1")     -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return Zero, ErrInvalidAmount
		}
	}
	if strings.Count(s, ".") > 1 {
		return Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	m := NewMoney(d)
	if err := m.Validate(); err != nil {
		return Zero, err
	}
	return m, nil
}

// ParseMoney decodes a stored decimal string. Unlike ParseAmount it accepts
// zero and negative values, so it is meant for persisted balances only.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Zero, fmt.Errorf("parse money %q: %w", s, err)
	}
	return NewMoney(d), nil
}

// MoneyFromFloat converts a float received at a boundary (JSON number) into a
// positive Money value. NaN and infinities are rejected.
func MoneyFromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Zero, ErrInvalidAmount
	}
	m := NewMoney(decimal.NewFromFloat(f))
	if err := m.Validate(); err != nil {
		return Zero, err
	}
	return m, nil
}

// Validate requires the amount to be strictly positive.
func (m Money) Validate() error {
	if !m.d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }
func (m Money) Cmp(o Money) int    { return m.d.Cmp(o.d) }
func (m Money) IsZero() bool       { return m.d.IsZero() }
func (m Money) IsNegative() bool   { return m.d.IsNegative() }

// Decimal exposes the underlying decimal for arithmetic the type does not wrap.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Cents returns the amount in integer cents.
func (m Money) Cents() int64 {
	return m.d.Shift(2).Round(0).IntPart()
}

// Float64 returns the value for display purposes.
// Note: use Money arithmetic for calculations to avoid floating-point drift.
func (m Money) Float64() float64 {
	return m.d.InexactFloat64()
}

func (m Money) String() string {
	return m.d.StringFixed(2)
}

// MarshalJSON encodes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.StringFixed(2)), nil
}

// maxAmountLen bounds the textual form of a decoded amount.
const maxAmountLen = 32

// UnmarshalJSON accepts a JSON number or a quoted decimal string in plain
// notation. Exponents are rejected.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Zero
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	if len(s) == 0 || len(s) > maxAmountLen {
		return ErrInvalidAmount
	}
	for i, r := range s {
		if (r < '0' || r > '9') && r != '.' && !(r == '-' && i == 0) {
			return ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ErrInvalidAmount
	}
	*m = NewMoney(d)
	return nil
}
