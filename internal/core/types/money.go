// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
// All ledger cost arithmetic goes through this type.
type Money = decimal.Decimal

// CurrencyScale is the number of fractional digits for persisted amounts.
const CurrencyScale = 2

// NewMoneyFromString creates a Money value from a string.
// This is the preferred constructor for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NewMoneyFromFloat creates a Money value from a float.
// WARNING: prefer NewMoneyFromString for precise values.
func NewMoneyFromFloat(f float64) Money {
	return decimal.NewFromFloat(f)
}

// MoneyFromInt creates a Money value from whole units.
func MoneyFromInt(v int64) Money {
	return decimal.NewFromInt(v)
}

// ZeroMoney returns zero Money value.
func ZeroMoney() Money {
	return decimal.Zero
}

// RoundCurrency rounds to currency precision (2 decimal places, half up).
func RoundCurrency(m Money) Money {
	return m.Round(CurrencyScale)
}

// Quantity is a signed integer stock quantity, positive for inbound
// movements and negative for outbound ones. Books ship in whole units,
// so no fixed-point scaling is needed.
type Quantity = int64

// AbsQuantity returns the magnitude of a signed quantity.
func AbsQuantity(q Quantity) Quantity {
	if q < 0 {
		return -q
	}
	return q
}
