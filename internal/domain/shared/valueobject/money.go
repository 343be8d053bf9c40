package valueobject

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies are ISO currencies that carry no minor unit,
// their smallest denomination is the whole unit
var zeroDecimalCurrencies = map[string]struct{}{
	"JPY": {},
	"KRW": {},
	"VND": {},
	"CLP": {},
}

// Exponent returns the number of decimal places the currency uses
func Exponent(currency string) int32 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]; ok {
		return 0
	}
	return 2
}

func minorUnitFactor(currency string) decimal.Decimal {
	return decimal.New(1, Exponent(currency))
}

// Money represents a monetary amount with currency
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney creates a new Money value object
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if currency == "" {
		return Money{}, fmt.Errorf("currency cannot be empty")
	}
	if len(currency) != 3 {
		return Money{}, fmt.Errorf("currency must be a 3-letter ISO code, got %q", currency)
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// NewMoneyFromFloat creates Money from a float64 amount
func NewMoneyFromFloat(amount float64, currency string) (Money, error) {
	return NewMoney(decimal.NewFromFloat(amount), currency)
}

// NewMoneyFromMinorUnits creates Money from an amount in the currency's
// smallest denomination (cents for BRL, whole yen for JPY)
func NewMoneyFromMinorUnits(minorUnits int64, currency string) (Money, error) {
	return NewMoney(decimal.NewFromInt(minorUnits).Div(minorUnitFactor(currency)), currency)
}

// ZeroMoney returns zero money in the given currency
func ZeroMoney(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// MinorUnits returns the amount in the currency's smallest denomination,
// rounded to the nearest unit
func (m Money) MinorUnits() int64 {
	return m.Amount.Mul(minorUnitFactor(m.Currency)).Round(0).IntPart()
}

// Add adds two money values of the same currency
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("cannot add %s to %s", other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub subtracts another money value of the same currency
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("cannot subtract %s from %s", other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// IsPositive reports whether the amount is greater than zero
func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

// IsNegative reports whether the amount is less than zero
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// IsZero reports whether the amount is zero
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Equals reports whether two money values are equal in amount and currency
func (m Money) Equals(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// String returns a human-readable representation
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(Exponent(m.Currency)), m.Currency)
}
