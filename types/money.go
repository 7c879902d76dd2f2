package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in the smallest currency unit (cents for USD).
// Arithmetic stays in integers; decimal is used only for presentation
// and for talking to payment providers that want major units.
type Money struct {
	Amount   int64  `json:"amount"`   // cents
	Currency string `json:"currency"` // ISO 4217 lowercase
}

// USD creates a Money value in US cents.
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// Zero returns zero in the given currency.
func Zero(currency string) Money { return Money{Currency: strings.ToLower(currency)} }

// Add adds two Money values. Panics if currencies differ.
func (m Money) Add(other Money) Money {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Multiply multiplies the amount by qty.
func (m Money) Multiply(qty int64) Money {
	return Money{Amount: m.Amount * qty, Currency: m.Currency}
}

// IsPositive reports whether the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// Equal reports whether amount and currency match.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// Decimal returns the amount in major units ("10.00" for USD(1000)).
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -int32(currencyDecimals(m.Currency)))
}

// FormatMajor returns the major-unit string without symbol.
func (m Money) FormatMajor() string {
	return m.Decimal().StringFixed(int32(currencyDecimals(m.Currency)))
}

// String returns the amount with its currency symbol, e.g. "$45.00".
func (m Money) String() string {
	return currencySymbol(m.Currency) + m.FormatMajor()
}

// MarshalJSON includes a display string next to the raw amount.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// ParseMajor parses a major-unit string ("10", "45.50") into Money.
// Fractions below the smallest unit are rejected.
func ParseMajor(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	places := int32(currencyDecimals(currency))
	minor := d.Shift(places)
	if !minor.Equal(minor.Truncate(0)) {
		return Money{}, fmt.Errorf("money: %q has more than %d decimal places", s, places)
	}
	return Money{Amount: minor.IntPart(), Currency: strings.ToLower(currency)}, nil
}

func currencySymbol(currency string) string {
	switch strings.ToLower(currency) {
	case "usd":
		return "$"
	case "eur":
		return "€"
	case "gbp":
		return "£"
	default:
		return strings.ToUpper(currency) + " "
	}
}

func currencyDecimals(currency string) int {
	switch strings.ToLower(currency) {
	case "jpy", "krw", "vnd":
		return 0
	default:
		return 2
	}
}
