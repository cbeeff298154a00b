// Package core provides the subscription domain model and money handling.
//
// This file contains the cycle normalizer and the display-currency helpers.
// Amounts are always stored in the base currency; conversion to a display
// currency happens only at formatting time.
package core

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	BaseCurrency = "JPY"
	USD          = "USD"
)

var (
	// FallbackJPYToUSD is substituted whenever no live exchange rate is available.
	FallbackJPYToUSD = decimal.RequireFromString("0.0066")

	monthsPerYear = decimal.NewFromInt(12)
)

// Settings carries display preferences explicitly instead of through globals.
type Settings struct {
	DisplayCurrency string
	Rate            decimal.Decimal // JPY -> DisplayCurrency; zero means unknown
}

// DefaultSettings displays amounts in the base currency.
func DefaultSettings() Settings {
	return Settings{DisplayCurrency: BaseCurrency}
}

// Format renders a base-currency amount according to the settings.
func (s Settings) Format(amount decimal.Decimal) string {
	return FormatCurrency(amount, s.DisplayCurrency, s.Rate)
}

// ToMonthly returns the monthly-equivalent of amount. No rounding is applied.
// cycle must be Monthly or Yearly.
func ToMonthly(amount decimal.Decimal, cycle Cycle) decimal.Decimal {
	if cycle == Yearly {
		return amount.Div(monthsPerYear)
	}
	return amount
}

// ToYearly returns the yearly-equivalent of amount. cycle must be Monthly or Yearly.
func ToYearly(amount decimal.Decimal, cycle Cycle) decimal.Decimal {
	if cycle == Yearly {
		return amount
	}
	return amount.Mul(monthsPerYear)
}

// Monthly returns the subscription's monthly-equivalent cost.
func (s Subscription) Monthly() decimal.Decimal {
	return ToMonthly(s.Amount, s.Cycle)
}

// Yearly returns the subscription's yearly-equivalent cost.
func (s Subscription) Yearly() decimal.Decimal {
	return ToYearly(s.Amount, s.Cycle)
}

// EffectiveRate returns rate, or the fallback constant when rate is unusable.
func EffectiveRate(rate decimal.Decimal) decimal.Decimal {
	if rate.Sign() <= 0 {
		return FallbackJPYToUSD
	}
	return rate
}

// ConvertDisplay converts a base-currency amount into target. It never fails:
// a missing rate falls back to FallbackJPYToUSD.
func ConvertDisplay(base decimal.Decimal, target string, rate decimal.Decimal) decimal.Decimal {
	if isBase(target) {
		return base
	}
	return base.Mul(EffectiveRate(rate))
}

// ToBase converts an amount priced in currency into the base currency.
func ToBase(amount decimal.Decimal, currency string, rate decimal.Decimal) decimal.Decimal {
	if isBase(currency) {
		return amount
	}
	return amount.Div(EffectiveRate(rate))
}

// FormatCurrency converts amount from the base currency to currency and
// formats it with grouping separators and symbol. The base currency is shown
// without decimals, other currencies with their minor unit (2 for USD).
// Half-up rounding is applied at the minor unit.
func FormatCurrency(amount decimal.Decimal, currency string, rate decimal.Decimal) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = BaseCurrency
	}
	value := ConvertDisplay(amount, code, rate)

	cur := money.GetCurrency(code)
	if cur == nil {
		return value.StringFixed(2) + " " + code
	}
	minor := value.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, code).Display()
}

func isBase(currency string) bool {
	c := strings.ToUpper(strings.TrimSpace(currency))
	return c == "" || c == BaseCurrency
}

// RoundHalfUp rounds a non-negative amount to the nearest integer for storage.
func RoundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// ParseAmount converts a decimal string to an amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators as well as
// the grouping forms users commonly type ("1,200" is read as 1.2 only when a
// single comma is followed by 1-2 digits). Negative values are rejected; zero
// is allowed for free tiers.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "¥")
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	if i := strings.LastIndex(s, ","); i >= 0 && !strings.Contains(s, ".") && len(s)-i-1 <= 2 && strings.Count(s, ",") == 1 {
		// Decimal comma
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
