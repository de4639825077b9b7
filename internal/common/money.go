package common

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the ISO code used for display when none is configured.
const DefaultCurrency = money.USD

// FormatMoney renders amount in the currency's display format, rounded to
// its minor unit. Unknown codes fall back to DefaultCurrency.
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		currency = DefaultCurrency
		cur = money.GetCurrency(currency)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, currency).Display()
}
