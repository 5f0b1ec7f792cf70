package shared

import "github.com/shopspring/decimal"

// RoundMoney rounds a monetary amount to 2 decimal places, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns amount * (rate/100), unrounded.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(decimal.NewFromInt(100))
}
