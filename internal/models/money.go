package models

import "github.com/shopspring/decimal"

// MoneyScale is the number of decimal places kept for every monetary amount.
const MoneyScale int32 = 2

// BalanceTolerance absorbs rounding when balances are compared.
var BalanceTolerance = decimal.New(1, -MoneyScale)

// RoundMoney rounds half away from zero to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// IsSettled reports whether an outstanding balance is within tolerance of zero.
func IsSettled(balance decimal.Decimal) bool {
	return balance.LessThanOrEqual(BalanceTolerance)
}

// ClampZero returns d or zero when d is negative.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
