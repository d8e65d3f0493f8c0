package models

import "github.com/shopspring/decimal"

// MoneyScale число знаков после запятой в денежных колонках NUMERIC(20, 8).
const MoneyScale int32 = 8

// FitsMoneyScale сообщает, что сумма хранится без округления.
func FitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}
