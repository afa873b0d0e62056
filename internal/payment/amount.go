package payment

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// MinorUnits переводит сумму в центы.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// AmountKey сумма в центах строкой, для ключей идемпотентности шлюза.
func AmountKey(amount decimal.Decimal) string {
	return strconv.FormatInt(MinorUnits(amount), 10)
}
