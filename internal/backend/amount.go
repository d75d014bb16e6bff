package backend

import "github.com/shopspring/decimal"

// ToSatoshis converts a node's decimal coin amount into satoshis.
func ToSatoshis(amount decimal.Decimal) int64 {
	return amount.Shift(8).Round(0).IntPart()
}

// FromSatoshis converts satoshis into the decimal coin amount a node expects.
func FromSatoshis(sats int64) decimal.Decimal {
	return decimal.New(sats, -8)
}
