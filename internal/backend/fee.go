package backend

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeRate is a fee rate in satoshis per 1000 virtual bytes.
type FeeRate int64

// FeeRateFromSatPerVByte converts a sat/vB rate into a FeeRate.
func FeeRateFromSatPerVByte(satPerVByte int64) FeeRate {
	return FeeRate(satPerVByte * 1000)
}

// FeeRateFromCoinPerKB converts a node's coin/kvB estimate into a FeeRate.
func FeeRateFromCoinPerKB(rate decimal.Decimal) FeeRate {
	return FeeRate(rate.Shift(8).Ceil().IntPart())
}

// FeeForVSize returns the fee for a transaction of the given virtual size,
// rounded up.
func (r FeeRate) FeeForVSize(vsize int64) int64 {
	return (int64(r)*vsize + 999) / 1000
}

// SatPerVByte returns the rate in sat/vB.
func (r FeeRate) SatPerVByte() decimal.Decimal {
	return decimal.New(int64(r), -3)
}

func (r FeeRate) String() string {
	return fmt.Sprintf("%s sat/vB", r.SatPerVByte().String())
}
