package utils

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatUnitsTrim renders base units as a human amount: divided by
// 10^decimals, truncated (never rounded up) to maxFrac places, trailing
// zeros removed.
//
//	amount=1234500000000000000, decimals=18 -> "1.2345"
//	amount=1000000000000000000, decimals=18 -> "1"
//	amount=1, decimals=18, maxFrac=4        -> "0"
func FormatUnitsTrim(amount *big.Int, decimals uint8, maxFrac int) string {
	if amount == nil || amount.Sign() == 0 {
		return "0"
	}
	if maxFrac < 0 {
		maxFrac = 0
	}

	d := decimal.NewFromBigInt(amount, -int32(decimals))
	return d.Truncate(int32(maxFrac)).String()
}

// FormatUnits renders base units without truncation.
func FormatUnits(amount *big.Int, decimals uint8) string {
	return FormatUnitsTrim(amount, decimals, int(decimals))
}
