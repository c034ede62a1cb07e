package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// BaseUnitDecimals is the number of decimal places between the display unit
// and the on-chain base unit (1 IOTA = 10^9 nanos).
const BaseUnitDecimals = 9

var (
	ErrAmountNotPositive = errors.New("amount must be positive")
	ErrAmountOverflow    = errors.New("amount exceeds u64 range")
)

var maxBaseUnits = decimal.NewFromUint64(math.MaxUint64)

// FromBaseUnits converts an on-chain u64 amount into display units.
func FromBaseUnits(base uint64) decimal.Decimal {
	return decimal.NewFromUint64(base).Shift(-BaseUnitDecimals)
}

// ToBaseUnits converts a display amount into base units by multiplying by
// 10^9 and truncating toward zero. Precision beyond nine decimal places is
// dropped.
func ToBaseUnits(amount decimal.Decimal) (uint64, error) {
	if !amount.IsPositive() {
		return 0, ErrAmountNotPositive
	}
	base := amount.Shift(BaseUnitDecimals).Truncate(0)
	if base.GreaterThan(maxBaseUnits) {
		return 0, fmt.Errorf("%s: %w", amount.String(), ErrAmountOverflow)
	}
	return base.BigInt().Uint64(), nil
}
