package dispatch

import (
	"errors"
	"strings"

	"github.com/phuchtq/iota-donation-platform/internal/domain/model"
	"github.com/shopspring/decimal"
)

// ParseAmount converts a display amount such as "1.5" into base units,
// truncating digits beyond the ninth decimal place.
func ParseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ValidationError{Field: "amount", Reason: "required"}
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Reason: "not a number"}
	}
	if !amount.IsPositive() {
		return 0, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	base, err := model.ToBaseUnits(amount)
	if errors.Is(err, model.ErrAmountOverflow) {
		return 0, &ValidationError{Field: "amount", Reason: "too large"}
	}
	if err != nil || base == 0 {
		return 0, &ValidationError{Field: "amount", Reason: "below the smallest unit"}
	}
	return base, nil
}
