package payment

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a human token amount to base units:
// round(human * 10^decimals), half away from zero.
// Non-positive results and values above uint64 are rejected.
func ToBaseUnits(human string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(human))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, human)
	}
	return DecimalToBaseUnits(d, decimals)
}

// DecimalToBaseUnits is ToBaseUnits for an already parsed amount.
func DecimalToBaseUnits(d decimal.Decimal, decimals uint8) (uint64, error) {
	if d.Sign() <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, d.String())
	}

	scaled := d.Shift(int32(decimals)).Round(0)
	if scaled.Sign() <= 0 {
		return 0, fmt.Errorf("%w: %s is below one base unit", ErrInvalidAmount, d.String())
	}

	units := scaled.BigInt()
	if !units.IsUint64() {
		return 0, fmt.Errorf("%w: %s overflows base units", ErrInvalidAmount, d.String())
	}
	return units.Uint64(), nil
}
