// Package fixedpoint converts prices between float64 and the scaled integer form
// used by the archive codec.
//
// A value at scale s is round_half_even(price × 10^s). Rounding is applied to the
// shortest decimal representation of the float, so 1.005 at scale 2 is treated as
// the decimal 1.005 (and rounds to 100), not as its binary approximation
// 1.00499999999999989… Results are identical on every platform.
//
// Every fixed-point value must fit in a signed 32-bit field; larger magnitudes fail
// with ErrPrecisionOverflow.
package fixedpoint

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MaxScale is the largest supported decimal exponent.
const MaxScale = 9

// ErrPrecisionOverflow is returned when a price cannot be represented at the requested scale.
var ErrPrecisionOverflow = errors.New("precision overflow")

var (
	minFixed = decimal.NewFromInt(math.MinInt32)
	maxFixed = decimal.NewFromInt(math.MaxInt32)
)

var pow10 = [MaxScale + 1]float64{1, 1e1, 1e2, 1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9}

// ToFixed scales price by 10^scale and rounds half to even.
func ToFixed(price float64, scale uint8) (int64, error) {
	if err := checkScale(scale); err != nil {
		return 0, err
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%w: %v is not a finite price", ErrPrecisionOverflow, price)
	}
	// Reject obviously out-of-range magnitudes before building a big decimal.
	if math.Abs(price)*pow10[scale] > 2*math.MaxInt32 {
		return 0, overflowError(decimal.NewFromFloat(price), scale)
	}
	return ToFixedDecimal(decimal.NewFromFloat(price), scale)
}

// ToFixedDecimal is the exact variant of ToFixed for prices that are already decimals,
// e.g. parsed from text.
func ToFixedDecimal(price decimal.Decimal, scale uint8) (int64, error) {
	if err := checkScale(scale); err != nil {
		return 0, err
	}
	scaled := price.Shift(int32(scale)).RoundBank(0)
	if scaled.LessThan(minFixed) || scaled.GreaterThan(maxFixed) {
		return 0, overflowError(price, scale)
	}
	return scaled.IntPart(), nil
}

// FromFixed converts a scaled integer back to the nearest float64.
// scale must not exceed MaxScale.
func FromFixed(v int64, scale uint8) float64 {
	return float64(v) / pow10[scale]
}

// FromFixedDecimal converts a scaled integer back to an exact decimal.
func FromFixedDecimal(v int64, scale uint8) decimal.Decimal {
	return decimal.New(v, -int32(scale))
}

// MaxPrice returns the largest price representable at scale.
func MaxPrice(scale uint8) float64 {
	return FromFixed(math.MaxInt32, scale)
}

func checkScale(scale uint8) error {
	if scale > MaxScale {
		return fmt.Errorf("%w: scale %d exceeds maximum %d", ErrPrecisionOverflow, scale, MaxScale)
	}
	return nil
}

func overflowError(price decimal.Decimal, scale uint8) error {
	return fmt.Errorf("%w: %s does not fit a 32-bit field at scale %d (max %s)",
		ErrPrecisionOverflow, price.String(), scale, FromFixedDecimal(math.MaxInt32, scale).String())
}
