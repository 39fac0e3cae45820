package telemetry

import (
	"math"
	"math/big"
	"strconv"
)

const (
	// PercentScale is the number of decimals kept for percentages.
	PercentScale = 2
	// GeoScale is the number of decimals kept for altitude, accuracy, speed
	// and bearing.
	GeoScale = 4
)

// RoundValue rounds value to scale decimal places, half away from zero,
// working on the shortest decimal representation of value so that 0.125
// rounds to 0.13 even though its binary form is not exact. Trailing zeros
// carry no meaning in the float result: RoundValue(12.0, 4) == 12.
func RoundValue(value float64, scale int) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) || scale < 0 {
		return value
	}

	decimal, ok := new(big.Rat).SetString(strconv.FormatFloat(math.Abs(value), 'g', -1, 64))
	if !ok {
		return value
	}

	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)
	scaled := decimal.Mul(decimal, new(big.Rat).SetInt(factor))
	scaled.Add(scaled, big.NewRat(1, 2))

	truncated := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	result, _ := new(big.Rat).SetFrac(truncated, factor).Float64()

	// Negative values that round away entirely are plain 0, never -0.
	if value < 0 && result != 0 {
		return -result
	}
	return result
}
