package meterbus

const (
	MinScaleFactor = -4
	MaxScaleFactor = 4
)

// Scale applies a signed power-of-ten factor to a decoded value.
// The multiplier is built by repeated multiplication so the same value is
// produced on every platform. A factor of 0 returns the value untouched.
func Scale(value float64, factor int8) float64 {
	if factor == 0 {
		return value
	}
	n := factor
	if n < 0 {
		n = -n
	}
	mult := 1.0
	for i := int8(0); i < n; i++ {
		mult *= 10
	}
	if factor > 0 {
		return value * mult
	}
	return value / mult
}

// FactorFromDivisor converts a legacy "M" divisor (1..10000) into the
// equivalent negative power-of-ten factor: M=10 -> -1, M=1000 -> -3.
// Divisors that are not exact powers of ten are truncated by the integer
// division, e.g. M=25 -> -2. This mirrors the behaviour of the firmware
// configs that still carry the field and is kept on purpose.
func FactorFromDivisor(divisor int) int8 {
	var factor int8
	for divisor > 1 {
		divisor /= 10
		factor--
	}
	return clampFactor(factor)
}

func clampFactorInt(f int) int8 {
	if f < MinScaleFactor {
		return MinScaleFactor
	}
	if f > MaxScaleFactor {
		return MaxScaleFactor
	}
	return int8(f)
}

func clampFactor(f int8) int8 {
	if f < MinScaleFactor {
		return MinScaleFactor
	}
	if f > MaxScaleFactor {
		return MaxScaleFactor
	}
	return f
}
