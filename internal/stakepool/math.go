// =============================
// File: internal/stakepool/math.go
// =============================
package stakepool

import (
	"github.com/holiman/uint256"
)

// proportional returns floor(amount * numerator / denominator). A zero
// denominator is the bootstrap case and returns amount unchanged.
func proportional(amount, numerator, denominator uint64) (uint64, error) {
	if denominator == 0 {
		return amount, nil
	}
	// произведение двух u64 всегда помещается в 128 бит
	product := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(numerator))
	quotient := product.Div(product, uint256.NewInt(denominator))
	if !quotient.IsUint64() {
		return 0, ErrCalculationFailure
	}
	return quotient.Uint64(), nil
}

// Fee is a fraction of an amount taken by the pool owner.
type Fee struct {
	Numerator   uint64
	Denominator uint64
}

// Valid reports whether the fee does not exceed one.
func (f Fee) Valid() bool {
	return f.Numerator <= f.Denominator
}

// Apply returns floor(amount * numerator / denominator), zero when the
// denominator is zero.
func (f Fee) Apply(amount uint64) (uint64, error) {
	if f.Denominator == 0 {
		return 0, nil
	}
	return proportional(amount, f.Numerator, f.Denominator)
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrCalculationFailure
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrCalculationFailure
	}
	return a - b, nil
}
