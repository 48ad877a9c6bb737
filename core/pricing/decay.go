// Package pricing holds the fixed-point helpers shared by the collection
// engine and the treasury auction.
package pricing

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// Precision is the fixed-point scale used for multipliers and reward indices.
	Precision = big.NewInt(1_000_000_000_000_000_000)
	// AbsMaxInitPrice bounds every Dutch-auction starting price (2^192 - 1).
	AbsMaxInitPrice = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 192), big.NewInt(1))

	// ErrOverflow is returned when an intermediate product does not fit in 256 bits.
	ErrOverflow = errors.New("pricing: 256-bit overflow")
	// ErrNegative is returned for negative operands.
	ErrNegative = errors.New("pricing: negative operand")
	// ErrDivisionByZero is returned when the divisor is zero.
	ErrDivisionByZero = errors.New("pricing: division by zero")
)

func toWord(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, ErrNegative
	}
	word, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrOverflow
	}
	return word, nil
}

// MulDiv returns floor(a*b/d) computed with a 512-bit intermediate.
func MulDiv(a, b, d *big.Int) (*big.Int, error) {
	x, err := toWord(a)
	if err != nil {
		return nil, err
	}
	y, err := toWord(b)
	if err != nil {
		return nil, err
	}
	den, err := toWord(d)
	if err != nil {
		return nil, err
	}
	if den.IsZero() {
		return nil, ErrDivisionByZero
	}
	out, overflow := new(uint256.Int).MulDivOverflow(x, y, den)
	if overflow {
		return nil, ErrOverflow
	}
	return out.ToBig(), nil
}

// Decay returns the linearly decayed price of a Dutch auction that started at
// startTime with initPrice and reaches zero after period seconds. The result is
// truncated toward zero and always lies in [0, initPrice].
func Decay(initPrice *big.Int, startTime, now, period int64) *big.Int {
	if initPrice == nil || initPrice.Sign() <= 0 || period <= 0 {
		return big.NewInt(0)
	}
	elapsed := now - startTime
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= period {
		return big.NewInt(0)
	}
	price, err := MulDiv(initPrice, big.NewInt(period-elapsed), big.NewInt(period))
	if err != nil {
		// Only reachable for prices beyond 256 bits; fall back to big.Int math.
		price = new(big.Int).Mul(initPrice, big.NewInt(period-elapsed))
		price.Quo(price, big.NewInt(period))
	}
	return price
}

// Clamp bounds v to [lo, hi]. A nil bound is ignored.
func Clamp(v, lo, hi *big.Int) *big.Int {
	out := new(big.Int)
	if v != nil {
		out.Set(v)
	}
	if lo != nil && out.Cmp(lo) < 0 {
		out.Set(lo)
	}
	if hi != nil && out.Cmp(hi) > 0 {
		out.Set(hi)
	}
	return out
}

// Max returns a copy of the larger operand.
func Max(a, b *big.Int) *big.Int {
	if a == nil {
		a = big.NewInt(0)
	}
	if b == nil {
		b = big.NewInt(0)
	}
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
