package pricing

import (
	"math/big"
	"testing"
)

const day = int64(24 * 60 * 60)

func TestDecayLinear(t *testing.T) {
	init := big.NewInt(1_000_000)
	cases := []struct {
		name    string
		elapsed int64
		want    int64
	}{
		{"start", 0, 1_000_000},
		{"half", day / 2, 500_000},
		{"quarter left", 3 * day / 4, 250_000},
		{"end", day, 0},
		{"after end", 2 * day, 0},
		{"clock skew", -10, 1_000_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decay(init, 100, 100+tc.elapsed, day)
			if got.Cmp(big.NewInt(tc.want)) != 0 {
				t.Fatalf("decay after %d: got %s want %d", tc.elapsed, got, tc.want)
			}
		})
	}
}

func TestDecayTruncatesTowardZero(t *testing.T) {
	got := Decay(big.NewInt(10), 0, 1, 3)
	// 10 * 2 / 3 = 6.66
	if got.Cmp(big.NewInt(6)) != 0 {
		t.Fatalf("expected 6, got %s", got)
	}
}

func TestDecayStrictlyDecreasingAndBounded(t *testing.T) {
	init := new(big.Int).Set(AbsMaxInitPrice)
	period := int64(3600)
	prev := new(big.Int).Add(init, big.NewInt(1))
	for elapsed := int64(0); elapsed < period; elapsed += 37 {
		price := Decay(init, 0, elapsed, period)
		if price.Sign() < 0 || price.Cmp(init) > 0 {
			t.Fatalf("price out of bounds at %d: %s", elapsed, price)
		}
		if price.Cmp(prev) >= 0 {
			t.Fatalf("price not strictly decreasing at %d", elapsed)
		}
		prev = price
	}
	if Decay(init, 0, period, period).Sign() != 0 {
		t.Fatalf("expected zero at period end")
	}
}

func TestMulDiv(t *testing.T) {
	mult := new(big.Int).Mul(big.NewInt(15), new(big.Int).Div(Precision, big.NewInt(10)))
	got, err := MulDiv(big.NewInt(2_000_000), mult, Precision)
	if err != nil {
		t.Fatalf("muldiv: %v", err)
	}
	if got.Cmp(big.NewInt(3_000_000)) != 0 {
		t.Fatalf("expected 3000000, got %s", got)
	}
	if _, err := MulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(0)); err != ErrDivisionByZero {
		t.Fatalf("expected division by zero, got %v", err)
	}
	if _, err := MulDiv(big.NewInt(-1), big.NewInt(1), big.NewInt(1)); err != ErrNegative {
		t.Fatalf("expected negative error, got %v", err)
	}
	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	if _, err := MulDiv(huge, huge, big.NewInt(1)); err != ErrOverflow {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestClampAndMax(t *testing.T) {
	lo, hi := big.NewInt(10), big.NewInt(20)
	if Clamp(big.NewInt(5), lo, hi).Cmp(lo) != 0 {
		t.Fatalf("expected clamp to low bound")
	}
	if Clamp(big.NewInt(25), lo, hi).Cmp(hi) != 0 {
		t.Fatalf("expected clamp to high bound")
	}
	if Clamp(big.NewInt(15), nil, nil).Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("expected passthrough")
	}
	if Max(big.NewInt(3), nil).Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("unexpected max")
	}
}
