package content

import (
	"math/big"
	"testing"
)

func TestFeeBpsSumToDenominator(t *testing.T) {
	if OwnerFeeBps+TreasuryFeeBps+CreatorFeeBps+TeamFeeBps+ProtocolFeeBps != BpsDenominator {
		t.Fatalf("fee split does not sum to %d bps", BpsDenominator)
	}
}

func TestSplitOneUSDC(t *testing.T) {
	split := SplitPrice(big.NewInt(1_000_000))
	want := map[string]int64{"owner": 800_000, "treasury": 150_000, "creator": 30_000, "team": 10_000, "protocol": 10_000}
	got := map[string]*big.Int{"owner": split.Owner, "treasury": split.Treasury, "creator": split.Creator, "team": split.Team, "protocol": split.Protocol}
	for name, amount := range want {
		if got[name].Cmp(big.NewInt(amount)) != 0 {
			t.Fatalf("%s share: got %s want %d", name, got[name], amount)
		}
	}
	if split.Total().Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("split does not conserve price")
	}
}

func TestSplitConservesEveryPrice(t *testing.T) {
	for p := int64(0); p < 5000; p++ {
		price := big.NewInt(p)
		split := SplitPrice(price)
		if split.Total().Cmp(price) != 0 {
			t.Fatalf("price %d: shares sum to %s", p, split.Total())
		}
		if split.Treasury.Sign() < 0 {
			t.Fatalf("price %d: negative treasury share", p)
		}
	}
	odd := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 193), big.NewInt(7))
	if SplitPrice(odd).Total().Cmp(odd) != 0 {
		t.Fatalf("large price not conserved")
	}
}

func TestSplitTreasuryAbsorbsTruncation(t *testing.T) {
	// 99 * 8000 / 10000 = 79, 99 * 300 / 10000 = 2, 99 * 100 / 10000 = 0.
	split := SplitPrice(big.NewInt(99))
	if split.Owner.Int64() != 79 || split.Creator.Int64() != 2 || split.Team.Int64() != 0 || split.Protocol.Int64() != 0 {
		t.Fatalf("unexpected truncated shares: %+v", split)
	}
	if split.Treasury.Int64() != 18 {
		t.Fatalf("treasury should absorb remainder, got %s", split.Treasury)
	}
}
