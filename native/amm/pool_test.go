package amm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/state"
	"contentchain/native/bank"
	"contentchain/storage"
)

var (
	poolAddr = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	unit     = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	quote    = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	lp       = common.HexToAddress("0x00000000000000000000000000000000000000e3")
	burn     = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	issuer   = common.HexToAddress("0x0000000000000000000000000000000000001551")
	provider = common.HexToAddress("0x0000000000000000000000000000000000000a11")
)

func newPool(t *testing.T) (*ConstantProduct, *bank.Ledger) {
	t.Helper()
	ledger := bank.NewLedger()
	ledger.SetState(state.NewManager(storage.NewMemDB()))
	for _, tok := range []*bank.Token{
		{Address: unit, Name: "Unit", Symbol: "UNIT", Decimals: 18, MintAuthority: issuer},
		{Address: quote, Name: "Quote", Symbol: "QT", Decimals: 18, MintAuthority: issuer},
	} {
		if err := ledger.RegisterToken(tok); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	pool, err := NewConstantProduct(poolAddr, unit, quote, lp, burn, ledger)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	if err := pool.Register("Unit/Quote LP", "UNIT-QT"); err != nil {
		t.Fatalf("register lp: %v", err)
	}
	for _, tok := range []common.Address{unit, quote} {
		if err := ledger.Mint(issuer, tok, provider, big.NewInt(1_000_000_000)); err != nil {
			t.Fatalf("fund: %v", err)
		}
	}
	return pool, ledger
}

func TestNewConstantProductRejectsIdenticalTokens(t *testing.T) {
	if _, err := NewConstantProduct(poolAddr, unit, unit, lp, burn, bank.NewLedger()); !errors.Is(err, ErrIdenticalTokens) {
		t.Fatalf("expected ErrIdenticalTokens, got %v", err)
	}
	if _, err := NewConstantProduct(poolAddr, unit, quote, lp, burn, nil); !errors.Is(err, ErrNilBank) {
		t.Fatalf("expected ErrNilBank, got %v", err)
	}
}

func TestFirstProvisionMintsGeometricMean(t *testing.T) {
	pool, ledger := newPool(t)
	minted, err := pool.Provision(provider, provider, big.NewInt(4_000_000), big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if minted.Cmp(big.NewInt(2_000_000-1000)) != 0 {
		t.Fatalf("unexpected minted %s", minted)
	}
	locked, _ := ledger.BalanceOf(lp, burn)
	if locked.Cmp(MinimumLiquidity) != 0 {
		t.Fatalf("minimum liquidity not locked: %s", locked)
	}
	r0, r1, _ := pool.Reserves()
	if r0.Int64() != 4_000_000 || r1.Int64() != 1_000_000 {
		t.Fatalf("unexpected reserves %s/%s", r0, r1)
	}
	price, _ := pool.Price()
	if price.Cmp(big.NewInt(250_000_000_000_000_000)) != 0 {
		t.Fatalf("unexpected price %s", price)
	}
}

func TestSubsequentProvisionIsProportional(t *testing.T) {
	pool, _ := newPool(t)
	if _, err := pool.Provision(provider, provider, big.NewInt(4_000_000), big.NewInt(1_000_000)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	minted, err := pool.Provision(provider, provider, big.NewInt(4_000_000), big.NewInt(2_000_000))
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if minted.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf("expected the smaller side to bound minting, got %s", minted)
	}
}

func TestProvisionValidation(t *testing.T) {
	pool, _ := newPool(t)
	if _, err := pool.Provision(provider, provider, big.NewInt(0), big.NewInt(1)); !errors.Is(err, ErrInsufficientAmount) {
		t.Fatalf("expected ErrInsufficientAmount, got %v", err)
	}
	if _, err := pool.Provision(provider, provider, big.NewInt(10), big.NewInt(10)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if _, err := pool.Price(); !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("expected ErrEmptyPool, got %v", err)
	}
	if _, err := pool.Provision(provider, provider, big.NewInt(10_000_000_000), big.NewInt(10_000_000_000)); !errors.Is(err, bank.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}
