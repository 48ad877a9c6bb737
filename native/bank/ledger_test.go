package bank

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/events"
	"contentchain/core/state"
	"contentchain/storage"
)

var (
	usdc      = common.HexToAddress("0x00000000000000000000000000000000000a0001")
	issuer    = common.HexToAddress("0x00000000000000000000000000000000000b0001")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000c0001")
	bob       = common.HexToAddress("0x00000000000000000000000000000000000c0002")
	newIssuer = common.HexToAddress("0x00000000000000000000000000000000000b0002")
)

func newTestLedger(t *testing.T) (*Ledger, *[]events.Event) {
	t.Helper()
	ledger := NewLedger()
	ledger.SetState(state.NewManager(storage.NewMemDB()))
	var emitted []events.Event
	ledger.SetEmitter(events.EmitterFunc(func(evt events.Event) { emitted = append(emitted, evt) }))
	if err := ledger.RegisterToken(&Token{Address: usdc, Name: "USD Coin", Symbol: "USDC", Decimals: 6, MintAuthority: issuer}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return ledger, &emitted
}

func TestRegisterTokenRejectsDuplicatesAndInvalid(t *testing.T) {
	ledger, _ := newTestLedger(t)
	if err := ledger.RegisterToken(&Token{Address: usdc, Name: "x", Symbol: "X"}); !errors.Is(err, ErrTokenExists) {
		t.Fatalf("expected ErrTokenExists, got %v", err)
	}
	if err := ledger.RegisterToken(&Token{Address: bob, Name: " ", Symbol: "X"}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if err := ledger.RegisterToken(&Token{Name: "a", Symbol: "A"}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for zero address, got %v", err)
	}
	meta, err := ledger.Token(usdc)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if meta.Symbol != "USDC" || meta.Decimals != 6 || meta.MintAuthority != issuer {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestMintRequiresAuthority(t *testing.T) {
	ledger, emitted := newTestLedger(t)
	if err := ledger.Mint(alice, usdc, alice, big.NewInt(10)); !errors.Is(err, ErrMintUnauthorized) {
		t.Fatalf("expected ErrMintUnauthorized, got %v", err)
	}
	if err := ledger.Mint(issuer, usdc, alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	supply, _ := ledger.TotalSupply(usdc)
	if supply.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("unexpected supply %s", supply)
	}
	if len(*emitted) != 2 || (*emitted)[1].EventType() != events.TypeTokenMinted {
		t.Fatalf("expected register + mint events, got %d", len(*emitted))
	}

	if err := ledger.SetMintAuthority(alice, usdc, newIssuer); !errors.Is(err, ErrMintUnauthorized) {
		t.Fatalf("expected ErrMintUnauthorized, got %v", err)
	}
	if err := ledger.SetMintAuthority(issuer, usdc, newIssuer); err != nil {
		t.Fatalf("set authority: %v", err)
	}
	if err := ledger.Mint(issuer, usdc, alice, big.NewInt(1)); !errors.Is(err, ErrMintUnauthorized) {
		t.Fatalf("old authority must lose mint rights, got %v", err)
	}
	if err := ledger.Mint(newIssuer, usdc, alice, big.NewInt(1)); err != nil {
		t.Fatalf("mint with new authority: %v", err)
	}
}

func TestTransfer(t *testing.T) {
	ledger, _ := newTestLedger(t)
	if err := ledger.Mint(issuer, usdc, alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(usdc, alice, bob, big.NewInt(101)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := ledger.Transfer(usdc, alice, bob, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := ledger.Transfer(bob, alice, bob, big.NewInt(1)); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
	if err := ledger.Transfer(usdc, bob, alice, big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer should be a no-op: %v", err)
	}
	if err := ledger.Transfer(usdc, alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	a, _ := ledger.BalanceOf(usdc, alice)
	b, _ := ledger.BalanceOf(usdc, bob)
	if a.Cmp(big.NewInt(60)) != 0 || b.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("unexpected balances alice=%s bob=%s", a, b)
	}
	if err := ledger.Transfer(usdc, alice, alice, big.NewInt(60)); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	a, _ = ledger.BalanceOf(usdc, alice)
	if a.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("self transfer changed balance: %s", a)
	}
}

type failingState struct{ err error }

func (f failingState) KVGet([]byte, interface{}) (bool, error) { return false, f.err }
func (f failingState) KVPut([]byte, interface{}) error         { return f.err }

func TestStateErrorsPropagate(t *testing.T) {
	boom := errors.New("disk on fire")
	ledger := NewLedger()
	ledger.SetState(failingState{err: boom})
	if _, err := ledger.BalanceOf(usdc, alice); !errors.Is(err, boom) {
		t.Fatalf("expected state error, got %v", err)
	}
	if err := ledger.Transfer(usdc, alice, bob, big.NewInt(1)); !errors.Is(err, boom) {
		t.Fatalf("expected state error, got %v", err)
	}

	unset := NewLedger()
	if _, err := unset.Token(usdc); !errors.Is(err, ErrNilState) {
		t.Fatalf("expected ErrNilState, got %v", err)
	}
}
