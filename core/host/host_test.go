package host

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/events"
	"contentchain/core/state"
	"contentchain/native/bank"
	"contentchain/storage"
)

var (
	token  = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	issuer = common.HexToAddress("0x0000000000000000000000000000000000001551")
	alice  = common.HexToAddress("0x0000000000000000000000000000000000000a11")
)

type fixture struct {
	db     *storage.MemDB
	host   *Host
	ledger *bank.Ledger
	sunk   []events.Event
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{db: storage.NewMemDB()}
	opts = append(opts, WithSink(events.EmitterFunc(func(evt events.Event) { f.sunk = append(f.sunk, evt) })))
	f.host = New(state.NewManager(f.db), opts...)
	f.ledger = bank.NewLedger()
	f.ledger.SetState(f.host.State())
	f.ledger.SetEmitter(f.host.Emitter())
	err := f.host.Execute(context.Background(), "bank.register", func() error {
		return f.ledger.RegisterToken(&bank.Token{Address: token, Name: "USD Coin", Symbol: "USDC", Decimals: 6, MintAuthority: issuer})
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return f
}

func (f *fixture) balance(t *testing.T) *big.Int {
	t.Helper()
	var out *big.Int
	err := f.host.View(func() error {
		var err error
		out, err = f.ledger.BalanceOf(token, alice)
		return err
	})
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return out
}

func TestExecuteCommitsStateAndEvents(t *testing.T) {
	f := newFixture(t)
	before := f.db.Len()
	err := f.host.Execute(context.Background(), "bank.mint", func() error {
		return f.ledger.Mint(issuer, token, alice, big.NewInt(5))
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if f.balance(t).Int64() != 5 {
		t.Fatalf("mint not applied")
	}
	if f.db.Len() <= before {
		t.Fatalf("commit did not reach the database")
	}
	last := f.sunk[len(f.sunk)-1]
	if last.EventType() != events.TypeTokenMinted {
		t.Fatalf("expected mint event at the sink, got %s", last.EventType())
	}
}

func TestExecuteRevertsOnError(t *testing.T) {
	f := newFixture(t)
	sunk := len(f.sunk)
	boom := errors.New("boom")
	err := f.host.Execute(context.Background(), "bank.mint", func() error {
		if err := f.ledger.Mint(issuer, token, alice, big.NewInt(5)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if f.balance(t).Sign() != 0 {
		t.Fatalf("reverted mint leaked into state")
	}
	if len(f.sunk) != sunk {
		t.Fatalf("reverted operation published events")
	}
}

func TestPausedModule(t *testing.T) {
	f := newFixture(t, WithPaused("content"))
	called := false
	err := f.host.Execute(context.Background(), "content.collect", func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrModulePaused) || called {
		t.Fatalf("expected paused rejection, got %v called=%v", err, called)
	}
	f.host.SetPaused("content", false)
	if f.host.IsPaused("content") {
		t.Fatalf("module still paused")
	}
	if err := f.host.Execute(context.Background(), "content.collect", func() error { return nil }); err != nil {
		t.Fatalf("resumed module rejected: %v", err)
	}
}

func TestViewDiscardsWrites(t *testing.T) {
	f := newFixture(t)
	err := f.host.View(func() error {
		return f.ledger.Mint(issuer, token, alice, big.NewInt(7))
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if f.balance(t).Sign() != 0 {
		t.Fatalf("view writes must not persist")
	}
	if err := f.host.Execute(context.Background(), "noop", nil); !errors.Is(err, ErrNilOperation) {
		t.Fatalf("expected ErrNilOperation, got %v", err)
	}
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	sunk := len(f.sunk)
	err := f.host.Execute(context.Background(), "content.create", func() error {
		if err := f.ledger.Mint(issuer, token, alice, big.NewInt(3)); err != nil {
			return err
		}
		panic("boom")
	})
	if !errors.Is(err, ErrOperationPanicked) {
		t.Fatalf("expected ErrOperationPanicked, got %v", err)
	}
	if len(f.sunk) != sunk {
		t.Fatalf("panicked operation published events")
	}

	// The host must stay usable: the next operation commits without blocking.
	done := make(chan error, 1)
	go func() {
		done <- f.host.Execute(context.Background(), "bank.mint", func() error {
			return f.ledger.Mint(issuer, token, alice, big.NewInt(5))
		})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("execute after panic: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("execute blocked after a recovered panic")
	}
	if got := f.balance(t).Int64(); got != 5 {
		t.Fatalf("expected only the committed mint, balance %d", got)
	}
}
