package rewarder

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
	rewarderAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	contentAddr  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	minterAddr   = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	unitToken    = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	alice        = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob          = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

const day = int64(24 * 60 * 60)

type harness struct {
	engine *Engine
	ledger *bank.Ledger
	now    int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := state.NewManager(storage.NewMemDB())
	ledger := bank.NewLedger()
	ledger.SetState(st)
	if err := ledger.RegisterToken(&bank.Token{Address: unitToken, Name: "Unit", Symbol: "UNIT", Decimals: 18, MintAuthority: minterAddr}); err != nil {
		t.Fatalf("register unit: %v", err)
	}
	h := &harness{ledger: ledger, now: 1_700_000_000}
	engine := NewEngine(rewarderAddr)
	engine.SetState(st)
	engine.SetBank(ledger)
	engine.SetNowFunc(func() int64 { return h.now })
	if err := engine.Initialize(contentAddr, []common.Address{minterAddr}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := engine.AddReward(contentAddr, unitToken); err != nil {
		t.Fatalf("add reward: %v", err)
	}
	h.engine = engine
	return h
}

func (h *harness) fund(t *testing.T, perSecond int64) *big.Int {
	t.Helper()
	amount := new(big.Int).Mul(big.NewInt(perSecond), big.NewInt(Duration))
	if err := h.ledger.Mint(minterAddr, unitToken, rewarderAddr, amount); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := h.engine.NotifyRewardAmount(minterAddr, unitToken, amount); err != nil {
		t.Fatalf("notify: %v", err)
	}
	return amount
}

func (h *harness) earned(t *testing.T, account common.Address) *big.Int {
	t.Helper()
	got, err := h.engine.Earned(account, unitToken)
	if err != nil {
		t.Fatalf("earned: %v", err)
	}
	return got
}

func TestSingleStakerEarnsWholeStream(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Deposit(contentAddr, alice, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.fund(t, 1000)
	h.now += day
	if got := h.earned(t, alice); got.Cmp(big.NewInt(day*1000)) != 0 {
		t.Fatalf("expected %d earned, got %s", day*1000, got)
	}
	h.now += 30 * day
	if got := h.earned(t, alice); got.Cmp(big.NewInt(Duration*1000)) != 0 {
		t.Fatalf("expected accrual to stop at period finish, got %s", got)
	}
}

func TestRewardsSplitByStake(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Deposit(contentAddr, alice, big.NewInt(100)); err != nil {
		t.Fatalf("deposit alice: %v", err)
	}
	if err := h.engine.Deposit(contentAddr, bob, big.NewInt(300)); err != nil {
		t.Fatalf("deposit bob: %v", err)
	}
	h.fund(t, 1000)
	h.now += day
	a := h.earned(t, alice)
	b := h.earned(t, bob)
	if a.Cmp(big.NewInt(day*250)) != 0 || b.Cmp(big.NewInt(day*750)) != 0 {
		t.Fatalf("unexpected split alice=%s bob=%s", a, b)
	}
}

func TestAccrualFrozenWhileNobodyStaked(t *testing.T) {
	h := newHarness(t)
	h.fund(t, 1000)
	h.now += day
	perToken, err := h.engine.RewardPerToken(unitToken)
	if err != nil {
		t.Fatalf("reward per token: %v", err)
	}
	if perToken.Sign() != 0 {
		t.Fatalf("expected frozen index, got %s", perToken)
	}
	if err := h.engine.Deposit(contentAddr, alice, big.NewInt(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := h.earned(t, alice); got.Sign() != 0 {
		t.Fatalf("late staker must not earn past accrual, got %s", got)
	}
	h.now += 10
	if got := h.earned(t, alice); got.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("expected 10000 after 10s, got %s", got)
	}
}

func TestWithdrawCheckpointsBeforeMutation(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Deposit(contentAddr, alice, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.fund(t, 1000)
	h.now += 100
	if err := h.engine.Withdraw(contentAddr, alice, big.NewInt(100)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	h.now += 100
	if got := h.earned(t, alice); got.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("expected earnings before withdraw to persist, got %s", got)
	}
	if err := h.engine.Withdraw(contentAddr, alice, big.NewInt(1)); !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("expected ErrInsufficientStake, got %v", err)
	}
}

func TestGetRewardPaysAccount(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Deposit(contentAddr, alice, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.fund(t, 1000)
	h.now += 50
	paid, err := h.engine.GetReward(alice)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if paid[unitToken].Cmp(big.NewInt(50_000)) != 0 {
		t.Fatalf("unexpected payout %s", paid[unitToken])
	}
	balance, _ := h.ledger.BalanceOf(unitToken, alice)
	if balance.Cmp(big.NewInt(50_000)) != 0 {
		t.Fatalf("reward not transferred to account: %s", balance)
	}
	if got := h.earned(t, alice); got.Sign() != 0 {
		t.Fatalf("pending must reset after claim, got %s", got)
	}
	paid, err = h.engine.GetReward(bob)
	if err != nil || len(paid) != 0 {
		t.Fatalf("claim with nothing earned should be empty, got %v %v", paid, err)
	}
}

func TestNotifyRules(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.NotifyRewardAmount(alice, unitToken, big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := h.engine.NotifyRewardAmount(minterAddr, bob, big.NewInt(1)); !errors.Is(err, ErrRewardTokenNotFound) {
		t.Fatalf("expected ErrRewardTokenNotFound, got %v", err)
	}
	if err := h.ledger.Mint(minterAddr, unitToken, rewarderAddr, big.NewInt(Duration-1)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := h.engine.NotifyRewardAmount(minterAddr, unitToken, big.NewInt(Duration-1)); !errors.Is(err, ErrRewardRateZero) {
		t.Fatalf("expected ErrRewardRateZero, got %v", err)
	}
	if err := h.engine.NotifyRewardAmount(minterAddr, unitToken, big.NewInt(Duration*10)); !errors.Is(err, ErrInsufficientRewardBalance) {
		t.Fatalf("expected ErrInsufficientRewardBalance, got %v", err)
	}

	first := h.fund(t, 1000)
	h.now += day
	remaining, err := h.engine.Left(unitToken)
	if err != nil {
		t.Fatalf("left: %v", err)
	}
	want := new(big.Int).Sub(first, big.NewInt(day*1000))
	if remaining.Cmp(want) != 0 {
		t.Fatalf("expected left %s, got %s", want, remaining)
	}
	if err := h.engine.NotifyRewardAmount(minterAddr, unitToken, remaining); !errors.Is(err, ErrRewardSmallerThanLeft) {
		t.Fatalf("expected ErrRewardSmallerThanLeft, got %v", err)
	}

	top := new(big.Int).Add(remaining, big.NewInt(Duration))
	if err := h.ledger.Mint(minterAddr, unitToken, rewarderAddr, top); err != nil {
		t.Fatalf("mint top-up: %v", err)
	}
	if err := h.engine.NotifyRewardAmount(minterAddr, unitToken, top); err != nil {
		t.Fatalf("notify top-up: %v", err)
	}
	data, err := h.engine.RewardData(unitToken)
	if err != nil {
		t.Fatalf("reward data: %v", err)
	}
	expectedRate := new(big.Int).Add(top, remaining)
	expectedRate.Quo(expectedRate, big.NewInt(Duration))
	if data.RewardRate.Cmp(expectedRate) != 0 {
		t.Fatalf("expected carried rate %s, got %s", expectedRate, data.RewardRate)
	}
	if data.PeriodFinish != uint64(h.now+Duration) {
		t.Fatalf("unexpected period finish %d", data.PeriodFinish)
	}
}

func TestCapabilityChecks(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Deposit(alice, alice, big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on deposit, got %v", err)
	}
	if err := h.engine.Withdraw(minterAddr, alice, big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on withdraw, got %v", err)
	}
	if err := h.engine.AddReward(contentAddr, unitToken); !errors.Is(err, ErrRewardTokenAlreadyAdded) {
		t.Fatalf("expected ErrRewardTokenAlreadyAdded, got %v", err)
	}
	if err := h.engine.AddReward(alice, bob); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on add reward, got %v", err)
	}
	if err := h.engine.Deposit(contentAddr, alice, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := h.engine.Initialize(contentAddr, nil); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestRewardTokenLimit(t *testing.T) {
	h := newHarness(t)
	for i := 1; i < MaxRewardTokens; i++ {
		token := common.BigToAddress(big.NewInt(int64(0x1000 + i)))
		if err := h.engine.AddReward(contentAddr, token); err != nil {
			t.Fatalf("add reward %d: %v", i, err)
		}
	}
	if err := h.engine.AddReward(contentAddr, common.HexToAddress("0xffff")); !errors.Is(err, ErrTooManyRewardTokens) {
		t.Fatalf("expected ErrTooManyRewardTokens, got %v", err)
	}
	tokens, err := h.engine.RewardTokens()
	if err != nil || len(tokens) != MaxRewardTokens || tokens[0] != unitToken {
		t.Fatalf("unexpected token list %v %v", tokens, err)
	}
}

func TestSupplyMatchesBalancesAndEarnedMonotonic(t *testing.T) {
	h := newHarness(t)
	h.fund(t, 7)
	accounts := []common.Address{alice, bob, contentAddr}
	ops := []struct {
		account  int
		amount   int64
		withdraw bool
	}{
		{0, 50, false}, {1, 20, false}, {0, 10, true}, {2, 5, false},
		{1, 20, true}, {0, 40, true}, {2, 100, false}, {1, 3, false},
	}
	prevEarned := make([]*big.Int, len(accounts))
	for i := range prevEarned {
		prevEarned[i] = big.NewInt(0)
	}
	for i, op := range ops {
		h.now += 333
		var err error
		if op.withdraw {
			err = h.engine.Withdraw(contentAddr, accounts[op.account], big.NewInt(op.amount))
		} else {
			err = h.engine.Deposit(contentAddr, accounts[op.account], big.NewInt(op.amount))
		}
		if err != nil {
			t.Fatalf("op %d: %v", i, err)
		}
		sum := big.NewInt(0)
		for j, account := range accounts {
			balance, _ := h.engine.BalanceOf(account)
			sum.Add(sum, balance)
			got := h.earned(t, account)
			if got.Cmp(prevEarned[j]) < 0 {
				t.Fatalf("earned decreased for account %d at op %d", j, i)
			}
			prevEarned[j] = got
		}
		supply, _ := h.engine.TotalSupply()
		if supply.Cmp(sum) != 0 {
			t.Fatalf("op %d: supply %s != sum %s", i, supply, sum)
		}
	}
}
