package rewarder

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/events"
	"contentchain/core/pricing"
)

var (
	ErrNilState                  = errors.New("rewarder: state not configured")
	ErrNilBank                   = errors.New("rewarder: bank not configured")
	ErrNotInitialized            = errors.New("rewarder: not initialized")
	ErrAlreadyInitialized        = errors.New("rewarder: already initialized")
	ErrInvalidContent            = errors.New("rewarder: content identity required")
	ErrUnauthorized              = errors.New("rewarder: caller not authorized")
	ErrInvalidAmount             = errors.New("rewarder: amount must be positive")
	ErrInsufficientStake         = errors.New("rewarder: withdraw exceeds balance")
	ErrRewardTokenAlreadyAdded   = errors.New("rewarder: reward token already added")
	ErrRewardTokenNotFound       = errors.New("rewarder: reward token not registered")
	ErrTooManyRewardTokens       = errors.New("rewarder: reward token limit reached")
	ErrRewardSmallerThanLeft     = errors.New("rewarder: reward smaller than undistributed remainder")
	ErrRewardRateZero            = errors.New("rewarder: reward too small for streaming duration")
	ErrInsufficientRewardBalance = errors.New("rewarder: holdings do not cover reward stream")
)

var (
	settingsPrefix = []byte("rewarder/settings/")
	dataPrefix     = []byte("rewarder/data/")
	supplyPrefix   = []byte("rewarder/supply/")
	balancePrefix  = []byte("rewarder/balance/")
	accountPrefix  = []byte("rewarder/account/")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type tokenLedger interface {
	Transfer(token, from, to common.Address, amount *big.Int) error
	BalanceOf(token, account common.Address) (*big.Int, error)
}

// Engine streams reward tokens to stakers in proportion to their balance.
// Stake is moved only by the content engine recorded at initialization.
type Engine struct {
	addr    common.Address
	state   engineState
	bank    tokenLedger
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a rewarder bound to the supplied identity.
func NewEngine(addr common.Address) *Engine {
	return &Engine{
		addr:    addr,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// Address returns the rewarder identity. Reward holdings sit under it.
func (e *Engine) Address() common.Address { return e.addr }

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the token ledger used for reward payouts.
func (e *Engine) SetBank(bank tokenLedger) { e.bank = bank }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	now := e.nowFn()
	if now < 0 {
		return 0
	}
	return uint64(now)
}

func (e *Engine) key(prefix []byte, parts ...common.Address) []byte {
	key := append(append([]byte(nil), prefix...), e.addr.Bytes()...)
	for _, part := range parts {
		key = append(key, part.Bytes()...)
	}
	return key
}

// Initialize records the content engine allowed to move stake, the accounts
// allowed to start reward streams and the initial reward tokens.
func (e *Engine) Initialize(content common.Address, notifiers []common.Address, tokens ...common.Address) error {
	if e.state == nil {
		return ErrNilState
	}
	if content == (common.Address{}) {
		return ErrInvalidContent
	}
	ok, err := e.state.KVGet(e.key(settingsPrefix), nil)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyInitialized
	}
	settings := &Settings{
		Address:   e.addr,
		Content:   content,
		Notifiers: append([]common.Address(nil), notifiers...),
	}
	if err := e.state.KVPut(e.key(settingsPrefix), settings); err != nil {
		return err
	}
	for _, token := range tokens {
		if err := e.registerToken(settings, token); err != nil {
			return err
		}
	}
	return nil
}

// Settings returns the persisted wiring.
func (e *Engine) Settings() (*Settings, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	settings := new(Settings)
	ok, err := e.state.KVGet(e.key(settingsPrefix), settings)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return settings, nil
}

// RewardTokens lists the registered reward tokens in registration order.
func (e *Engine) RewardTokens() ([]common.Address, error) {
	settings, err := e.Settings()
	if err != nil {
		return nil, err
	}
	return settings.Tokens, nil
}

// RewardData returns the stream state of token.
func (e *Engine) RewardData(token common.Address) (*RewardData, error) {
	settings, err := e.Settings()
	if err != nil {
		return nil, err
	}
	if !settings.hasToken(token) {
		return nil, ErrRewardTokenNotFound
	}
	return e.loadData(token)
}

func (e *Engine) loadData(token common.Address) (*RewardData, error) {
	data := new(RewardData)
	if _, err := e.state.KVGet(e.key(dataPrefix, token), data); err != nil {
		return nil, err
	}
	return data.normalize(), nil
}

func (e *Engine) loadAccount(account, token common.Address) (*accountReward, error) {
	rec := new(accountReward)
	if _, err := e.state.KVGet(e.key(accountPrefix, account, token), rec); err != nil {
		return nil, err
	}
	return rec.normalize(), nil
}

// TotalSupply returns the sum of all staked balances.
func (e *Engine) TotalSupply() (*big.Int, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	supply := new(big.Int)
	if _, err := e.state.KVGet(e.key(supplyPrefix), supply); err != nil {
		return nil, err
	}
	return supply, nil
}

// BalanceOf returns the staked balance of account.
func (e *Engine) BalanceOf(account common.Address) (*big.Int, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	balance := new(big.Int)
	if _, err := e.state.KVGet(e.key(balancePrefix, account), balance); err != nil {
		return nil, err
	}
	return balance, nil
}

func lastTimeApplicable(data *RewardData, now uint64) uint64 {
	if now < data.PeriodFinish {
		return now
	}
	return data.PeriodFinish
}

func rewardPerToken(data *RewardData, supply *big.Int, now uint64) *big.Int {
	stored := new(big.Int).Set(data.RewardPerTokenStored)
	if supply.Sign() == 0 {
		return stored
	}
	last := lastTimeApplicable(data, now)
	if last <= data.LastUpdateTime {
		return stored
	}
	delta := new(big.Int).SetUint64(last - data.LastUpdateTime)
	delta.Mul(delta, data.RewardRate)
	delta.Mul(delta, pricing.Precision)
	delta.Quo(delta, supply)
	return stored.Add(stored, delta)
}

func earned(balance, perToken *big.Int, rec *accountReward) *big.Int {
	out := new(big.Int).Sub(perToken, rec.Paid)
	out.Mul(out, balance)
	out.Quo(out, pricing.Precision)
	return out.Add(out, rec.Pending)
}

// RewardPerToken returns the accrued reward per staked unit scaled by 1e18.
func (e *Engine) RewardPerToken(token common.Address) (*big.Int, error) {
	data, err := e.RewardData(token)
	if err != nil {
		return nil, err
	}
	supply, err := e.TotalSupply()
	if err != nil {
		return nil, err
	}
	return rewardPerToken(data, supply, e.now()), nil
}

// Earned returns the claimable reward of account in token.
func (e *Engine) Earned(account, token common.Address) (*big.Int, error) {
	perToken, err := e.RewardPerToken(token)
	if err != nil {
		return nil, err
	}
	balance, err := e.BalanceOf(account)
	if err != nil {
		return nil, err
	}
	rec, err := e.loadAccount(account, token)
	if err != nil {
		return nil, err
	}
	return earned(balance, perToken, rec), nil
}

// Left returns the part of the current stream that has not been distributed yet.
func (e *Engine) Left(token common.Address) (*big.Int, error) {
	data, err := e.RewardData(token)
	if err != nil {
		return nil, err
	}
	return left(data, e.now()), nil
}

func left(data *RewardData, now uint64) *big.Int {
	if now >= data.PeriodFinish {
		return big.NewInt(0)
	}
	remaining := new(big.Int).SetUint64(data.PeriodFinish - now)
	return remaining.Mul(remaining, data.RewardRate)
}

// checkpoint settles every reward stream up to now and, when account is
// non-nil, moves the account's accrual into its pending balance.
func (e *Engine) checkpoint(settings *Settings, account *common.Address) error {
	now := e.now()
	supply, err := e.TotalSupply()
	if err != nil {
		return err
	}
	var balance *big.Int
	if account != nil {
		if balance, err = e.BalanceOf(*account); err != nil {
			return err
		}
	}
	for _, token := range settings.Tokens {
		data, err := e.loadData(token)
		if err != nil {
			return err
		}
		data.RewardPerTokenStored = rewardPerToken(data, supply, now)
		data.LastUpdateTime = lastTimeApplicable(data, now)
		if err := e.state.KVPut(e.key(dataPrefix, token), data); err != nil {
			return err
		}
		if account == nil {
			continue
		}
		rec, err := e.loadAccount(*account, token)
		if err != nil {
			return err
		}
		rec.Pending = earned(balance, data.RewardPerTokenStored, rec)
		rec.Paid = new(big.Int).Set(data.RewardPerTokenStored)
		if err := e.state.KVPut(e.key(accountPrefix, *account, token), rec); err != nil {
			return err
		}
	}
	return nil
}

// AddReward registers a new reward token. Only the content engine may call it.
func (e *Engine) AddReward(caller, token common.Address) error {
	settings, err := e.Settings()
	if err != nil {
		return err
	}
	if caller != settings.Content {
		return ErrUnauthorized
	}
	return e.registerToken(settings, token)
}

func (e *Engine) registerToken(settings *Settings, token common.Address) error {
	if settings.hasToken(token) {
		return ErrRewardTokenAlreadyAdded
	}
	if len(settings.Tokens) >= MaxRewardTokens {
		return ErrTooManyRewardTokens
	}
	settings.Tokens = append(settings.Tokens, token)
	if err := e.state.KVPut(e.key(settingsPrefix), settings); err != nil {
		return err
	}
	data := (&RewardData{}).normalize()
	data.LastUpdateTime = e.now()
	if err := e.state.KVPut(e.key(dataPrefix, token), data); err != nil {
		return err
	}
	e.emitter.Emit(events.RewardTokenAdded{Rewarder: e.addr, Token: token})
	return nil
}

// Deposit credits stake to account. Only the content engine may call it.
func (e *Engine) Deposit(caller, account common.Address, amount *big.Int) error {
	return e.moveStake(caller, account, amount, false)
}

// Withdraw removes stake from account. Only the content engine may call it.
func (e *Engine) Withdraw(caller, account common.Address, amount *big.Int) error {
	return e.moveStake(caller, account, amount, true)
}

func (e *Engine) moveStake(caller, account common.Address, amount *big.Int, withdraw bool) error {
	settings, err := e.Settings()
	if err != nil {
		return err
	}
	if caller != settings.Content {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := e.BalanceOf(account)
	if err != nil {
		return err
	}
	if withdraw && balance.Cmp(amount) < 0 {
		return ErrInsufficientStake
	}
	if err := e.checkpoint(settings, &account); err != nil {
		return err
	}
	supply, err := e.TotalSupply()
	if err != nil {
		return err
	}
	if withdraw {
		balance.Sub(balance, amount)
		supply.Sub(supply, amount)
	} else {
		balance.Add(balance, amount)
		supply.Add(supply, amount)
	}
	if err := e.state.KVPut(e.key(balancePrefix, account), balance); err != nil {
		return err
	}
	if err := e.state.KVPut(e.key(supplyPrefix), supply); err != nil {
		return err
	}
	e.emitter.Emit(events.RewardStakeChanged{
		Rewarder:    e.addr,
		Account:     account,
		Amount:      new(big.Int).Set(amount),
		Balance:     balance,
		TotalSupply: supply,
		Withdrawn:   withdraw,
	})
	return nil
}

// NotifyRewardAmount starts a new stream of amount over Duration. The tokens
// must already be held by the rewarder. When a stream is still running its
// undistributed remainder is folded into the new rate.
func (e *Engine) NotifyRewardAmount(caller, token common.Address, amount *big.Int) error {
	if e.bank == nil {
		return ErrNilBank
	}
	settings, err := e.Settings()
	if err != nil {
		return err
	}
	if !settings.canNotify(caller) {
		return ErrUnauthorized
	}
	if !settings.hasToken(token) {
		return ErrRewardTokenNotFound
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	now := e.now()
	data, err := e.loadData(token)
	if err != nil {
		return err
	}
	remainder := left(data, now)
	if amount.Cmp(remainder) <= 0 {
		return ErrRewardSmallerThanLeft
	}
	duration := big.NewInt(Duration)
	rate := new(big.Int).Add(amount, remainder)
	rate.Quo(rate, duration)
	if rate.Sign() == 0 {
		return ErrRewardRateZero
	}
	holdings, err := e.bank.BalanceOf(token, e.addr)
	if err != nil {
		return err
	}
	if new(big.Int).Mul(rate, duration).Cmp(holdings) > 0 {
		return ErrInsufficientRewardBalance
	}
	if err := e.checkpoint(settings, nil); err != nil {
		return err
	}
	data, err = e.loadData(token)
	if err != nil {
		return err
	}
	data.RewardRate = rate
	data.LastUpdateTime = now
	data.PeriodFinish = now + uint64(Duration)
	if err := e.state.KVPut(e.key(dataPrefix, token), data); err != nil {
		return err
	}
	e.emitter.Emit(events.RewardNotified{
		Rewarder:     e.addr,
		Notifier:     caller,
		Token:        token,
		Amount:       new(big.Int).Set(amount),
		RewardRate:   new(big.Int).Set(rate),
		PeriodFinish: data.PeriodFinish,
	})
	return nil
}

// GetReward pays every pending reward of account to account. Anyone may
// trigger it; funds never flow to the caller.
func (e *Engine) GetReward(account common.Address) (map[common.Address]*big.Int, error) {
	if e.bank == nil {
		return nil, ErrNilBank
	}
	settings, err := e.Settings()
	if err != nil {
		return nil, err
	}
	if err := e.checkpoint(settings, &account); err != nil {
		return nil, err
	}
	paid := make(map[common.Address]*big.Int, len(settings.Tokens))
	for _, token := range settings.Tokens {
		rec, err := e.loadAccount(account, token)
		if err != nil {
			return nil, err
		}
		if rec.Pending.Sign() == 0 {
			continue
		}
		reward := new(big.Int).Set(rec.Pending)
		rec.Pending = big.NewInt(0)
		if err := e.state.KVPut(e.key(accountPrefix, account, token), rec); err != nil {
			return nil, err
		}
		if err := e.bank.Transfer(token, e.addr, account, reward); err != nil {
			return nil, err
		}
		paid[token] = reward
		e.emitter.Emit(events.RewardPaid{Rewarder: e.addr, Account: account, Token: token, Amount: reward})
	}
	return paid, nil
}
