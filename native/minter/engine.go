package minter

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/events"
	"contentchain/native/rewarder"
)

var (
	ErrNilState           = errors.New("minter: state not configured")
	ErrNilDependencies    = errors.New("minter: bank or rewarder not configured")
	ErrNotInitialized     = errors.New("minter: not initialized")
	ErrAlreadyInitialized = errors.New("minter: already initialized")
)

var statePrefix = []byte("minter/state/")

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type unitMinter interface {
	Mint(caller, token, to common.Address, amount *big.Int) error
}

type rewardNotifier interface {
	Left(token common.Address) (*big.Int, error)
	NotifyRewardAmount(caller, token common.Address, amount *big.Int) error
}

// Engine is the emission scheduler of one channel. It holds the unit mint
// authority and feeds the channel rewarder once per window.
type Engine struct {
	addr     common.Address
	state    engineState
	bank     unitMinter
	rewarder rewardNotifier
	emitter  events.Emitter
	nowFn    func() int64
}

// NewEngine constructs a scheduler bound to the supplied identity.
func NewEngine(addr common.Address) *Engine {
	return &Engine{
		addr:    addr,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// Address returns the scheduler identity.
func (e *Engine) Address() common.Address { return e.addr }

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the ledger used to mint emissions.
func (e *Engine) SetBank(bank unitMinter) { e.bank = bank }

// SetRewarder configures the rewarder notified after each mint.
func (e *Engine) SetRewarder(r rewardNotifier) { e.rewarder = r }

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

func (e *Engine) key() []byte {
	return append(append([]byte(nil), statePrefix...), e.addr.Bytes()...)
}

// Initialize validates cfg and records the launch time. The first window is
// aligned down to a multiple of the halving period.
func (e *Engine) Initialize(cfg Config) error {
	if e.state == nil {
		return ErrNilState
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ok, err := e.state.KVGet(e.key(), nil)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyInitialized
	}
	now := e.now()
	period := uint64(cfg.HalvingPeriod)
	st := &State{
		Address:       e.addr,
		Unit:          cfg.Unit,
		Rewarder:      cfg.Rewarder,
		InitialRate:   new(big.Int).Set(cfg.InitialRate),
		FloorRate:     new(big.Int).Set(cfg.FloorRate),
		HalvingPeriod: period,
		LaunchTime:    now,
		ActivePeriod:  now / period * period,
		Pending:       big.NewInt(0),
	}
	return e.state.KVPut(e.key(), st)
}

// State returns the persisted emission state.
func (e *Engine) State() (*State, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	st := new(State)
	ok, err := e.state.KVGet(e.key(), st)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	if st.Pending == nil {
		st.Pending = big.NewInt(0)
	}
	return st, nil
}

// GetCurrentRate returns the emission rate in units per second at now.
func (e *Engine) GetCurrentRate() (*big.Int, error) {
	st, err := e.State()
	if err != nil {
		return nil, err
	}
	return st.RateAt(e.now()), nil
}

// WeeklyEmission returns the amount a window mint would produce at now.
func (e *Engine) WeeklyEmission() (*big.Int, error) {
	st, err := e.State()
	if err != nil {
		return nil, err
	}
	return st.EmissionAt(e.now()), nil
}

// UpdatePeriod mints the current window's emission into the rewarder when a
// new window has opened and returns the minted amount. Calls inside an
// already minted window are no-ops that return zero.
//
// When the rewarder cannot start a new stream (the amount does not exceed
// its undistributed remainder or is too small to stream) the tokens stay in
// the rewarder and are offered again on the next window.
func (e *Engine) UpdatePeriod() (*big.Int, error) {
	if e.bank == nil || e.rewarder == nil {
		return nil, ErrNilDependencies
	}
	st, err := e.State()
	if err != nil {
		return nil, err
	}
	now := e.now()
	if now < st.ActivePeriod+st.HalvingPeriod {
		return big.NewInt(0), nil
	}
	rate := st.RateAt(now)
	amount := st.EmissionAt(now)
	if err := e.bank.Mint(e.addr, st.Unit, st.Rewarder, amount); err != nil {
		return nil, err
	}
	total := new(big.Int).Add(st.Pending, amount)
	remainder, err := e.rewarder.Left(st.Unit)
	if err != nil {
		return nil, err
	}
	notified := false
	if total.Cmp(remainder) > 0 {
		err := e.rewarder.NotifyRewardAmount(e.addr, st.Unit, total)
		switch {
		case err == nil:
			notified = true
		case errors.Is(err, rewarder.ErrRewardRateZero), errors.Is(err, rewarder.ErrRewardSmallerThanLeft):
		default:
			return nil, err
		}
	}
	if notified {
		st.Pending = big.NewInt(0)
	} else {
		st.Pending = total
	}
	st.ActivePeriod = now / st.HalvingPeriod * st.HalvingPeriod
	st.LastMintedAt = now
	if err := e.state.KVPut(e.key(), st); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.EmissionMinted{
		Minter:       e.addr,
		Rewarder:     st.Rewarder,
		Token:        st.Unit,
		Amount:       new(big.Int).Set(amount),
		Rate:         rate,
		ActivePeriod: st.ActivePeriod,
		Notified:     notified,
		Pending:      new(big.Int).Set(st.Pending),
	})
	return amount, nil
}
