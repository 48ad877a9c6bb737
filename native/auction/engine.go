package auction

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/events"
)

var (
	ErrNilState           = errors.New("auction: state not configured")
	ErrNilBank            = errors.New("auction: bank not configured")
	ErrNotInitialized     = errors.New("auction: not initialized")
	ErrAlreadyInitialized = errors.New("auction: already initialized")
	ErrInvalidRecipient   = errors.New("auction: recipient must not be zero")
	ErrEmptyAssets        = errors.New("auction: asset list empty")
	ErrEpochMismatch      = errors.New("auction: epoch id mismatch")
	ErrExpired            = errors.New("auction: deadline passed")
	ErrMaxPriceExceeded   = errors.New("auction: price exceeds max payment")
)

var statePrefix = []byte("auction/state/")

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type tokenLedger interface {
	Transfer(token, from, to common.Address, amount *big.Int) error
	BalanceOf(token, account common.Address) (*big.Int, error)
}

// Engine sells whatever the auction identity holds for the payment token
// through a repeating Dutch auction.
type Engine struct {
	addr    common.Address
	state   engineState
	bank    tokenLedger
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs an auction bound to the supplied identity.
func NewEngine(addr common.Address) *Engine {
	return &Engine{
		addr:    addr,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// Address returns the auction identity. Treasury fees accumulate under it.
func (e *Engine) Address() common.Address { return e.addr }

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the token ledger.
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

func (e *Engine) now() int64 {
	now := e.nowFn()
	if now < 0 {
		return 0
	}
	return now
}

func (e *Engine) key() []byte {
	return append(append([]byte(nil), statePrefix...), e.addr.Bytes()...)
}

// Initialize validates cfg and opens epoch zero at the current time. A zero
// payment receiver routes payments to BurnAddress.
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
	receiver := cfg.PaymentReceiver
	if receiver == (common.Address{}) {
		receiver = BurnAddress
	}
	st := &State{
		Address:         e.addr,
		PaymentToken:    cfg.PaymentToken,
		PaymentReceiver: receiver,
		InitPrice:       new(big.Int).Set(cfg.InitPrice),
		StartTime:       uint64(e.now()),
		EpochPeriod:     uint64(cfg.EpochPeriod),
		PriceMultiplier: new(big.Int).Set(cfg.PriceMultiplier),
		MinInitPrice:    new(big.Int).Set(cfg.MinInitPrice),
	}
	return e.state.KVPut(e.key(), st)
}

// State returns the persisted auction record.
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
	if st.InitPrice == nil {
		st.InitPrice = big.NewInt(0)
	}
	return st, nil
}

// GetPrice returns the current asking price of the whole basket.
func (e *Engine) GetPrice() (*big.Int, error) {
	st, err := e.State()
	if err != nil {
		return nil, err
	}
	return st.Price(e.now()), nil
}

// Buy pays the current price from caller to the payment receiver and sends
// the auction's full balance of every listed asset to to. Assets the auction
// holds none of are skipped.
func (e *Engine) Buy(caller common.Address, assets []common.Address, to common.Address, expectedEpochID uint64, deadline int64, maxPayment *big.Int) (*Receipt, error) {
	if e.bank == nil {
		return nil, ErrNilBank
	}
	if to == (common.Address{}) {
		return nil, ErrInvalidRecipient
	}
	if len(assets) == 0 {
		return nil, ErrEmptyAssets
	}
	st, err := e.State()
	if err != nil {
		return nil, err
	}
	if expectedEpochID != st.EpochID {
		return nil, ErrEpochMismatch
	}
	now := e.now()
	if now > deadline {
		return nil, ErrExpired
	}
	price := st.Price(now)
	if maxPayment == nil || price.Cmp(maxPayment) > 0 {
		return nil, ErrMaxPriceExceeded
	}

	if err := e.bank.Transfer(st.PaymentToken, caller, st.PaymentReceiver, price); err != nil {
		return nil, err
	}
	transferred := make(map[common.Address]*big.Int, len(assets))
	for _, asset := range assets {
		balance, err := e.bank.BalanceOf(asset, e.addr)
		if err != nil {
			return nil, err
		}
		if balance.Sign() == 0 {
			continue
		}
		if err := e.bank.Transfer(asset, e.addr, to, balance); err != nil {
			return nil, err
		}
		if prev, ok := transferred[asset]; ok {
			balance = new(big.Int).Add(prev, balance)
		}
		transferred[asset] = balance
	}

	next := st.NextInitPrice()
	st.EpochID++
	st.InitPrice = next
	st.StartTime = uint64(now)
	if err := e.state.KVPut(e.key(), st); err != nil {
		return nil, err
	}

	e.emitter.Emit(events.AuctionBuy{
		Auction:       e.addr,
		Buyer:         caller,
		To:            to,
		EpochID:       st.EpochID,
		Payment:       new(big.Int).Set(price),
		PaymentToken:  st.PaymentToken,
		Receiver:      st.PaymentReceiver,
		Assets:        append([]common.Address(nil), assets...),
		NextInitPrice: new(big.Int).Set(next),
	})
	return &Receipt{
		EpochID:       st.EpochID,
		Payment:       price,
		Transferred:   transferred,
		NextInitPrice: next,
	}, nil
}
