package content

import (
	"encoding/binary"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/events"
	"contentchain/core/pricing"
)

var (
	ErrNilState              = errors.New("content: state not configured")
	ErrNilDependencies       = errors.New("content: bank or rewarder not configured")
	ErrNotInitialized        = errors.New("content: not initialized")
	ErrAlreadyInitialized    = errors.New("content: already initialized")
	ErrInvalidRecipient      = errors.New("content: recipient must not be zero")
	ErrInvalidURI            = errors.New("content: uri must not be empty")
	ErrInvalidOwner          = errors.New("content: owner must not be zero")
	ErrInvalidPaymentToken   = errors.New("content: payment token required")
	ErrInvalidRewarder       = errors.New("content: rewarder identity required")
	ErrInvalidTreasury       = errors.New("content: treasury must not be zero")
	ErrZeroFloorPrice        = errors.New("content: floor price must be positive")
	ErrFloorPriceExceedsMax  = errors.New("content: floor price exceeds maximum")
	ErrEpochPeriodOutOfRange = errors.New("content: epoch period out of range")
	ErrItemNotFound          = errors.New("content: item not found")
	ErrNotApproved           = errors.New("content: item not approved")
	ErrExpired               = errors.New("content: deadline passed")
	ErrEpochMismatch         = errors.New("content: epoch id mismatch")
	ErrMaxPriceExceeded      = errors.New("content: price exceeds max price")
	ErrAlreadyApproved       = errors.New("content: item already approved")
	ErrNotModerator          = errors.New("content: caller is not owner or moderator")
	ErrNotOwner              = errors.New("content: caller is not the owner")
	ErrTransferDisabled      = errors.New("content: transfers are disabled")
	ErrNothingToClaim        = errors.New("content: nothing to claim")
)

var (
	settingsPrefix  = []byte("content/settings/")
	itemPrefix      = []byte("content/item/")
	moderatorPrefix = []byte("content/moderator/")
	claimablePrefix = []byte("content/claimable/")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type tokenLedger interface {
	Transfer(token, from, to common.Address, amount *big.Int) error
}

type stakeLedger interface {
	Deposit(caller, account common.Address, amount *big.Int) error
	Withdraw(caller, account common.Address, amount *big.Int) error
	AddReward(caller, token common.Address) error
}

// Engine runs the perpetual Dutch auction of every content item in one
// channel. Payments are held under the engine identity until they are routed
// to fee recipients or claimed.
type Engine struct {
	addr     common.Address
	state    engineState
	bank     tokenLedger
	rewarder stakeLedger
	emitter  events.Emitter
	nowFn    func() int64
}

// NewEngine constructs a collection engine bound to the supplied identity.
func NewEngine(addr common.Address) *Engine {
	return &Engine{
		addr:    addr,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// Address returns the engine identity.
func (e *Engine) Address() common.Address { return e.addr }

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the ledger used to move payment tokens.
func (e *Engine) SetBank(bank tokenLedger) { e.bank = bank }

// SetRewarder configures the accumulator that tracks collector stake.
func (e *Engine) SetRewarder(r stakeLedger) { e.rewarder = r }

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

func (e *Engine) key(prefix []byte, suffix []byte) []byte {
	key := append(append([]byte(nil), prefix...), e.addr.Bytes()...)
	return append(key, suffix...)
}

func tokenIDBytes(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

// Validate checks cfg without touching state.
func (cfg Config) Validate() error {
	if cfg.Owner == (common.Address{}) {
		return ErrInvalidOwner
	}
	if cfg.PaymentToken == (common.Address{}) {
		return ErrInvalidPaymentToken
	}
	if cfg.Rewarder == (common.Address{}) {
		return ErrInvalidRewarder
	}
	if cfg.Treasury == (common.Address{}) {
		return ErrInvalidTreasury
	}
	if cfg.FloorPrice == nil || cfg.FloorPrice.Sign() <= 0 {
		return ErrZeroFloorPrice
	}
	if cfg.FloorPrice.Cmp(pricing.AbsMaxInitPrice) > 0 {
		return ErrFloorPriceExceedsMax
	}
	period := cfg.EpochPeriod
	if period == 0 {
		period = DefaultEpochPeriod
	}
	if period < MinEpochPeriod || period > MaxEpochPeriod {
		return ErrEpochPeriodOutOfRange
	}
	return nil
}

// Initialize validates cfg and persists the channel settings.
func (e *Engine) Initialize(cfg Config) error {
	if e.state == nil {
		return ErrNilState
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ok, err := e.state.KVGet(e.key(settingsPrefix, nil), nil)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyInitialized
	}
	period := cfg.EpochPeriod
	if period == 0 {
		period = DefaultEpochPeriod
	}
	settings := &Settings{
		Address:      e.addr,
		Owner:        cfg.Owner,
		Name:         strings.TrimSpace(cfg.Name),
		Symbol:       strings.TrimSpace(cfg.Symbol),
		URI:          normalizeURI(cfg.URI),
		PaymentToken: cfg.PaymentToken,
		Rewarder:     cfg.Rewarder,
		Treasury:     cfg.Treasury,
		Team:         cfg.Team,
		Protocol:     cfg.Protocol,
		FloorPrice:   new(big.Int).Set(cfg.FloorPrice),
		EpochPeriod:  uint64(period),
		Moderated:    cfg.Moderated,
		NextTokenID:  1,
	}
	return e.putSettings(settings)
}

// Settings returns the persisted channel settings.
func (e *Engine) Settings() (*Settings, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	settings := new(Settings)
	ok, err := e.state.KVGet(e.key(settingsPrefix, nil), settings)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return settings, nil
}

func (e *Engine) putSettings(settings *Settings) error {
	return e.state.KVPut(e.key(settingsPrefix, nil), settings)
}

func (e *Engine) loadItem(id uint64) (*Item, bool, error) {
	item := new(Item)
	ok, err := e.state.KVGet(e.key(itemPrefix, tokenIDBytes(id)), item)
	if err != nil || !ok {
		return nil, false, err
	}
	if item.InitPrice == nil {
		item.InitPrice = big.NewInt(0)
	}
	if item.Stake == nil {
		item.Stake = big.NewInt(0)
	}
	return item, true, nil
}

func (e *Engine) putItem(item *Item) error {
	return e.state.KVPut(e.key(itemPrefix, tokenIDBytes(item.TokenID)), item)
}

// Item returns a copy of the stored item.
func (e *Engine) Item(id uint64) (*Item, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	item, ok, err := e.loadItem(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// OwnerOf returns the current holder of id.
func (e *Engine) OwnerOf(id uint64) (common.Address, error) {
	item, err := e.Item(id)
	if err != nil {
		return common.Address{}, err
	}
	return item.Owner, nil
}

// TokenURI returns the metadata pointer of id.
func (e *Engine) TokenURI(id uint64) (string, error) {
	item, err := e.Item(id)
	if err != nil {
		return "", err
	}
	return item.URI, nil
}

// NextTokenID returns the identifier the next Create will assign.
func (e *Engine) NextTokenID() (uint64, error) {
	settings, err := e.Settings()
	if err != nil {
		return 0, err
	}
	return settings.NextTokenID, nil
}

// Create mints a new item owned by to. Items start at the floor price and
// are auto-approved unless the channel is moderated.
func (e *Engine) Create(to common.Address, uri string) (uint64, error) {
	if to == (common.Address{}) {
		return 0, ErrInvalidRecipient
	}
	uri = normalizeURI(uri)
	if uri == "" {
		return 0, ErrInvalidURI
	}
	settings, err := e.Settings()
	if err != nil {
		return 0, err
	}
	item := &Item{
		TokenID:   settings.NextTokenID,
		Creator:   to,
		Owner:     to,
		URI:       uri,
		Approved:  !settings.Moderated,
		InitPrice: new(big.Int).Set(settings.FloorPrice),
		StartTime: uint64(e.now()),
		Stake:     big.NewInt(0),
	}
	settings.NextTokenID++
	if err := e.putItem(item); err != nil {
		return 0, err
	}
	if err := e.putSettings(settings); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.ContentCreated{
		Content:  e.addr,
		TokenID:  item.TokenID,
		Creator:  to,
		URI:      uri,
		Approved: item.Approved,
		Price:    new(big.Int).Set(item.InitPrice),
	})
	return item.TokenID, nil
}

func (e *Engine) priceOf(item *Item, settings *Settings) *big.Int {
	return pricing.Decay(item.InitPrice, int64(item.StartTime), e.now(), int64(settings.EpochPeriod))
}

// GetPrice returns the current Dutch-auction price of id.
func (e *Engine) GetPrice(id uint64) (*big.Int, error) {
	settings, err := e.Settings()
	if err != nil {
		return nil, err
	}
	item, ok, err := e.loadItem(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrItemNotFound
	}
	return e.priceOf(item, settings), nil
}

// Collect buys id at its current price on behalf of caller and hands it to
// to. expectedEpochID, deadline and maxPrice make stale or front-run calls
// fail instead of executing at unexpected terms.
func (e *Engine) Collect(caller, to common.Address, id, expectedEpochID uint64, deadline int64, maxPrice *big.Int) (*Receipt, error) {
	if e.bank == nil || e.rewarder == nil {
		return nil, ErrNilDependencies
	}
	if to == (common.Address{}) {
		return nil, ErrInvalidRecipient
	}
	settings, err := e.Settings()
	if err != nil {
		return nil, err
	}
	item, ok, err := e.loadItem(id)
	if err != nil {
		return nil, err
	}
	if !ok || !item.Approved {
		return nil, ErrNotApproved
	}
	now := e.now()
	if now > deadline {
		return nil, ErrExpired
	}
	if expectedEpochID != item.EpochID {
		return nil, ErrEpochMismatch
	}
	price := e.priceOf(item, settings)
	if maxPrice == nil || price.Cmp(maxPrice) > 0 {
		return nil, ErrMaxPriceExceeded
	}

	if err := e.bank.Transfer(settings.PaymentToken, caller, e.addr, price); err != nil {
		return nil, err
	}
	prevOwner := item.Owner
	if item.Stake.Sign() > 0 {
		if err := e.rewarder.Withdraw(e.addr, prevOwner, item.Stake); err != nil {
			return nil, err
		}
	}

	split := SplitPrice(price)
	if settings.Team == (common.Address{}) {
		split.Treasury.Add(split.Treasury, split.Team)
		split.Team = big.NewInt(0)
	}
	if settings.Protocol == (common.Address{}) {
		split.Treasury.Add(split.Treasury, split.Protocol)
		split.Protocol = big.NewInt(0)
	}
	if err := e.credit(prevOwner, split.Owner); err != nil {
		return nil, err
	}
	if err := e.credit(item.Creator, split.Creator); err != nil {
		return nil, err
	}
	payouts := []struct {
		to     common.Address
		amount *big.Int
	}{
		{settings.Treasury, split.Treasury},
		{settings.Team, split.Team},
		{settings.Protocol, split.Protocol},
	}
	for _, payout := range payouts {
		if payout.amount.Sign() == 0 {
			continue
		}
		if err := e.bank.Transfer(settings.PaymentToken, e.addr, payout.to, payout.amount); err != nil {
			return nil, err
		}
	}

	if price.Sign() > 0 {
		if err := e.rewarder.Deposit(e.addr, to, price); err != nil {
			return nil, err
		}
	}

	next := new(big.Int).Lsh(price, 1)
	next = pricing.Clamp(next, settings.FloorPrice, pricing.AbsMaxInitPrice)
	item.Owner = to
	item.Stake = new(big.Int).Set(price)
	item.StartTime = uint64(now)
	item.EpochID++
	item.InitPrice = next
	if err := e.putItem(item); err != nil {
		return nil, err
	}

	e.emitter.Emit(events.ContentCollected{
		Content:       e.addr,
		TokenID:       id,
		EpochID:       item.EpochID,
		Collector:     caller,
		To:            to,
		PrevOwner:     prevOwner,
		Creator:       item.Creator,
		Price:         new(big.Int).Set(price),
		OwnerShare:    new(big.Int).Set(split.Owner),
		TreasuryShare: new(big.Int).Set(split.Treasury),
		CreatorShare:  new(big.Int).Set(split.Creator),
		TeamShare:     new(big.Int).Set(split.Team),
		ProtocolShare: new(big.Int).Set(split.Protocol),
		NextInitPrice: new(big.Int).Set(next),
		Timestamp:     now,
	})
	return &Receipt{
		TokenID:       id,
		EpochID:       item.EpochID,
		PrevOwner:     prevOwner,
		Price:         price,
		Split:         split,
		NextInitPrice: next,
	}, nil
}

func (e *Engine) credit(account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	balance, err := e.Claimable(account)
	if err != nil {
		return err
	}
	balance.Add(balance, amount)
	return e.state.KVPut(e.key(claimablePrefix, account.Bytes()), balance)
}

// Claimable returns the pull-payment balance owed to account.
func (e *Engine) Claimable(account common.Address) (*big.Int, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	balance := new(big.Int)
	if _, err := e.state.KVGet(e.key(claimablePrefix, account.Bytes()), balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// Claim pays out the claimable balance of account. Anyone may trigger it;
// funds always go to account.
func (e *Engine) Claim(account common.Address) (*big.Int, error) {
	if e.bank == nil {
		return nil, ErrNilDependencies
	}
	settings, err := e.Settings()
	if err != nil {
		return nil, err
	}
	amount, err := e.Claimable(account)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, ErrNothingToClaim
	}
	if err := e.state.KVPut(e.key(claimablePrefix, account.Bytes()), big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(settings.PaymentToken, e.addr, account, amount); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.ContentClaimed{Content: e.addr, Account: account, Token: settings.PaymentToken, Amount: new(big.Int).Set(amount)})
	return amount, nil
}

// Transfer is permanently disabled; ownership changes only through Collect.
func (e *Engine) Transfer(from, to common.Address, id uint64) error {
	return ErrTransferDisabled
}

// Approve is permanently disabled.
func (e *Engine) Approve(spender common.Address, id uint64) error {
	return ErrTransferDisabled
}

// SetApprovalForAll is permanently disabled.
func (e *Engine) SetApprovalForAll(operator common.Address, approved bool) error {
	return ErrTransferDisabled
}
