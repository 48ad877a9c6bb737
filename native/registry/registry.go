// Package registry launches channels and owns the append-only channel index.
// Components never consult it; it is injected wherever reverse lookups are
// needed.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"contentchain/core/events"
	"contentchain/native/amm"
	"contentchain/native/auction"
	"contentchain/native/bank"
	"contentchain/native/content"
	"contentchain/native/minter"
	"contentchain/native/rewarder"
)

var (
	ErrNilState          = errors.New("registry: state not configured")
	ErrNilBank           = errors.New("registry: bank not configured")
	ErrInvalidLauncher   = errors.New("registry: launcher must not be zero")
	ErrEmptyTokenName    = errors.New("registry: token name required")
	ErrEmptyTokenSymbol  = errors.New("registry: token symbol required")
	ErrInsufficientQuote = errors.New("registry: quote below launch minimum")
	ErrInvalidUnitAmount = errors.New("registry: unit amount must be positive")
	ErrChannelNotFound   = errors.New("registry: channel not found")
)

// identitiesPerLaunch is the number of addresses derived for one channel:
// unit, rewarder, content, minter, auction, pool and LP token.
const identitiesPerLaunch = 7

var (
	noncePrefix  = []byte("registry/nonce/")
	indexPrefix  = []byte("registry/index/")
	recordPrefix = []byte("registry/record/")
)

// Store is the state surface the registry and every engine it wires need.
type Store interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

type ledger interface {
	RegisterToken(meta *bank.Token) error
	SetMintAuthority(caller, token, authority common.Address) error
	Mint(caller, token, to common.Address, amount *big.Int) error
	Transfer(token, from, to common.Address, amount *big.Int) error
	BalanceOf(token, account common.Address) (*big.Int, error)
	TotalSupply(token common.Address) (*big.Int, error)
}

// Registry deploys channels and serves reverse lookups over launched ones.
type Registry struct {
	addr    common.Address
	cfg     Config
	state   Store
	bank    ledger
	emitter events.Emitter
	nowFn   func() int64

	mu        sync.RWMutex
	channels  []*Channel
	byContent map[common.Address]*Channel
}

// New constructs a registry bound to addr.
func New(addr common.Address, cfg Config) *Registry {
	if cfg.MinQuoteForLaunch == nil {
		cfg.MinQuoteForLaunch = big.NewInt(0)
	}
	return &Registry{
		addr:      addr,
		cfg:       cfg,
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
		byContent: make(map[common.Address]*Channel),
	}
}

// Address returns the registry identity.
func (r *Registry) Address() common.Address { return r.addr }

// Config returns the launch policy.
func (r *Registry) Config() Config { return r.cfg }

// SetState configures the state backend shared with launched engines.
func (r *Registry) SetState(state Store) { r.state = state }

// SetBank configures the token ledger shared with launched engines.
func (r *Registry) SetBank(bank ledger) { r.bank = bank }

// SetEmitter configures the emitter handed to the registry and every engine.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the clock handed to every engine.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

func (r *Registry) key(prefix []byte, suffix []byte) []byte {
	key := append(append([]byte(nil), prefix...), r.addr.Bytes()...)
	return append(key, suffix...)
}

func normalizeName(v string) string {
	return norm.NFKC.String(strings.TrimSpace(v))
}

func (r *Registry) nonce() (uint64, error) {
	var nonce uint64
	if _, err := r.state.KVGet(r.key(noncePrefix, nil), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// Launch atomically deploys and wires one channel. The caller must run it
// inside a host transaction so a failure at any step reverts every earlier
// write.
func (r *Registry) Launch(params LaunchParams) (*Channel, error) {
	if r.state == nil {
		return nil, ErrNilState
	}
	if r.bank == nil {
		return nil, ErrNilBank
	}
	if params.Launcher == (common.Address{}) {
		return nil, ErrInvalidLauncher
	}
	name := normalizeName(params.TokenName)
	if name == "" {
		return nil, ErrEmptyTokenName
	}
	symbol := normalizeName(params.TokenSymbol)
	if symbol == "" {
		return nil, ErrEmptyTokenSymbol
	}
	if params.QuoteAmount == nil || params.QuoteAmount.Sign() <= 0 || params.QuoteAmount.Cmp(r.cfg.MinQuoteForLaunch) < 0 {
		return nil, ErrInsufficientQuote
	}
	if params.UnitAmount == nil || params.UnitAmount.Sign() <= 0 {
		return nil, ErrInvalidUnitAmount
	}

	nonce, err := r.nonce()
	if err != nil {
		return nil, err
	}
	var ids [identitiesPerLaunch]common.Address
	for i := range ids {
		ids[i] = crypto.CreateAddress(r.addr, nonce+uint64(i))
	}
	index, err := r.count()
	if err != nil {
		return nil, err
	}
	rec := &Record{
		Index:                  index,
		ID:                     uuid.NewSHA1(uuid.NameSpaceOID, ids[2].Bytes()).String(),
		Launcher:               params.Launcher,
		Unit:                   ids[0],
		Rewarder:               ids[1],
		Content:                ids[2],
		Minter:                 ids[3],
		Auction:                ids[4],
		Pool:                   ids[5],
		LPToken:                ids[6],
		QuoteToken:             r.cfg.QuoteToken,
		Name:                   name,
		Symbol:                 symbol,
		URI:                    params.URI,
		Quote:                  new(big.Int).Set(params.QuoteAmount),
		Units:                  new(big.Int).Set(params.UnitAmount),
		InitialRate:            cloneBig(params.InitialRate),
		FloorRate:              cloneBig(params.FloorRate),
		HalvingPeriod:          nonNegative(params.HalvingPeriod),
		FloorPrice:             cloneBig(params.FloorPrice),
		EpochPeriod:            nonNegative(params.EpochPeriod),
		Moderated:              params.Moderated,
		AuctionInitPrice:       cloneBig(params.AuctionInitPrice),
		AuctionEpochPeriod:     nonNegative(params.AuctionEpochPeriod),
		AuctionPriceMultiplier: cloneBig(params.AuctionPriceMultiplier),
		AuctionMinInitPrice:    cloneBig(params.AuctionMinInitPrice),
		LaunchedAt:             uint64(r.nowFn()),
	}

	contentCfg := r.contentConfig(rec)
	minterCfg := minterConfig(rec)
	auctionCfg := auctionConfig(rec)
	if err := contentCfg.Validate(); err != nil {
		return nil, err
	}
	if err := minterCfg.Validate(); err != nil {
		return nil, err
	}
	if err := auctionCfg.Validate(); err != nil {
		return nil, err
	}

	ch, err := r.wire(rec)
	if err != nil {
		return nil, err
	}
	if err := r.bank.RegisterToken(&bank.Token{Address: rec.Unit, Name: name, Symbol: symbol, Decimals: 18, MintAuthority: r.addr}); err != nil {
		return nil, fmt.Errorf("register unit: %w", err)
	}
	if err := r.bank.Mint(r.addr, rec.Unit, r.addr, rec.Units); err != nil {
		return nil, fmt.Errorf("mint liquidity units: %w", err)
	}
	if err := r.bank.Transfer(rec.QuoteToken, params.Launcher, r.addr, rec.Quote); err != nil {
		return nil, fmt.Errorf("pull quote: %w", err)
	}
	if err := ch.Pool.Register(name+" LP", symbol+"-LP"); err != nil {
		return nil, fmt.Errorf("register lp: %w", err)
	}
	if _, err := ch.Pool.Provision(r.addr, auction.BurnAddress, rec.Units, rec.Quote); err != nil {
		return nil, fmt.Errorf("provision pool: %w", err)
	}
	if err := ch.Rewarder.Initialize(rec.Content, []common.Address{rec.Minter}, rec.Unit); err != nil {
		return nil, err
	}
	if err := ch.Content.Initialize(contentCfg); err != nil {
		return nil, err
	}
	if err := ch.Minter.Initialize(minterCfg); err != nil {
		return nil, err
	}
	if err := ch.Auction.Initialize(auctionCfg); err != nil {
		return nil, err
	}
	if err := r.bank.SetMintAuthority(r.addr, rec.Unit, rec.Minter); err != nil {
		return nil, fmt.Errorf("hand over mint authority: %w", err)
	}

	if err := r.state.KVPut(r.key(noncePrefix, nil), nonce+identitiesPerLaunch); err != nil {
		return nil, err
	}
	if err := r.state.KVPut(r.key(recordPrefix, rec.Content.Bytes()), rec); err != nil {
		return nil, err
	}
	if err := r.state.KVAppend(r.key(indexPrefix, nil), rec.Content.Bytes()); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.channels = append(r.channels, ch)
	r.byContent[rec.Content] = ch
	r.mu.Unlock()

	r.emitter.Emit(events.ChannelLaunched{
		Index:      rec.Index,
		ID:         rec.ID,
		Launcher:   rec.Launcher,
		Unit:       rec.Unit,
		Content:    rec.Content,
		Rewarder:   rec.Rewarder,
		Minter:     rec.Minter,
		Auction:    rec.Auction,
		Pool:       rec.Pool,
		LPToken:    rec.LPToken,
		QuoteToken: rec.QuoteToken,
		Name:       rec.Name,
		Symbol:     rec.Symbol,
		URI:        rec.URI,
		Quote:      new(big.Int).Set(rec.Quote),
		Units:      new(big.Int).Set(rec.Units),
	})
	return ch, nil
}

// Executor runs fn as one atomic operation. core/host.Host satisfies it.
type Executor interface {
	Execute(ctx context.Context, op string, fn func() error) error
}

// LaunchIn runs Launch as a single operation of exec and drops the channel
// handle again if the operation does not commit.
func (r *Registry) LaunchIn(ctx context.Context, exec Executor, params LaunchParams) (*Channel, error) {
	var ch *Channel
	err := exec.Execute(ctx, "registry.launch", func() error {
		var err error
		ch, err = r.Launch(params)
		return err
	})
	if err != nil {
		if ch != nil {
			r.Forget(ch.Record.Content)
		}
		return nil, err
	}
	return ch, nil
}

// Forget drops the in-memory handle of a channel whose launch was reverted
// by the host after Launch returned.
func (r *Registry) Forget(contentAddr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byContent[contentAddr]; !ok {
		return
	}
	delete(r.byContent, contentAddr)
	for i, ch := range r.channels {
		if ch.Record.Content == contentAddr {
			r.channels = append(r.channels[:i], r.channels[i+1:]...)
			break
		}
	}
}

func (r *Registry) contentConfig(rec *Record) content.Config {
	return content.Config{
		Owner:        rec.Launcher,
		Name:         rec.Name,
		Symbol:       rec.Symbol,
		URI:          rec.URI,
		PaymentToken: rec.QuoteToken,
		Rewarder:     rec.Rewarder,
		Treasury:     rec.Auction,
		Team:         rec.Launcher,
		Protocol:     r.cfg.Protocol,
		FloorPrice:   rec.FloorPrice,
		EpochPeriod:  int64(rec.EpochPeriod),
		Moderated:    rec.Moderated,
	}
}

func minterConfig(rec *Record) minter.Config {
	return minter.Config{
		Unit:          rec.Unit,
		Rewarder:      rec.Rewarder,
		InitialRate:   rec.InitialRate,
		FloorRate:     rec.FloorRate,
		HalvingPeriod: int64(rec.HalvingPeriod),
	}
}

func auctionConfig(rec *Record) auction.Config {
	return auction.Config{
		PaymentToken:    rec.LPToken,
		PaymentReceiver: auction.BurnAddress,
		InitPrice:       rec.AuctionInitPrice,
		EpochPeriod:     int64(rec.AuctionEpochPeriod),
		PriceMultiplier: rec.AuctionPriceMultiplier,
		MinInitPrice:    rec.AuctionMinInitPrice,
	}
}

// wire builds live engine instances for rec against the shared state, bank,
// emitter and clock.
func (r *Registry) wire(rec *Record) (*Channel, error) {
	pool, err := amm.NewConstantProduct(rec.Pool, rec.Unit, rec.QuoteToken, rec.LPToken, auction.BurnAddress, r.bank)
	if err != nil {
		return nil, err
	}
	pool.SetEmitter(r.emitter)

	rw := rewarder.NewEngine(rec.Rewarder)
	rw.SetState(r.state)
	rw.SetBank(r.bank)
	rw.SetEmitter(r.emitter)
	rw.SetNowFunc(r.nowFn)

	ce := content.NewEngine(rec.Content)
	ce.SetState(r.state)
	ce.SetBank(r.bank)
	ce.SetRewarder(rw)
	ce.SetEmitter(r.emitter)
	ce.SetNowFunc(r.nowFn)

	me := minter.NewEngine(rec.Minter)
	me.SetState(r.state)
	me.SetBank(r.bank)
	me.SetRewarder(rw)
	me.SetEmitter(r.emitter)
	me.SetNowFunc(r.nowFn)

	ae := auction.NewEngine(rec.Auction)
	ae.SetState(r.state)
	ae.SetBank(r.bank)
	ae.SetEmitter(r.emitter)
	ae.SetNowFunc(r.nowFn)

	return &Channel{Record: rec, Content: ce, Rewarder: rw, Minter: me, Auction: ae, Pool: pool}, nil
}

func (r *Registry) count() (uint64, error) {
	var list [][]byte
	if err := r.state.KVGetList(r.key(indexPrefix, nil), &list); err != nil {
		return 0, err
	}
	return uint64(len(list)), nil
}

// Load rebuilds the in-memory channel handles from persisted launch records.
func (r *Registry) Load() error {
	if r.state == nil {
		return ErrNilState
	}
	var list [][]byte
	if err := r.state.KVGetList(r.key(indexPrefix, nil), &list); err != nil {
		return err
	}
	channels := make([]*Channel, 0, len(list))
	byContent := make(map[common.Address]*Channel, len(list))
	for _, raw := range list {
		rec := new(Record)
		ok, err := r.state.KVGet(r.key(recordPrefix, raw), rec)
		if err != nil {
			return fmt.Errorf("load launch record %x: %w", raw, err)
		}
		if !ok {
			return fmt.Errorf("load launch record %x: %w", raw, ErrChannelNotFound)
		}
		ch, err := r.wire(rec)
		if err != nil {
			return err
		}
		channels = append(channels, ch)
		byContent[rec.Content] = ch
	}
	r.mu.Lock()
	r.channels = channels
	r.byContent = byContent
	r.mu.Unlock()
	return nil
}

// Channels returns every launched channel in launch order.
func (r *Registry) Channels() []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Channel(nil), r.channels...)
}

// ChannelByContent resolves a channel from its content engine identity.
func (r *Registry) ChannelByContent(addr common.Address) (*Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.byContent[addr]
	if !ok {
		return nil, ErrChannelNotFound
	}
	return ch, nil
}

// ChannelByIndex resolves a channel from its launch position.
func (r *Registry) ChannelByIndex(index uint64) (*Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index >= uint64(len(r.channels)) {
		return nil, ErrChannelNotFound
	}
	return r.channels[index], nil
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func nonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
