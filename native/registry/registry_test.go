package registry

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"contentchain/core/events"
	"contentchain/core/state"
	"contentchain/native/auction"
	"contentchain/native/bank"
	"contentchain/native/content"
	"contentchain/native/minter"
	"contentchain/storage"
)

var (
	registryAddr = common.HexToAddress("0x0000000000000000000000000000000000000c0e")
	usdcToken    = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	issuer       = common.HexToAddress("0x0000000000000000000000000000000000001551")
	protocolAddr = common.HexToAddress("0x0000000000000000000000000000000000000f0e")
	launcher     = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	collector    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

const (
	day        = int64(24 * 60 * 60)
	week       = 7 * day
	startClock = int64(1_700_000_000)
)

func exp10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

type harness struct {
	now      int64
	store    *state.Manager
	ledger   *bank.Ledger
	registry *Registry
	emitted  []events.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{now: startClock}
	h.store = state.NewManager(storage.NewMemDB())
	h.ledger = bank.NewLedger()
	h.ledger.SetState(h.store)
	if err := h.ledger.RegisterToken(&bank.Token{Address: usdcToken, Name: "USD Coin", Symbol: "USDC", Decimals: 6, MintAuthority: issuer}); err != nil {
		t.Fatalf("register usdc: %v", err)
	}
	for _, account := range []common.Address{launcher, collector} {
		if err := h.ledger.Mint(issuer, usdcToken, account, big.NewInt(10_000_000_000)); err != nil {
			t.Fatalf("fund: %v", err)
		}
	}
	h.registry = h.newRegistry()
	return h
}

func (h *harness) newRegistry() *Registry {
	r := New(registryAddr, Config{QuoteToken: usdcToken, Protocol: protocolAddr, MinQuoteForLaunch: big.NewInt(100_000_000)})
	r.SetState(h.store)
	r.SetBank(h.ledger)
	r.SetNowFunc(func() int64 { return h.now })
	r.SetEmitter(events.EmitterFunc(func(evt events.Event) { h.emitted = append(h.emitted, evt) }))
	return r
}

func validParams() LaunchParams {
	return LaunchParams{
		Launcher:               launcher,
		TokenName:              " Ｃhannel ",
		TokenSymbol:            "CHAN",
		URI:                    "ipfs://channel",
		QuoteAmount:            big.NewInt(500_000_000),
		UnitAmount:             new(big.Int).Mul(big.NewInt(1_000_000), exp10(18)),
		InitialRate:            new(big.Int).Mul(big.NewInt(4), exp10(18)),
		FloorRate:              new(big.Int).Mul(big.NewInt(5), exp10(17)),
		HalvingPeriod:          week,
		FloorPrice:             big.NewInt(1_000_000),
		EpochPeriod:            day,
		AuctionInitPrice:       exp10(15),
		AuctionEpochPeriod:     day,
		AuctionPriceMultiplier: new(big.Int).Mul(big.NewInt(12), exp10(17)),
		AuctionMinInitPrice:    big.NewInt(1_000_000),
	}
}

func TestLaunchValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*LaunchParams)
		want   error
	}{
		{"zero launcher", func(p *LaunchParams) { p.Launcher = common.Address{} }, ErrInvalidLauncher},
		{"blank name", func(p *LaunchParams) { p.TokenName = "   " }, ErrEmptyTokenName},
		{"blank symbol", func(p *LaunchParams) { p.TokenSymbol = "" }, ErrEmptyTokenSymbol},
		{"quote below minimum", func(p *LaunchParams) { p.QuoteAmount = big.NewInt(99_999_999) }, ErrInsufficientQuote},
		{"zero units", func(p *LaunchParams) { p.UnitAmount = big.NewInt(0) }, ErrInvalidUnitAmount},
		{"zero floor price", func(p *LaunchParams) { p.FloorPrice = nil }, content.ErrZeroFloorPrice},
		{"short halving", func(p *LaunchParams) { p.HalvingPeriod = day }, minter.ErrHalvingPeriodBelowMin},
		{"flat multiplier", func(p *LaunchParams) { p.AuctionPriceMultiplier = exp10(18) }, auction.ErrPriceMultiplierBelowMin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			params := validParams()
			tc.mutate(&params)
			if _, err := h.registry.Launch(params); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(h.registry.Channels()) != 0 {
				t.Fatalf("rejected launch must not register a channel")
			}
		})
	}
}

func TestLaunchWiresChannel(t *testing.T) {
	h := newHarness(t)
	ch, err := h.registry.Launch(validParams())
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	rec := ch.Record
	expected := []common.Address{rec.Unit, rec.Rewarder, rec.Content, rec.Minter, rec.Auction, rec.Pool, rec.LPToken}
	for i, addr := range expected {
		if want := crypto.CreateAddress(registryAddr, uint64(i)); addr != want {
			t.Fatalf("identity %d: got %s want %s", i, addr.Hex(), want.Hex())
		}
	}
	if rec.Index != 0 || rec.Name != "Channel" || rec.ID == "" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	unit, err := h.ledger.Token(rec.Unit)
	if err != nil {
		t.Fatalf("unit token: %v", err)
	}
	if unit.MintAuthority != rec.Minter || unit.Symbol != "CHAN" {
		t.Fatalf("unexpected unit token: %+v", unit)
	}
	r0, r1, err := ch.Pool.Reserves()
	if err != nil {
		t.Fatalf("reserves: %v", err)
	}
	if r0.Cmp(rec.Units) != 0 || r1.Cmp(rec.Quote) != 0 {
		t.Fatalf("unexpected reserves %s/%s", r0, r1)
	}
	supply, _ := h.ledger.TotalSupply(rec.LPToken)
	burned, _ := h.ledger.BalanceOf(rec.LPToken, auction.BurnAddress)
	if supply.Sign() == 0 || supply.Cmp(burned) != 0 {
		t.Fatalf("all LP must sit at the burn address: supply=%s burned=%s", supply, burned)
	}
	launcherQuote, _ := h.ledger.BalanceOf(usdcToken, launcher)
	if launcherQuote.Cmp(big.NewInt(9_500_000_000)) != 0 {
		t.Fatalf("quote not pulled from launcher: %s", launcherQuote)
	}

	tokens, _ := ch.Rewarder.RewardTokens()
	if len(tokens) != 1 || tokens[0] != rec.Unit {
		t.Fatalf("unexpected reward tokens %v", tokens)
	}
	settings, _ := ch.Content.Settings()
	if settings.Owner != launcher || settings.Treasury != rec.Auction || settings.Protocol != protocolAddr || settings.PaymentToken != usdcToken {
		t.Fatalf("unexpected content settings: %+v", settings)
	}
	auctionState, _ := ch.Auction.State()
	if auctionState.PaymentToken != rec.LPToken || auctionState.PaymentReceiver != auction.BurnAddress {
		t.Fatalf("unexpected auction state: %+v", auctionState)
	}

	byContent, err := h.registry.ChannelByContent(rec.Content)
	if err != nil || byContent != ch {
		t.Fatalf("lookup by content failed: %v", err)
	}
	if _, err := h.registry.ChannelByContent(rec.Unit); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("expected ErrChannelNotFound, got %v", err)
	}
	launched, ok := h.emitted[len(h.emitted)-1].(events.ChannelLaunched)
	if !ok || launched.Content != rec.Content || launched.Minter != rec.Minter {
		t.Fatalf("expected launch event, got %#v", h.emitted[len(h.emitted)-1])
	}

	second, err := h.registry.Launch(validParams())
	if err != nil {
		t.Fatalf("second launch: %v", err)
	}
	if second.Record.Index != 1 || second.Record.Unit != crypto.CreateAddress(registryAddr, identitiesPerLaunch) {
		t.Fatalf("unexpected second record: %+v", second.Record)
	}
	if got, _ := h.registry.ChannelByIndex(1); got != second {
		t.Fatalf("lookup by index failed")
	}
	if _, err := h.registry.ChannelByIndex(2); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("expected ErrChannelNotFound, got %v", err)
	}
}

func TestLoadRebuildsChannels(t *testing.T) {
	h := newHarness(t)
	first, err := h.registry.Launch(validParams())
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if _, err := h.registry.Launch(validParams()); err != nil {
		t.Fatalf("launch: %v", err)
	}

	restarted := h.newRegistry()
	if err := restarted.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	channels := restarted.Channels()
	if len(channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(channels))
	}
	got, err := restarted.ChannelByContent(first.Record.Content)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Record.Minter != first.Record.Minter || got.Record.Quote.Cmp(first.Record.Quote) != 0 {
		t.Fatalf("record not restored: %+v", got.Record)
	}
	settings, err := got.Content.Settings()
	if err != nil || settings.Owner != launcher {
		t.Fatalf("rewired engine cannot read state: %v", err)
	}
}

func TestLaunchedChannelEndToEnd(t *testing.T) {
	h := newHarness(t)
	ch, err := h.registry.Launch(validParams())
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	rec := ch.Record

	id, err := ch.Content.Create(launcher, "ipfs://item")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ch.Content.Collect(collector, collector, id, 0, h.now, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("collect: %v", err)
	}
	treasury, _ := h.ledger.BalanceOf(usdcToken, rec.Auction)
	if treasury.Cmp(big.NewInt(150_000)) != 0 {
		t.Fatalf("treasury share should land at the auction, got %s", treasury)
	}

	h.now += week
	minted, err := ch.Minter.UpdatePeriod()
	if err != nil {
		t.Fatalf("update period: %v", err)
	}
	if minted.Sign() == 0 {
		t.Fatalf("expected emission after one week")
	}
	left, _ := ch.Rewarder.Left(rec.Unit)
	if left.Sign() == 0 {
		t.Fatalf("rewarder should be streaming")
	}
	h.now += day
	earned, _ := ch.Rewarder.Earned(collector, rec.Unit)
	if earned.Sign() == 0 {
		t.Fatalf("collector should accrue emissions")
	}

	h.now += day
	if _, err := ch.Auction.Buy(collector, []common.Address{usdcToken}, collector, 0, h.now, big.NewInt(0)); err != nil {
		t.Fatalf("auction buy: %v", err)
	}
	treasury, _ = h.ledger.BalanceOf(usdcToken, rec.Auction)
	if treasury.Sign() != 0 {
		t.Fatalf("auction basket should be drained, got %s", treasury)
	}
}
