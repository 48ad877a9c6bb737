package auction

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/pricing"
)

const (
	// MinEpochPeriod is the shortest allowed decay window in seconds.
	MinEpochPeriod int64 = 60 * 60
	// MaxEpochPeriod is the longest allowed decay window in seconds.
	MaxEpochPeriod int64 = 365 * 24 * 60 * 60
)

var (
	// MinPriceMultiplier is 1.1x expressed with pricing.Precision.
	MinPriceMultiplier = big.NewInt(1_100_000_000_000_000_000)
	// MaxPriceMultiplier is 3x expressed with pricing.Precision.
	MaxPriceMultiplier = big.NewInt(3_000_000_000_000_000_000)
	// AbsMinInitPrice is the lowest permitted minimum starting price.
	AbsMinInitPrice = big.NewInt(1_000_000)

	// BurnAddress receives payments when no receiver is configured.
	BurnAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
)

var (
	ErrEpochPeriodBelowMin       = errors.New("auction: epoch period below minimum")
	ErrEpochPeriodExceedsMax     = errors.New("auction: epoch period exceeds maximum")
	ErrPriceMultiplierBelowMin   = errors.New("auction: price multiplier below minimum")
	ErrPriceMultiplierExceedsMax = errors.New("auction: price multiplier exceeds maximum")
	ErrMinInitPriceBelowMin      = errors.New("auction: minimum init price below absolute minimum")
	ErrMinInitPriceExceedsMax    = errors.New("auction: minimum init price exceeds absolute maximum")
	ErrInitPriceBelowMin         = errors.New("auction: init price below minimum init price")
	ErrInitPriceExceedsMax       = errors.New("auction: init price exceeds absolute maximum")
	ErrInvalidPaymentToken       = errors.New("auction: payment token required")
)

// Config captures the launch parameters of a treasury auction.
type Config struct {
	PaymentToken    common.Address
	PaymentReceiver common.Address
	InitPrice       *big.Int
	EpochPeriod     int64
	PriceMultiplier *big.Int
	MinInitPrice    *big.Int
}

// Validate checks the configured bounds.
func (c Config) Validate() error {
	if c.PaymentToken == (common.Address{}) {
		return ErrInvalidPaymentToken
	}
	if c.EpochPeriod < MinEpochPeriod {
		return ErrEpochPeriodBelowMin
	}
	if c.EpochPeriod > MaxEpochPeriod {
		return ErrEpochPeriodExceedsMax
	}
	if c.PriceMultiplier == nil || c.PriceMultiplier.Cmp(MinPriceMultiplier) < 0 {
		return ErrPriceMultiplierBelowMin
	}
	if c.PriceMultiplier.Cmp(MaxPriceMultiplier) > 0 {
		return ErrPriceMultiplierExceedsMax
	}
	if c.MinInitPrice == nil || c.MinInitPrice.Cmp(AbsMinInitPrice) < 0 {
		return ErrMinInitPriceBelowMin
	}
	if c.MinInitPrice.Cmp(pricing.AbsMaxInitPrice) > 0 {
		return ErrMinInitPriceExceedsMax
	}
	if c.InitPrice == nil || c.InitPrice.Cmp(c.MinInitPrice) < 0 {
		return ErrInitPriceBelowMin
	}
	if c.InitPrice.Cmp(pricing.AbsMaxInitPrice) > 0 {
		return ErrInitPriceExceedsMax
	}
	return nil
}

// State is the persisted auction record.
type State struct {
	Address         common.Address
	PaymentToken    common.Address
	PaymentReceiver common.Address
	EpochID         uint64
	InitPrice       *big.Int
	StartTime       uint64
	EpochPeriod     uint64
	PriceMultiplier *big.Int
	MinInitPrice    *big.Int
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.InitPrice = cloneBig(s.InitPrice)
	out.PriceMultiplier = cloneBig(s.PriceMultiplier)
	out.MinInitPrice = cloneBig(s.MinInitPrice)
	return &out
}

// Price returns the decayed price at now.
func (s *State) Price(now int64) *big.Int {
	return pricing.Decay(s.InitPrice, int64(s.StartTime), now, int64(s.EpochPeriod))
}

// NextInitPrice scales the current starting price by the multiplier and
// clamps it to [MinInitPrice, pricing.AbsMaxInitPrice].
func (s *State) NextInitPrice() *big.Int {
	next, err := pricing.MulDiv(s.InitPrice, s.PriceMultiplier, pricing.Precision)
	if err != nil {
		next = new(big.Int).Set(pricing.AbsMaxInitPrice)
	}
	return pricing.Clamp(next, s.MinInitPrice, pricing.AbsMaxInitPrice)
}

// Receipt summarises a completed Buy.
type Receipt struct {
	EpochID       uint64
	Payment       *big.Int
	Transferred   map[common.Address]*big.Int
	NextInitPrice *big.Int
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
