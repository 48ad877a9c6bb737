package minter

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// MinHalvingPeriod is the shortest cadence a scheduler may be built with.
	MinHalvingPeriod int64 = 7 * 24 * 60 * 60
)

// MaxInitialRate bounds the starting emission at 1e24 units per second.
var MaxInitialRate = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

var (
	ErrHalvingPeriodBelowMin = errors.New("minter: halving period below minimum")
	ErrInvalidInitialRate    = errors.New("minter: initial rate must be positive")
	ErrInitialRateExceedsMax = errors.New("minter: initial rate exceeds maximum")
	ErrInvalidFloorRate      = errors.New("minter: floor rate must be positive and not exceed initial rate")
	ErrInvalidUnit           = errors.New("minter: unit token required")
	ErrInvalidRewarder       = errors.New("minter: rewarder identity required")
)

// Config carries the construction parameters of a scheduler.
type Config struct {
	Unit          common.Address
	Rewarder      common.Address
	InitialRate   *big.Int
	FloorRate     *big.Int
	HalvingPeriod int64
}

// Validate fails fast on out-of-bounds construction parameters.
func (c Config) Validate() error {
	if c.Unit == (common.Address{}) {
		return ErrInvalidUnit
	}
	if c.Rewarder == (common.Address{}) {
		return ErrInvalidRewarder
	}
	if c.HalvingPeriod < MinHalvingPeriod {
		return ErrHalvingPeriodBelowMin
	}
	if c.InitialRate == nil || c.InitialRate.Sign() <= 0 {
		return ErrInvalidInitialRate
	}
	if c.InitialRate.Cmp(MaxInitialRate) > 0 {
		return ErrInitialRateExceedsMax
	}
	if c.FloorRate == nil || c.FloorRate.Sign() <= 0 || c.FloorRate.Cmp(c.InitialRate) > 0 {
		return ErrInvalidFloorRate
	}
	return nil
}

// State is the persisted emission state of one scheduler.
type State struct {
	Address       common.Address
	Unit          common.Address
	Rewarder      common.Address
	InitialRate   *big.Int
	FloorRate     *big.Int
	HalvingPeriod uint64
	LaunchTime    uint64
	ActivePeriod  uint64
	LastMintedAt  uint64
	Pending       *big.Int
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := *s
	clone.InitialRate = cloneBig(s.InitialRate)
	clone.FloorRate = cloneBig(s.FloorRate)
	clone.Pending = cloneBig(s.Pending)
	return &clone
}

// RateAt returns the emission rate at now: the initial rate halved once per
// elapsed period, never below the floor.
func (s *State) RateAt(now uint64) *big.Int {
	var periods uint64
	if now > s.LaunchTime && s.HalvingPeriod > 0 {
		periods = (now - s.LaunchTime) / s.HalvingPeriod
	}
	rate := new(big.Int)
	if periods < uint64(s.InitialRate.BitLen()) {
		rate.Rsh(s.InitialRate, uint(periods))
	}
	if rate.Cmp(s.FloorRate) < 0 {
		rate.Set(s.FloorRate)
	}
	return rate
}

// EmissionAt returns the amount minted for one window at now.
func (s *State) EmissionAt(now uint64) *big.Int {
	rate := s.RateAt(now)
	return rate.Mul(rate, new(big.Int).SetUint64(s.HalvingPeriod))
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
