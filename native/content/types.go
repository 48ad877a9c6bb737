package content

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// DefaultEpochPeriod is the decay window used when a channel does not set one.
	DefaultEpochPeriod int64 = 24 * 60 * 60
	// MinEpochPeriod and MaxEpochPeriod bound the configurable decay window.
	MinEpochPeriod int64 = 60 * 60
	MaxEpochPeriod int64 = 365 * 24 * 60 * 60
)

// Config carries the launch-time parameters of a channel's collection engine.
type Config struct {
	Owner        common.Address
	Name         string
	Symbol       string
	URI          string
	PaymentToken common.Address
	Rewarder     common.Address
	Treasury     common.Address
	Team         common.Address
	Protocol     common.Address
	FloorPrice   *big.Int
	EpochPeriod  int64
	Moderated    bool
}

// Settings is the persisted channel configuration. FloorPrice, EpochPeriod,
// PaymentToken, Rewarder and Protocol never change after launch.
type Settings struct {
	Address      common.Address
	Owner        common.Address
	Name         string
	Symbol       string
	URI          string
	PaymentToken common.Address
	Rewarder     common.Address
	Treasury     common.Address
	Team         common.Address
	Protocol     common.Address
	FloorPrice   *big.Int
	EpochPeriod  uint64
	Moderated    bool
	NextTokenID  uint64
}

// Clone returns a deep copy of the settings.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	clone := *s
	clone.FloorPrice = cloneBig(s.FloorPrice)
	return &clone
}

// Item is one collectible content unit.
type Item struct {
	TokenID   uint64
	Creator   common.Address
	Owner     common.Address
	URI       string
	Approved  bool
	EpochID   uint64
	InitPrice *big.Int
	StartTime uint64
	Stake     *big.Int
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	clone := *i
	clone.InitPrice = cloneBig(i.InitPrice)
	clone.Stake = cloneBig(i.Stake)
	return &clone
}

// Receipt summarises a successful collect.
type Receipt struct {
	TokenID       uint64
	EpochID       uint64
	PrevOwner     common.Address
	Price         *big.Int
	Split         Split
	NextInitPrice *big.Int
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
