package registry

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/native/amm"
	"contentchain/native/auction"
	"contentchain/native/content"
	"contentchain/native/minter"
	"contentchain/native/rewarder"
)

// Config holds the registry-wide launch policy.
type Config struct {
	QuoteToken        common.Address
	Protocol          common.Address
	MinQuoteForLaunch *big.Int
}

// LaunchParams is everything a launcher supplies for a new channel.
type LaunchParams struct {
	Launcher    common.Address
	TokenName   string
	TokenSymbol string
	URI         string
	QuoteAmount *big.Int
	UnitAmount  *big.Int

	InitialRate   *big.Int
	FloorRate     *big.Int
	HalvingPeriod int64

	FloorPrice  *big.Int
	EpochPeriod int64
	Moderated   bool

	AuctionInitPrice       *big.Int
	AuctionEpochPeriod     int64
	AuctionPriceMultiplier *big.Int
	AuctionMinInitPrice    *big.Int
}

// Record is the persisted launch record of one channel. It carries every
// component identity and the resolved configuration.
type Record struct {
	Index      uint64
	ID         string
	Launcher   common.Address
	Unit       common.Address
	Content    common.Address
	Rewarder   common.Address
	Minter     common.Address
	Auction    common.Address
	Pool       common.Address
	LPToken    common.Address
	QuoteToken common.Address
	Name       string
	Symbol     string
	URI        string
	Quote      *big.Int
	Units      *big.Int

	InitialRate   *big.Int
	FloorRate     *big.Int
	HalvingPeriod uint64

	FloorPrice  *big.Int
	EpochPeriod uint64
	Moderated   bool

	AuctionInitPrice       *big.Int
	AuctionEpochPeriod     uint64
	AuctionPriceMultiplier *big.Int
	AuctionMinInitPrice    *big.Int

	LaunchedAt uint64
}

// Channel bundles the live component instances of a launched channel.
type Channel struct {
	Record   *Record
	Content  *content.Engine
	Rewarder *rewarder.Engine
	Minter   *minter.Engine
	Auction  *auction.Engine
	Pool     *amm.ConstantProduct
}
