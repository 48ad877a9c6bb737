package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/types"
)

// TypeAuctionBuy is emitted when the treasury auction basket is sold.
const TypeAuctionBuy = "auction.buy"

// AuctionBuy captures a treasury auction sale.
type AuctionBuy struct {
	Auction       common.Address
	Buyer         common.Address
	To            common.Address
	EpochID       uint64
	Payment       *big.Int
	PaymentToken  common.Address
	Receiver      common.Address
	Assets        []common.Address
	NextInitPrice *big.Int
}

// EventType satisfies the Event interface.
func (AuctionBuy) EventType() string { return TypeAuctionBuy }

// Event converts the structured payload into a broadcastable event.
func (e AuctionBuy) Event() *types.Event {
	return &types.Event{Type: TypeAuctionBuy, Attributes: map[string]string{
		"auction":       formatAddress(e.Auction),
		"buyer":         formatAddress(e.Buyer),
		"to":            formatAddress(e.To),
		"epochId":       formatUint(e.EpochID),
		"payment":       formatAmount(e.Payment),
		"paymentToken":  formatAddress(e.PaymentToken),
		"receiver":      formatAddress(e.Receiver),
		"assets":        formatAddresses(e.Assets),
		"nextInitPrice": formatAmount(e.NextInitPrice),
	}}
}
