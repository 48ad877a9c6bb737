package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/types"
)

// TypeChannelLaunched is emitted once per successful launch.
const TypeChannelLaunched = "registry.launched"

// ChannelLaunched records every deployed component identity of a channel.
type ChannelLaunched struct {
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
}

// EventType satisfies the Event interface.
func (ChannelLaunched) EventType() string { return TypeChannelLaunched }

// Event converts the structured payload into a broadcastable event.
func (e ChannelLaunched) Event() *types.Event {
	return &types.Event{Type: TypeChannelLaunched, Attributes: map[string]string{
		"index":      formatUint(e.Index),
		"id":         e.ID,
		"launcher":   formatAddress(e.Launcher),
		"unit":       formatAddress(e.Unit),
		"content":    formatAddress(e.Content),
		"rewarder":   formatAddress(e.Rewarder),
		"minter":     formatAddress(e.Minter),
		"auction":    formatAddress(e.Auction),
		"pool":       formatAddress(e.Pool),
		"lpToken":    formatAddress(e.LPToken),
		"quoteToken": formatAddress(e.QuoteToken),
		"name":       e.Name,
		"symbol":     e.Symbol,
		"uri":        e.URI,
		"quote":      formatAmount(e.Quote),
		"units":      formatAmount(e.Units),
	}}
}
