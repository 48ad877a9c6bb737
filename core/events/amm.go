package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/types"
)

// TypePoolProvisioned is emitted when liquidity is added to a pool.
const TypePoolProvisioned = "amm.provisioned"

// PoolProvisioned captures a liquidity deposit.
type PoolProvisioned struct {
	Pool     common.Address
	Provider common.Address
	To       common.Address
	Amount0  *big.Int
	Amount1  *big.Int
	Minted   *big.Int
}

// EventType satisfies the Event interface.
func (PoolProvisioned) EventType() string { return TypePoolProvisioned }

// Event converts the structured payload into a broadcastable event.
func (e PoolProvisioned) Event() *types.Event {
	return &types.Event{Type: TypePoolProvisioned, Attributes: map[string]string{
		"pool":     formatAddress(e.Pool),
		"provider": formatAddress(e.Provider),
		"to":       formatAddress(e.To),
		"amount0":  formatAmount(e.Amount0),
		"amount1":  formatAmount(e.Amount1),
		"minted":   formatAmount(e.Minted),
	}}
}
