package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/types"
)

// TypeEmissionMinted is emitted when the scheduler mints a window's emission.
const TypeEmissionMinted = "minter.minted"

// EmissionMinted captures one window's emission. Pending is the amount held
// back in the rewarder because it could not yet start a stream.
type EmissionMinted struct {
	Minter       common.Address
	Rewarder     common.Address
	Token        common.Address
	Amount       *big.Int
	Rate         *big.Int
	ActivePeriod uint64
	Notified     bool
	Pending      *big.Int
}

// EventType satisfies the Event interface.
func (EmissionMinted) EventType() string { return TypeEmissionMinted }

// Event converts the structured payload into a broadcastable event.
func (e EmissionMinted) Event() *types.Event {
	return &types.Event{Type: TypeEmissionMinted, Attributes: map[string]string{
		"minter":       formatAddress(e.Minter),
		"rewarder":     formatAddress(e.Rewarder),
		"token":        formatAddress(e.Token),
		"amount":       formatAmount(e.Amount),
		"rate":         formatAmount(e.Rate),
		"activePeriod": formatUint(e.ActivePeriod),
		"notified":     strconv.FormatBool(e.Notified),
		"pending":      formatAmount(e.Pending),
	}}
}
