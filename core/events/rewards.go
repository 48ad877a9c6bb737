package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/types"
)

const (
	// TypeRewardDeposited is emitted when stake is credited to an account.
	TypeRewardDeposited = "rewarder.deposited"
	// TypeRewardWithdrawn is emitted when stake is removed from an account.
	TypeRewardWithdrawn = "rewarder.withdrawn"
	// TypeRewardPaid is emitted for every non-zero reward transfer.
	TypeRewardPaid = "rewarder.rewardPaid"
	// TypeRewardNotified is emitted when a new reward stream starts.
	TypeRewardNotified = "rewarder.rewardNotified"
	// TypeRewardTokenAdded is emitted when a reward token is registered.
	TypeRewardTokenAdded = "rewarder.rewardTokenAdded"
)

// RewardStakeChanged captures a deposit or withdrawal. Withdrawn selects
// which of the two event types is rendered.
type RewardStakeChanged struct {
	Rewarder    common.Address
	Account     common.Address
	Amount      *big.Int
	Balance     *big.Int
	TotalSupply *big.Int
	Withdrawn   bool
}

// EventType satisfies the Event interface.
func (e RewardStakeChanged) EventType() string {
	if e.Withdrawn {
		return TypeRewardWithdrawn
	}
	return TypeRewardDeposited
}

// Event converts the structured payload into a broadcastable event.
func (e RewardStakeChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"rewarder":    formatAddress(e.Rewarder),
		"account":     formatAddress(e.Account),
		"amount":      formatAmount(e.Amount),
		"balance":     formatAmount(e.Balance),
		"totalSupply": formatAmount(e.TotalSupply),
	}}
}

// RewardPaid captures a reward transfer to a staker.
type RewardPaid struct {
	Rewarder common.Address
	Account  common.Address
	Token    common.Address
	Amount   *big.Int
}

// EventType satisfies the Event interface.
func (RewardPaid) EventType() string { return TypeRewardPaid }

// Event converts the structured payload into a broadcastable event.
func (e RewardPaid) Event() *types.Event {
	return &types.Event{Type: TypeRewardPaid, Attributes: map[string]string{
		"rewarder": formatAddress(e.Rewarder),
		"account":  formatAddress(e.Account),
		"token":    formatAddress(e.Token),
		"amount":   formatAmount(e.Amount),
	}}
}

// RewardNotified captures the parameters of a new reward stream.
type RewardNotified struct {
	Rewarder     common.Address
	Notifier     common.Address
	Token        common.Address
	Amount       *big.Int
	RewardRate   *big.Int
	PeriodFinish uint64
}

// EventType satisfies the Event interface.
func (RewardNotified) EventType() string { return TypeRewardNotified }

// Event converts the structured payload into a broadcastable event.
func (e RewardNotified) Event() *types.Event {
	return &types.Event{Type: TypeRewardNotified, Attributes: map[string]string{
		"rewarder":     formatAddress(e.Rewarder),
		"notifier":     formatAddress(e.Notifier),
		"token":        formatAddress(e.Token),
		"amount":       formatAmount(e.Amount),
		"rewardRate":   formatAmount(e.RewardRate),
		"periodFinish": formatUint(e.PeriodFinish),
	}}
}

// RewardTokenAdded captures a new reward token registration.
type RewardTokenAdded struct {
	Rewarder common.Address
	Token    common.Address
}

// EventType satisfies the Event interface.
func (RewardTokenAdded) EventType() string { return TypeRewardTokenAdded }

// Event converts the structured payload into a broadcastable event.
func (e RewardTokenAdded) Event() *types.Event {
	return &types.Event{Type: TypeRewardTokenAdded, Attributes: map[string]string{
		"rewarder": formatAddress(e.Rewarder),
		"token":    formatAddress(e.Token),
	}}
}
