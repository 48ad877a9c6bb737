package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/types"
)

const (
	// TypeTokenRegistered is emitted when a fungible token is added to the ledger.
	TypeTokenRegistered = "bank.token.registered"
	// TypeTokenTransfer is emitted for every balance movement between accounts.
	TypeTokenTransfer = "bank.transfer"
	// TypeTokenMinted is emitted when new supply is created.
	TypeTokenMinted = "bank.mint"
	// TypeMintAuthoritySet is emitted when the mint capability changes hands.
	TypeMintAuthoritySet = "bank.mintAuthority.set"
)

// TokenRegistered captures the metadata of a freshly registered token.
type TokenRegistered struct {
	Token         common.Address
	Name          string
	Symbol        string
	Decimals      uint8
	MintAuthority common.Address
}

// EventType satisfies the Event interface.
func (TokenRegistered) EventType() string { return TypeTokenRegistered }

// Event converts the structured payload into a broadcastable event.
func (e TokenRegistered) Event() *types.Event {
	return &types.Event{Type: TypeTokenRegistered, Attributes: map[string]string{
		"token":         formatAddress(e.Token),
		"name":          e.Name,
		"symbol":        e.Symbol,
		"decimals":      strconv.Itoa(int(e.Decimals)),
		"mintAuthority": formatAddress(e.MintAuthority),
	}}
}

// TokenTransfer captures a balance movement.
type TokenTransfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (TokenTransfer) EventType() string { return TypeTokenTransfer }

// Event converts the structured payload into a broadcastable event.
func (e TokenTransfer) Event() *types.Event {
	return &types.Event{Type: TypeTokenTransfer, Attributes: map[string]string{
		"token":  formatAddress(e.Token),
		"from":   formatAddress(e.From),
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
	}}
}

// TokenMinted captures newly created supply.
type TokenMinted struct {
	Token  common.Address
	To     common.Address
	Amount *big.Int
	Supply *big.Int
}

// EventType satisfies the Event interface.
func (TokenMinted) EventType() string { return TypeTokenMinted }

// Event converts the structured payload into a broadcastable event.
func (e TokenMinted) Event() *types.Event {
	return &types.Event{Type: TypeTokenMinted, Attributes: map[string]string{
		"token":  formatAddress(e.Token),
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
		"supply": formatAmount(e.Supply),
	}}
}

// MintAuthoritySet captures a change of the account allowed to mint a token.
type MintAuthoritySet struct {
	Token     common.Address
	Previous  common.Address
	Authority common.Address
}

// EventType satisfies the Event interface.
func (MintAuthoritySet) EventType() string { return TypeMintAuthoritySet }

// Event converts the structured payload into a broadcastable event.
func (e MintAuthoritySet) Event() *types.Event {
	return &types.Event{Type: TypeMintAuthoritySet, Attributes: map[string]string{
		"token":     formatAddress(e.Token),
		"previous":  formatAddress(e.Previous),
		"authority": formatAddress(e.Authority),
	}}
}
