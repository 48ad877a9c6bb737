package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/types"
)

const (
	// TypeContentCreated is emitted when a new content item is minted.
	TypeContentCreated = "content.created"
	// TypeContentCollected is emitted after a successful collect with the full fee breakdown.
	TypeContentCollected = "content.collected"
	// TypeContentApproved is emitted when a moderator approves an item.
	TypeContentApproved = "content.approved"
	// TypeContentClaimed is emitted when an account withdraws its claimable balance.
	TypeContentClaimed = "content.claimed"
	// TypeContentModerationSet is emitted when the moderation flag changes.
	TypeContentModerationSet = "content.moderation.set"
	// TypeContentModeratorsSet is emitted when moderator membership changes.
	TypeContentModeratorsSet = "content.moderators.set"
	// TypeContentURISet is emitted when the channel metadata pointer changes.
	TypeContentURISet = "content.uri.set"
	// TypeContentTreasurySet is emitted when the treasury recipient changes.
	TypeContentTreasurySet = "content.treasury.set"
	// TypeContentTeamSet is emitted when the team recipient changes.
	TypeContentTeamSet = "content.team.set"
	// TypeContentOwnershipTransferred is emitted when channel administration changes hands.
	TypeContentOwnershipTransferred = "content.ownership.transferred"
)

// ContentCreated captures a freshly minted content item.
type ContentCreated struct {
	Content  common.Address
	TokenID  uint64
	Creator  common.Address
	URI      string
	Approved bool
	Price    *big.Int
}

// EventType satisfies the Event interface.
func (ContentCreated) EventType() string { return TypeContentCreated }

// Event converts the structured payload into a broadcastable event.
func (e ContentCreated) Event() *types.Event {
	return &types.Event{Type: TypeContentCreated, Attributes: map[string]string{
		"content":   formatAddress(e.Content),
		"tokenId":   formatUint(e.TokenID),
		"creator":   formatAddress(e.Creator),
		"uri":       e.URI,
		"approved":  strconv.FormatBool(e.Approved),
		"initPrice": formatAmount(e.Price),
	}}
}

// ContentCollected captures a completed collect including every fee share.
type ContentCollected struct {
	Content       common.Address
	TokenID       uint64
	EpochID       uint64
	Collector     common.Address
	To            common.Address
	PrevOwner     common.Address
	Creator       common.Address
	Price         *big.Int
	OwnerShare    *big.Int
	TreasuryShare *big.Int
	CreatorShare  *big.Int
	TeamShare     *big.Int
	ProtocolShare *big.Int
	NextInitPrice *big.Int
	Timestamp     int64
}

// EventType satisfies the Event interface.
func (ContentCollected) EventType() string { return TypeContentCollected }

// Event converts the structured payload into a broadcastable event.
func (e ContentCollected) Event() *types.Event {
	return &types.Event{Type: TypeContentCollected, Attributes: map[string]string{
		"content":       formatAddress(e.Content),
		"tokenId":       formatUint(e.TokenID),
		"epochId":       formatUint(e.EpochID),
		"collector":     formatAddress(e.Collector),
		"to":            formatAddress(e.To),
		"prevOwner":     formatAddress(e.PrevOwner),
		"creator":       formatAddress(e.Creator),
		"price":         formatAmount(e.Price),
		"ownerShare":    formatAmount(e.OwnerShare),
		"treasuryShare": formatAmount(e.TreasuryShare),
		"creatorShare":  formatAmount(e.CreatorShare),
		"teamShare":     formatAmount(e.TeamShare),
		"protocolShare": formatAmount(e.ProtocolShare),
		"nextInitPrice": formatAmount(e.NextInitPrice),
		"timestamp":     strconv.FormatInt(e.Timestamp, 10),
	}}
}

// ContentApproved captures a moderation approval.
type ContentApproved struct {
	Content  common.Address
	Approver common.Address
	TokenID  uint64
}

// EventType satisfies the Event interface.
func (ContentApproved) EventType() string { return TypeContentApproved }

// Event converts the structured payload into a broadcastable event.
func (e ContentApproved) Event() *types.Event {
	return &types.Event{Type: TypeContentApproved, Attributes: map[string]string{
		"content":  formatAddress(e.Content),
		"approver": formatAddress(e.Approver),
		"tokenId":  formatUint(e.TokenID),
	}}
}

// ContentClaimed captures a pull-payment withdrawal.
type ContentClaimed struct {
	Content common.Address
	Account common.Address
	Token   common.Address
	Amount  *big.Int
}

// EventType satisfies the Event interface.
func (ContentClaimed) EventType() string { return TypeContentClaimed }

// Event converts the structured payload into a broadcastable event.
func (e ContentClaimed) Event() *types.Event {
	return &types.Event{Type: TypeContentClaimed, Attributes: map[string]string{
		"content": formatAddress(e.Content),
		"account": formatAddress(e.Account),
		"token":   formatAddress(e.Token),
		"amount":  formatAmount(e.Amount),
	}}
}

// ContentModerationSet captures a moderation mode toggle.
type ContentModerationSet struct {
	Content   common.Address
	Moderated bool
}

// EventType satisfies the Event interface.
func (ContentModerationSet) EventType() string { return TypeContentModerationSet }

// Event converts the structured payload into a broadcastable event.
func (e ContentModerationSet) Event() *types.Event {
	return &types.Event{Type: TypeContentModerationSet, Attributes: map[string]string{
		"content":   formatAddress(e.Content),
		"moderated": strconv.FormatBool(e.Moderated),
	}}
}

// ContentModeratorsSet captures a batch moderator membership change.
type ContentModeratorsSet struct {
	Content     common.Address
	Accounts    []common.Address
	IsModerator bool
}

// EventType satisfies the Event interface.
func (ContentModeratorsSet) EventType() string { return TypeContentModeratorsSet }

// Event converts the structured payload into a broadcastable event.
func (e ContentModeratorsSet) Event() *types.Event {
	return &types.Event{Type: TypeContentModeratorsSet, Attributes: map[string]string{
		"content":     formatAddress(e.Content),
		"accounts":    formatAddresses(e.Accounts),
		"isModerator": strconv.FormatBool(e.IsModerator),
	}}
}

// ContentURISet captures a channel metadata update.
type ContentURISet struct {
	Content common.Address
	URI     string
}

// EventType satisfies the Event interface.
func (ContentURISet) EventType() string { return TypeContentURISet }

// Event converts the structured payload into a broadcastable event.
func (e ContentURISet) Event() *types.Event {
	return &types.Event{Type: TypeContentURISet, Attributes: map[string]string{
		"content": formatAddress(e.Content),
		"uri":     e.URI,
	}}
}

// ContentRecipientSet captures a treasury or team recipient update. Kind
// selects which of the two event types is rendered.
type ContentRecipientSet struct {
	Kind      string
	Content   common.Address
	Recipient common.Address
}

// EventType satisfies the Event interface.
func (e ContentRecipientSet) EventType() string { return e.Kind }

// Event converts the structured payload into a broadcastable event.
func (e ContentRecipientSet) Event() *types.Event {
	return &types.Event{Type: e.Kind, Attributes: map[string]string{
		"content":   formatAddress(e.Content),
		"recipient": formatAddress(e.Recipient),
	}}
}

// ContentOwnershipTransferred captures a change of channel administrator.
type ContentOwnershipTransferred struct {
	Content  common.Address
	Previous common.Address
	Owner    common.Address
}

// EventType satisfies the Event interface.
func (ContentOwnershipTransferred) EventType() string { return TypeContentOwnershipTransferred }

// Event converts the structured payload into a broadcastable event.
func (e ContentOwnershipTransferred) Event() *types.Event {
	return &types.Event{Type: TypeContentOwnershipTransferred, Attributes: map[string]string{
		"content":  formatAddress(e.Content),
		"previous": formatAddress(e.Previous),
		"owner":    formatAddress(e.Owner),
	}}
}
