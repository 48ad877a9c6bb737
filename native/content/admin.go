package content

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/text/unicode/norm"

	"contentchain/core/events"
)

func normalizeURI(uri string) string {
	return norm.NFKC.String(strings.TrimSpace(uri))
}

func (e *Engine) ownerSettings(caller common.Address) (*Settings, error) {
	settings, err := e.Settings()
	if err != nil {
		return nil, err
	}
	if caller != settings.Owner {
		return nil, ErrNotOwner
	}
	return settings, nil
}

// IsModerator reports whether account may approve items.
func (e *Engine) IsModerator(account common.Address) (bool, error) {
	if e.state == nil {
		return false, ErrNilState
	}
	var flag bool
	if _, err := e.state.KVGet(e.key(moderatorPrefix, account.Bytes()), &flag); err != nil {
		return false, err
	}
	return flag, nil
}

// ApproveItems marks every id as approved. The caller must be the owner or a
// moderator and every id must exist and still be unapproved; otherwise
// nothing is approved.
func (e *Engine) ApproveItems(caller common.Address, ids []uint64) error {
	settings, err := e.Settings()
	if err != nil {
		return err
	}
	if caller != settings.Owner {
		moderator, err := e.IsModerator(caller)
		if err != nil {
			return err
		}
		if !moderator {
			return ErrNotModerator
		}
	}
	items := make([]*Item, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return ErrAlreadyApproved
		}
		seen[id] = struct{}{}
		item, ok, err := e.loadItem(id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrItemNotFound
		}
		if item.Approved {
			return ErrAlreadyApproved
		}
		items = append(items, item)
	}
	for _, item := range items {
		item.Approved = true
		if err := e.putItem(item); err != nil {
			return err
		}
		e.emitter.Emit(events.ContentApproved{Content: e.addr, Approver: caller, TokenID: item.TokenID})
	}
	return nil
}

// SetModerators grants or revokes moderator rights for accounts.
func (e *Engine) SetModerators(caller common.Address, accounts []common.Address, isModerator bool) error {
	if _, err := e.ownerSettings(caller); err != nil {
		return err
	}
	for _, account := range accounts {
		if err := e.state.KVPut(e.key(moderatorPrefix, account.Bytes()), isModerator); err != nil {
			return err
		}
	}
	e.emitter.Emit(events.ContentModeratorsSet{Content: e.addr, Accounts: append([]common.Address(nil), accounts...), IsModerator: isModerator})
	return nil
}

// SetIsModerated toggles moderation for items created from now on. Existing
// unapproved items stay unapproved.
func (e *Engine) SetIsModerated(caller common.Address, moderated bool) error {
	settings, err := e.ownerSettings(caller)
	if err != nil {
		return err
	}
	settings.Moderated = moderated
	if err := e.putSettings(settings); err != nil {
		return err
	}
	e.emitter.Emit(events.ContentModerationSet{Content: e.addr, Moderated: moderated})
	return nil
}

// SetURI updates the channel metadata pointer.
func (e *Engine) SetURI(caller common.Address, uri string) error {
	settings, err := e.ownerSettings(caller)
	if err != nil {
		return err
	}
	uri = normalizeURI(uri)
	if uri == "" {
		return ErrInvalidURI
	}
	settings.URI = uri
	if err := e.putSettings(settings); err != nil {
		return err
	}
	e.emitter.Emit(events.ContentURISet{Content: e.addr, URI: uri})
	return nil
}

// SetTreasury changes the recipient of the treasury share.
func (e *Engine) SetTreasury(caller, treasury common.Address) error {
	settings, err := e.ownerSettings(caller)
	if err != nil {
		return err
	}
	if treasury == (common.Address{}) {
		return ErrInvalidTreasury
	}
	settings.Treasury = treasury
	if err := e.putSettings(settings); err != nil {
		return err
	}
	e.emitter.Emit(events.ContentRecipientSet{Kind: events.TypeContentTreasurySet, Content: e.addr, Recipient: treasury})
	return nil
}

// SetTeam changes the recipient of the team share. A zero team folds its
// share into the treasury.
func (e *Engine) SetTeam(caller, team common.Address) error {
	settings, err := e.ownerSettings(caller)
	if err != nil {
		return err
	}
	settings.Team = team
	if err := e.putSettings(settings); err != nil {
		return err
	}
	e.emitter.Emit(events.ContentRecipientSet{Kind: events.TypeContentTeamSet, Content: e.addr, Recipient: team})
	return nil
}

// TransferOwnership hands channel administration to owner.
func (e *Engine) TransferOwnership(caller, owner common.Address) error {
	settings, err := e.ownerSettings(caller)
	if err != nil {
		return err
	}
	if owner == (common.Address{}) {
		return ErrInvalidOwner
	}
	previous := settings.Owner
	settings.Owner = owner
	if err := e.putSettings(settings); err != nil {
		return err
	}
	e.emitter.Emit(events.ContentOwnershipTransferred{Content: e.addr, Previous: previous, Owner: owner})
	return nil
}

// AddReward registers an additional reward token with the channel rewarder.
func (e *Engine) AddReward(caller, token common.Address) error {
	if e.rewarder == nil {
		return ErrNilDependencies
	}
	if _, err := e.ownerSettings(caller); err != nil {
		return err
	}
	return e.rewarder.AddReward(e.addr, token)
}
