package rewarder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// Duration is the fixed streaming window of every reward notification.
	Duration int64 = 7 * 24 * 60 * 60
	// MaxRewardTokens caps the per-account checkpoint cost.
	MaxRewardTokens = 10
)

// Settings is the immutable wiring of a rewarder plus its reward token list.
type Settings struct {
	Address   common.Address
	Content   common.Address
	Notifiers []common.Address
	Tokens    []common.Address
}

// Clone returns a deep copy of the settings.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Notifiers = append([]common.Address(nil), s.Notifiers...)
	clone.Tokens = append([]common.Address(nil), s.Tokens...)
	return &clone
}

func (s *Settings) hasToken(token common.Address) bool {
	for _, t := range s.Tokens {
		if t == token {
			return true
		}
	}
	return false
}

func (s *Settings) canNotify(caller common.Address) bool {
	if caller == s.Content {
		return true
	}
	for _, n := range s.Notifiers {
		if n == caller {
			return true
		}
	}
	return false
}

// RewardData is the stream state of one reward token.
type RewardData struct {
	RewardRate           *big.Int
	PeriodFinish         uint64
	LastUpdateTime       uint64
	RewardPerTokenStored *big.Int
}

// Clone returns a deep copy of the stream state.
func (d *RewardData) Clone() *RewardData {
	if d == nil {
		return nil
	}
	return &RewardData{
		RewardRate:           cloneBig(d.RewardRate),
		PeriodFinish:         d.PeriodFinish,
		LastUpdateTime:       d.LastUpdateTime,
		RewardPerTokenStored: cloneBig(d.RewardPerTokenStored),
	}
}

func (d *RewardData) normalize() *RewardData {
	if d.RewardRate == nil {
		d.RewardRate = big.NewInt(0)
	}
	if d.RewardPerTokenStored == nil {
		d.RewardPerTokenStored = big.NewInt(0)
	}
	return d
}

// accountReward is the per-account-per-token checkpoint.
type accountReward struct {
	Paid    *big.Int
	Pending *big.Int
}

func (a *accountReward) normalize() *accountReward {
	if a.Paid == nil {
		a.Paid = big.NewInt(0)
	}
	if a.Pending == nil {
		a.Pending = big.NewInt(0)
	}
	return a
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
