package rpc

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/native/auction"
	"contentchain/native/content"
	"contentchain/native/minter"
	"contentchain/native/registry"
)

// Amounts travel as base-10 strings so clients never lose precision.

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAmount(field, raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, invalid(fmt.Errorf("%s must be a non-negative integer", field))
	}
	return v, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, invalid(fmt.Errorf("%s must be a hex address", field))
	}
	return common.HexToAddress(raw), nil
}

func parseAddresses(field string, raw []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(raw))
	for _, entry := range raw {
		addr, err := parseAddress(field, entry)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

var errCallerMismatch = errors.New("caller does not match the requested account")

// ChannelView is the public description of a launched channel.
type ChannelView struct {
	Index      uint64 `json:"index"`
	ID         string `json:"id"`
	Launcher   string `json:"launcher"`
	Name       string `json:"name"`
	Symbol     string `json:"symbol"`
	URI        string `json:"uri"`
	Unit       string `json:"unit"`
	Content    string `json:"content"`
	Rewarder   string `json:"rewarder"`
	Minter     string `json:"minter"`
	Auction    string `json:"auction"`
	Pool       string `json:"pool"`
	LPToken    string `json:"lpToken"`
	QuoteToken string `json:"quoteToken"`
	FloorPrice string `json:"floorPrice"`
	Moderated  bool   `json:"moderated"`
	LaunchedAt uint64 `json:"launchedAt"`
}

func channelView(rec *registry.Record) ChannelView {
	return ChannelView{
		Index:      rec.Index,
		ID:         rec.ID,
		Launcher:   rec.Launcher.Hex(),
		Name:       rec.Name,
		Symbol:     rec.Symbol,
		URI:        rec.URI,
		Unit:       rec.Unit.Hex(),
		Content:    rec.Content.Hex(),
		Rewarder:   rec.Rewarder.Hex(),
		Minter:     rec.Minter.Hex(),
		Auction:    rec.Auction.Hex(),
		Pool:       rec.Pool.Hex(),
		LPToken:    rec.LPToken.Hex(),
		QuoteToken: rec.QuoteToken.Hex(),
		FloorPrice: formatAmount(rec.FloorPrice),
		Moderated:  rec.Moderated,
		LaunchedAt: rec.LaunchedAt,
	}
}

// SettingsView is the live administrative state of a channel.
type SettingsView struct {
	Owner       string `json:"owner"`
	URI         string `json:"uri"`
	Treasury    string `json:"treasury"`
	Team        string `json:"team"`
	Protocol    string `json:"protocol"`
	Moderated   bool   `json:"moderated"`
	NextTokenID uint64 `json:"nextTokenId"`
	EpochPeriod uint64 `json:"epochPeriod"`
}

func settingsView(s *content.Settings) SettingsView {
	return SettingsView{
		Owner:       s.Owner.Hex(),
		URI:         s.URI,
		Treasury:    s.Treasury.Hex(),
		Team:        s.Team.Hex(),
		Protocol:    s.Protocol.Hex(),
		Moderated:   s.Moderated,
		NextTokenID: s.NextTokenID,
		EpochPeriod: s.EpochPeriod,
	}
}

// ChannelDetail pairs the launch record with the live settings.
type ChannelDetail struct {
	ChannelView
	Settings SettingsView `json:"settings"`
	Reserves [2]string    `json:"reserves"`
}

// ProvisionView reports the LP minted by a provision and the pool reserves
// after it.
type ProvisionView struct {
	Pool     string    `json:"pool"`
	LPToken  string    `json:"lpToken"`
	To       string    `json:"to"`
	Minted   string    `json:"minted"`
	Reserves [2]string `json:"reserves"`
}

// ItemView describes one content item and its current price.
type ItemView struct {
	TokenID   uint64 `json:"tokenId"`
	Creator   string `json:"creator"`
	Owner     string `json:"owner"`
	URI       string `json:"uri"`
	Approved  bool   `json:"approved"`
	EpochID   uint64 `json:"epochId"`
	InitPrice string `json:"initPrice"`
	StartTime uint64 `json:"startTime"`
	Stake     string `json:"stake"`
	Price     string `json:"price"`
}

func itemView(item *content.Item, price *big.Int) ItemView {
	return ItemView{
		TokenID:   item.TokenID,
		Creator:   item.Creator.Hex(),
		Owner:     item.Owner.Hex(),
		URI:       item.URI,
		Approved:  item.Approved,
		EpochID:   item.EpochID,
		InitPrice: formatAmount(item.InitPrice),
		StartTime: item.StartTime,
		Stake:     formatAmount(item.Stake),
		Price:     formatAmount(price),
	}
}

// PriceView is the quote a collector signs against.
type PriceView struct {
	TokenID uint64 `json:"tokenId"`
	EpochID uint64 `json:"epochId"`
	Price   string `json:"price"`
}

// CollectReceiptView summarises a successful collect.
type CollectReceiptView struct {
	TokenID       uint64 `json:"tokenId"`
	EpochID       uint64 `json:"epochId"`
	PrevOwner     string `json:"prevOwner"`
	Price         string `json:"price"`
	OwnerShare    string `json:"ownerShare"`
	TreasuryShare string `json:"treasuryShare"`
	CreatorShare  string `json:"creatorShare"`
	TeamShare     string `json:"teamShare"`
	ProtocolShare string `json:"protocolShare"`
	NextInitPrice string `json:"nextInitPrice"`
}

func collectReceiptView(r *content.Receipt) CollectReceiptView {
	return CollectReceiptView{
		TokenID:       r.TokenID,
		EpochID:       r.EpochID,
		PrevOwner:     r.PrevOwner.Hex(),
		Price:         formatAmount(r.Price),
		OwnerShare:    formatAmount(r.Split.Owner),
		TreasuryShare: formatAmount(r.Split.Treasury),
		CreatorShare:  formatAmount(r.Split.Creator),
		TeamShare:     formatAmount(r.Split.Team),
		ProtocolShare: formatAmount(r.Split.Protocol),
		NextInitPrice: formatAmount(r.NextInitPrice),
	}
}

// RewardsView reports an account's stake and accrued rewards.
type RewardsView struct {
	Account     string            `json:"account"`
	Stake       string            `json:"stake"`
	TotalSupply string            `json:"totalSupply"`
	Earned      map[string]string `json:"earned"`
}

// MinterView is the public emission state.
type MinterView struct {
	Unit           string `json:"unit"`
	InitialRate    string `json:"initialRate"`
	FloorRate      string `json:"floorRate"`
	HalvingPeriod  uint64 `json:"halvingPeriod"`
	LaunchTime     uint64 `json:"launchTime"`
	ActivePeriod   uint64 `json:"activePeriod"`
	Pending        string `json:"pending"`
	CurrentRate    string `json:"currentRate"`
	WeeklyEmission string `json:"weeklyEmission"`
}

func minterView(s *minter.State, rate, weekly *big.Int) MinterView {
	return MinterView{
		Unit:           s.Unit.Hex(),
		InitialRate:    formatAmount(s.InitialRate),
		FloorRate:      formatAmount(s.FloorRate),
		HalvingPeriod:  s.HalvingPeriod,
		LaunchTime:     s.LaunchTime,
		ActivePeriod:   s.ActivePeriod,
		Pending:        formatAmount(s.Pending),
		CurrentRate:    formatAmount(rate),
		WeeklyEmission: formatAmount(weekly),
	}
}

// AuctionView is the public auction state.
type AuctionView struct {
	PaymentToken    string `json:"paymentToken"`
	PaymentReceiver string `json:"paymentReceiver"`
	EpochID         uint64 `json:"epochId"`
	InitPrice       string `json:"initPrice"`
	StartTime       uint64 `json:"startTime"`
	EpochPeriod     uint64 `json:"epochPeriod"`
	PriceMultiplier string `json:"priceMultiplier"`
	MinInitPrice    string `json:"minInitPrice"`
	Price           string `json:"price"`
}

func auctionView(s *auction.State, price *big.Int) AuctionView {
	return AuctionView{
		PaymentToken:    s.PaymentToken.Hex(),
		PaymentReceiver: s.PaymentReceiver.Hex(),
		EpochID:         s.EpochID,
		InitPrice:       formatAmount(s.InitPrice),
		StartTime:       s.StartTime,
		EpochPeriod:     s.EpochPeriod,
		PriceMultiplier: formatAmount(s.PriceMultiplier),
		MinInitPrice:    formatAmount(s.MinInitPrice),
		Price:           formatAmount(price),
	}
}

// AuctionReceiptView summarises a successful buy.
type AuctionReceiptView struct {
	EpochID       uint64            `json:"epochId"`
	Payment       string            `json:"payment"`
	Transferred   map[string]string `json:"transferred"`
	NextInitPrice string            `json:"nextInitPrice"`
}

func auctionReceiptView(r *auction.Receipt) AuctionReceiptView {
	transferred := make(map[string]string, len(r.Transferred))
	for token, amount := range r.Transferred {
		transferred[token.Hex()] = formatAmount(amount)
	}
	return AuctionReceiptView{
		EpochID:       r.EpochID,
		Payment:       formatAmount(r.Payment),
		Transferred:   transferred,
		NextInitPrice: formatAmount(r.NextInitPrice),
	}
}
