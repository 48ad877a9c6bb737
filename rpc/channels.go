package rpc

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/native/content"
	"contentchain/native/registry"
)

func (s *Server) handleListChannels(w http.ResponseWriter, _ *http.Request) {
	channels := s.registry.Channels()
	out := make([]ChannelView, 0, len(channels))
	for _, ch := range channels {
		out = append(out, channelView(ch.Record))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"channels": out})
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	detail := ChannelDetail{ChannelView: channelView(ch.Record)}
	err = s.host.View(func() error {
		settings, err := ch.Content.Settings()
		if err != nil {
			return err
		}
		detail.Settings = settingsView(settings)
		r0, r1, err := ch.Pool.Reserves()
		if err != nil {
			return err
		}
		detail.Reserves = [2]string{formatAmount(r0), formatAmount(r1)}
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var view ItemView
	err = s.host.View(func() error {
		item, err := ch.Content.Item(id)
		if err != nil {
			return err
		}
		price, err := ch.Content.GetPrice(id)
		if err != nil {
			return err
		}
		view = itemView(item, price)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var view PriceView
	err = s.host.View(func() error {
		item, err := ch.Content.Item(id)
		if err != nil {
			return err
		}
		price, err := ch.Content.GetPrice(id)
		if err != nil {
			return err
		}
		view = PriceView{TokenID: id, EpochID: item.EpochID, Price: formatAmount(price)}
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type createRequest struct {
	To  string `json:"to"`
	URI string `json:"uri"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	to := caller(r)
	if req.To != "" {
		if to, err = parseAddress("to", req.To); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	var id uint64
	err = s.host.Execute(r.Context(), "content.create", func() error {
		var err error
		id, err = ch.Content.Create(to, req.URI)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"tokenId": id})
}

type collectRequest struct {
	To       string `json:"to"`
	EpochID  uint64 `json:"epochId"`
	Deadline int64  `json:"deadline"`
	MaxPrice string `json:"maxPrice"`
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req collectRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	from := caller(r)
	to := from
	if req.To != "" {
		if to, err = parseAddress("to", req.To); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	maxPrice, err := parseAmount("maxPrice", req.MaxPrice)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if maxPrice == nil {
		s.fail(w, r, invalid(errors.New("maxPrice is required")))
		return
	}
	var receipt *content.Receipt
	err = s.host.Execute(r.Context(), "content.collect", func() error {
		var err error
		receipt, err = ch.Content.Collect(from, to, id, req.EpochID, req.Deadline, maxPrice)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collectReceiptView(receipt))
}

type approveRequest struct {
	IDs []uint64 `json:"ids"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	err = s.host.Execute(r.Context(), "content.approve", func() error {
		return ch.Content.ApproveItems(caller(r), req.IDs)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"approved": req.IDs})
}

func (s *Server) handleClaimable(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	account, err := pathAddress(r, "account")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var amount *big.Int
	err = s.host.View(func() error {
		var err error
		amount, err = ch.Content.Claimable(account)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account": account.Hex(), "claimable": formatAmount(amount)})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	account := caller(r)
	var amount *big.Int
	err = s.host.Execute(r.Context(), "content.claim", func() error {
		var err error
		amount, err = ch.Content.Claim(account)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account": account.Hex(), "claimed": formatAmount(amount)})
}

type moderatorsRequest struct {
	Accounts    []string `json:"accounts"`
	IsModerator bool     `json:"isModerator"`
}

func (s *Server) handleSetModerators(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req moderatorsRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	accounts, err := parseAddresses("accounts", req.Accounts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	err = s.host.Execute(r.Context(), "content.moderators", func() error {
		return ch.Content.SetModerators(caller(r), accounts, req.IsModerator)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": req.Accounts, "isModerator": req.IsModerator})
}

type moderationRequest struct {
	Moderated bool `json:"moderated"`
}

func (s *Server) handleSetModeration(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req moderationRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	err = s.host.Execute(r.Context(), "content.moderation", func() error {
		return ch.Content.SetIsModerated(caller(r), req.Moderated)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"moderated": req.Moderated})
}

// adminRequest applies every present field in one operation.
type adminRequest struct {
	URI       *string `json:"uri"`
	Treasury  *string `json:"treasury"`
	Team      *string `json:"team"`
	Owner     *string `json:"owner"`
	AddReward *string `json:"addReward"`
}

func optionalAddress(field string, raw *string) (*common.Address, error) {
	if raw == nil {
		return nil, nil
	}
	addr, err := parseAddress(field, *raw)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req adminRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var parsed [4]*common.Address
	for i, field := range []struct {
		name string
		raw  *string
	}{{"treasury", req.Treasury}, {"team", req.Team}, {"owner", req.Owner}, {"addReward", req.AddReward}} {
		if parsed[i], err = optionalAddress(field.name, field.raw); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	treasury, team, owner, reward := parsed[0], parsed[1], parsed[2], parsed[3]
	from := caller(r)
	err = s.host.Execute(r.Context(), "content.admin", func() error {
		if req.URI != nil {
			if err := ch.Content.SetURI(from, *req.URI); err != nil {
				return err
			}
		}
		if treasury != nil {
			if err := ch.Content.SetTreasury(from, *treasury); err != nil {
				return err
			}
		}
		if team != nil {
			if err := ch.Content.SetTeam(from, *team); err != nil {
				return err
			}
		}
		if reward != nil {
			if err := ch.Content.AddReward(from, *reward); err != nil {
				return err
			}
		}
		// Ownership moves last so the earlier changes are still authorised.
		if owner != nil {
			if err := ch.Content.TransferOwnership(from, *owner); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var settings SettingsView
	if err := s.host.View(func() error {
		st, err := ch.Content.Settings()
		if err != nil {
			return err
		}
		settings = settingsView(st)
		return nil
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	account, err := pathAddress(r, "account")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view := RewardsView{Account: account.Hex(), Earned: map[string]string{}}
	err = s.host.View(func() error {
		stake, err := ch.Rewarder.BalanceOf(account)
		if err != nil {
			return err
		}
		total, err := ch.Rewarder.TotalSupply()
		if err != nil {
			return err
		}
		tokens, err := ch.Rewarder.RewardTokens()
		if err != nil {
			return err
		}
		for _, token := range tokens {
			earned, err := ch.Rewarder.Earned(account, token)
			if err != nil {
				return err
			}
			view.Earned[token.Hex()] = formatAmount(earned)
		}
		view.Stake = formatAmount(stake)
		view.TotalSupply = formatAmount(total)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleRewardsClaim pays out accrued rewards. Proceeds always go to the
// account itself, so anyone may trigger it.
func (s *Server) handleRewardsClaim(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	account, err := pathAddress(r, "account")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var paid map[common.Address]*big.Int
	err = s.host.Execute(r.Context(), "rewarder.claim", func() error {
		var err error
		paid, err = ch.Rewarder.GetReward(account)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make(map[string]string, len(paid))
	for token, amount := range paid {
		out[token.Hex()] = formatAmount(amount)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"account": account.Hex(), "paid": out})
}

func (s *Server) handleMinter(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var view MinterView
	err = s.host.View(func() error {
		st, err := ch.Minter.State()
		if err != nil {
			return err
		}
		rate, err := ch.Minter.GetCurrentRate()
		if err != nil {
			return err
		}
		weekly, err := ch.Minter.WeeklyEmission()
		if err != nil {
			return err
		}
		view = minterView(st, rate, weekly)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleMinterUpdate advances emissions. The operation is permissionless.
func (s *Server) handleMinterUpdate(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var minted *big.Int
	err = s.host.Execute(r.Context(), "minter.update", func() error {
		var err error
		minted, err = ch.Minter.UpdatePeriod()
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"minted": formatAmount(minted)})
}

func (s *Server) handleAuction(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var view AuctionView
	err = s.host.View(func() error {
		st, err := ch.Auction.State()
		if err != nil {
			return err
		}
		price, err := ch.Auction.GetPrice()
		if err != nil {
			return err
		}
		view = auctionView(st, price)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type buyRequest struct {
	Assets     []string `json:"assets"`
	To         string   `json:"to"`
	EpochID    uint64   `json:"epochId"`
	Deadline   int64    `json:"deadline"`
	MaxPayment string   `json:"maxPayment"`
}

func (s *Server) handleAuctionBuy(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req buyRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	assets, err := parseAddresses("assets", req.Assets)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	from := caller(r)
	to := from
	if req.To != "" {
		if to, err = parseAddress("to", req.To); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	maxPayment, err := parseAmount("maxPayment", req.MaxPayment)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if maxPayment == nil {
		s.fail(w, r, invalid(errors.New("maxPayment is required")))
		return
	}
	var receipt AuctionReceiptView
	err = s.host.Execute(r.Context(), "auction.buy", func() error {
		rcpt, err := ch.Auction.Buy(from, assets, to, req.EpochID, req.Deadline, maxPayment)
		if err != nil {
			return err
		}
		receipt = auctionReceiptView(rcpt)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type provisionRequest struct {
	To      string `json:"to"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

// handleProvision adds liquidity to the channel pool from the caller. The LP
// tokens it mints are what the treasury auction is paid in.
func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channel(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req provisionRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	from := caller(r)
	to := from
	if req.To != "" {
		if to, err = parseAddress("to", req.To); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	amount0, err := parseAmount("amount0", req.Amount0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amount1, err := parseAmount("amount1", req.Amount1)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view := ProvisionView{Pool: ch.Pool.Address().Hex(), LPToken: ch.Pool.LPToken().Hex(), To: to.Hex()}
	err = s.host.Execute(r.Context(), "amm.provision", func() error {
		minted, err := ch.Pool.Provision(from, to, amount0, amount1)
		if err != nil {
			return err
		}
		r0, r1, err := ch.Pool.Reserves()
		if err != nil {
			return err
		}
		view.Minted = formatAmount(minted)
		view.Reserves = [2]string{formatAmount(r0), formatAmount(r1)}
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type launchRequest struct {
	Launcher               string `json:"launcher"`
	TokenName              string `json:"tokenName"`
	TokenSymbol            string `json:"tokenSymbol"`
	URI                    string `json:"uri"`
	QuoteAmount            string `json:"quoteAmount"`
	UnitAmount             string `json:"unitAmount"`
	InitialRate            string `json:"initialRate"`
	FloorRate              string `json:"floorRate"`
	HalvingPeriod          int64  `json:"halvingPeriod"`
	FloorPrice             string `json:"floorPrice"`
	EpochPeriod            int64  `json:"epochPeriod"`
	Moderated              bool   `json:"moderated"`
	AuctionInitPrice       string `json:"auctionInitPrice"`
	AuctionEpochPeriod     int64  `json:"auctionEpochPeriod"`
	AuctionPriceMultiplier string `json:"auctionPriceMultiplier"`
	AuctionMinInitPrice    string `json:"auctionMinInitPrice"`
}

func (req launchRequest) params(from common.Address) (registry.LaunchParams, error) {
	params := registry.LaunchParams{
		Launcher:           from,
		TokenName:          req.TokenName,
		TokenSymbol:        req.TokenSymbol,
		URI:                req.URI,
		HalvingPeriod:      req.HalvingPeriod,
		EpochPeriod:        req.EpochPeriod,
		Moderated:          req.Moderated,
		AuctionEpochPeriod: req.AuctionEpochPeriod,
	}
	if req.Launcher != "" {
		launcher, err := parseAddress("launcher", req.Launcher)
		if err != nil {
			return registry.LaunchParams{}, err
		}
		if launcher != from {
			return registry.LaunchParams{}, errCallerMismatch
		}
	}
	amounts := []struct {
		name string
		raw  string
		dst  **big.Int
	}{
		{"quoteAmount", req.QuoteAmount, &params.QuoteAmount},
		{"unitAmount", req.UnitAmount, &params.UnitAmount},
		{"initialRate", req.InitialRate, &params.InitialRate},
		{"floorRate", req.FloorRate, &params.FloorRate},
		{"floorPrice", req.FloorPrice, &params.FloorPrice},
		{"auctionInitPrice", req.AuctionInitPrice, &params.AuctionInitPrice},
		{"auctionPriceMultiplier", req.AuctionPriceMultiplier, &params.AuctionPriceMultiplier},
		{"auctionMinInitPrice", req.AuctionMinInitPrice, &params.AuctionMinInitPrice},
	}
	for _, amount := range amounts {
		v, err := parseAmount(amount.name, amount.raw)
		if err != nil {
			return registry.LaunchParams{}, err
		}
		*amount.dst = v
	}
	return params, nil
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var req launchRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	params, err := req.params(caller(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ch, err := s.registry.LaunchIn(r.Context(), s.host, params)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, channelView(ch.Record))
}
