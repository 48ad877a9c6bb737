package config

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/native/bank"
	"contentchain/native/registry"
)

// Resolve converts the registry section into its identity and launch policy.
func (r RegistryConfig) Resolve() (common.Address, registry.Config, error) {
	addr, err := ParseAddress(r.Address)
	if err != nil {
		return common.Address{}, registry.Config{}, fmt.Errorf("registry.address: %w", err)
	}
	cfg := registry.Config{}
	if r.QuoteToken != "" {
		if cfg.QuoteToken, err = ParseAddress(r.QuoteToken); err != nil {
			return common.Address{}, registry.Config{}, fmt.Errorf("registry.quote_token: %w", err)
		}
	}
	if r.Protocol != "" {
		if cfg.Protocol, err = ParseAddress(r.Protocol); err != nil {
			return common.Address{}, registry.Config{}, fmt.Errorf("registry.protocol: %w", err)
		}
	}
	if cfg.MinQuoteForLaunch, err = ParseAmount(r.MinQuoteForLaunch); err != nil {
		return common.Address{}, registry.Config{}, fmt.Errorf("registry.min_quote_for_launch: %w", err)
	}
	return addr, cfg, nil
}

// Token converts a token section into ledger metadata and seed balances.
func (t TokenConfig) Token() (*bank.Token, map[common.Address]*big.Int, error) {
	addr, err := ParseAddress(t.Address)
	if err != nil {
		return nil, nil, fmt.Errorf("token address: %w", err)
	}
	meta := &bank.Token{Address: addr, Name: t.Name, Symbol: t.Symbol, Decimals: t.Decimals}
	if t.MintAuthority != "" {
		if meta.MintAuthority, err = ParseAddress(t.MintAuthority); err != nil {
			return nil, nil, fmt.Errorf("token %s mint authority: %w", t.Symbol, err)
		}
	}
	balances := make(map[common.Address]*big.Int, len(t.Balances))
	for account, raw := range t.Balances {
		holder, err := ParseAddress(account)
		if err != nil {
			return nil, nil, fmt.Errorf("token %s balance holder: %w", t.Symbol, err)
		}
		amount, err := ParseAmount(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("token %s balance: %w", t.Symbol, err)
		}
		if amount != nil {
			balances[holder] = amount
		}
	}
	return meta, balances, nil
}

// LaunchParams converts a channel section into registry launch parameters.
func (c ChannelConfig) LaunchParams() (registry.LaunchParams, error) {
	launcher, err := ParseAddress(c.Launcher)
	if err != nil {
		return registry.LaunchParams{}, fmt.Errorf("channel %s launcher: %w", c.Symbol, err)
	}
	params := registry.LaunchParams{
		Launcher:           launcher,
		TokenName:          c.Name,
		TokenSymbol:        c.Symbol,
		URI:                c.URI,
		HalvingPeriod:      int64(c.HalvingPeriod.Seconds()),
		EpochPeriod:        int64(c.EpochPeriod.Seconds()),
		Moderated:          c.Moderated,
		AuctionEpochPeriod: int64(c.AuctionEpochPeriod.Seconds()),
	}
	amounts := []struct {
		name string
		raw  string
		dst  **big.Int
	}{
		{"quote_amount", c.QuoteAmount, &params.QuoteAmount},
		{"unit_amount", c.UnitAmount, &params.UnitAmount},
		{"initial_rate", c.InitialRate, &params.InitialRate},
		{"floor_rate", c.FloorRate, &params.FloorRate},
		{"floor_price", c.FloorPrice, &params.FloorPrice},
		{"auction_init_price", c.AuctionInitPrice, &params.AuctionInitPrice},
		{"auction_price_multiplier", c.AuctionPriceMultiplier, &params.AuctionPriceMultiplier},
		{"auction_min_init_price", c.AuctionMinInitPrice, &params.AuctionMinInitPrice},
	}
	for _, amount := range amounts {
		value, err := ParseAmount(amount.raw)
		if err != nil {
			return registry.LaunchParams{}, fmt.Errorf("channel %s %s: %w", c.Symbol, amount.name, err)
		}
		*amount.dst = value
	}
	return params, nil
}
