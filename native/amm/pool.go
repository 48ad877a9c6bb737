// Package amm is the liquidity boundary of a channel. Pools hold their
// reserves in the bank under the pool identity; swaps are not offered.
package amm

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/events"
	"contentchain/native/bank"
)

// MinimumLiquidity is locked at the burn address on the first provision so
// the LP supply can never return to zero.
var MinimumLiquidity = big.NewInt(1000)

var (
	ErrNilBank               = errors.New("amm: bank not configured")
	ErrIdenticalTokens       = errors.New("amm: pool tokens must differ")
	ErrInsufficientAmount    = errors.New("amm: amounts must be positive")
	ErrInsufficientLiquidity = errors.New("amm: liquidity minted is zero")
	ErrEmptyPool             = errors.New("amm: pool has no reserves")
)

// Pool is the read and provisioning surface channels depend on.
type Pool interface {
	Address() common.Address
	Token0() common.Address
	Token1() common.Address
	LPToken() common.Address
	Reserves() (*big.Int, *big.Int, error)
	Provision(provider, to common.Address, amount0, amount1 *big.Int) (*big.Int, error)
}

type ledger interface {
	RegisterToken(meta *bank.Token) error
	Mint(caller, token, to common.Address, amount *big.Int) error
	Transfer(token, from, to common.Address, amount *big.Int) error
	BalanceOf(token, account common.Address) (*big.Int, error)
	TotalSupply(token common.Address) (*big.Int, error)
}

// ConstantProduct is an x*y=k pool whose LP token is minted by the pool
// identity.
type ConstantProduct struct {
	addr    common.Address
	token0  common.Address
	token1  common.Address
	lp      common.Address
	burn    common.Address
	bank    ledger
	emitter events.Emitter
}

// NewConstantProduct binds a pool to its identity, reserve tokens and LP
// token address. Call Register once before the first provision.
func NewConstantProduct(addr, token0, token1, lp, burn common.Address, bank ledger) (*ConstantProduct, error) {
	if bank == nil {
		return nil, ErrNilBank
	}
	if token0 == token1 {
		return nil, ErrIdenticalTokens
	}
	return &ConstantProduct{
		addr:    addr,
		token0:  token0,
		token1:  token1,
		lp:      lp,
		burn:    burn,
		bank:    bank,
		emitter: events.NoopEmitter{},
	}, nil
}

// SetEmitter configures the event emitter used by the pool.
func (p *ConstantProduct) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		p.emitter = events.NoopEmitter{}
		return
	}
	p.emitter = emitter
}

// Register creates the LP token with the pool as its mint authority.
func (p *ConstantProduct) Register(name, symbol string) error {
	return p.bank.RegisterToken(&bank.Token{
		Address:       p.lp,
		Name:          name,
		Symbol:        symbol,
		Decimals:      18,
		MintAuthority: p.addr,
	})
}

func (p *ConstantProduct) Address() common.Address { return p.addr }
func (p *ConstantProduct) Token0() common.Address  { return p.token0 }
func (p *ConstantProduct) Token1() common.Address  { return p.token1 }
func (p *ConstantProduct) LPToken() common.Address { return p.lp }

// Reserves returns the pool's balances of token0 and token1.
func (p *ConstantProduct) Reserves() (*big.Int, *big.Int, error) {
	r0, err := p.bank.BalanceOf(p.token0, p.addr)
	if err != nil {
		return nil, nil, err
	}
	r1, err := p.bank.BalanceOf(p.token1, p.addr)
	if err != nil {
		return nil, nil, err
	}
	return r0, r1, nil
}

// Price returns token1 per token0 scaled by 1e18.
func (p *ConstantProduct) Price() (*big.Int, error) {
	r0, r1, err := p.Reserves()
	if err != nil {
		return nil, err
	}
	if r0.Sign() == 0 {
		return nil, ErrEmptyPool
	}
	scaled := new(big.Int).Mul(r1, big.NewInt(1_000_000_000_000_000_000))
	return scaled.Quo(scaled, r0), nil
}

// Provision moves both amounts from provider into the pool and mints LP
// tokens to to. The first deposit mints sqrt(amount0*amount1) less
// MinimumLiquidity; later deposits mint in proportion to the smaller side.
func (p *ConstantProduct) Provision(provider, to common.Address, amount0, amount1 *big.Int) (*big.Int, error) {
	if amount0 == nil || amount1 == nil || amount0.Sign() <= 0 || amount1.Sign() <= 0 {
		return nil, ErrInsufficientAmount
	}
	r0, r1, err := p.Reserves()
	if err != nil {
		return nil, err
	}
	supply, err := p.bank.TotalSupply(p.lp)
	if err != nil {
		return nil, err
	}
	var minted *big.Int
	if supply.Sign() == 0 {
		root := new(big.Int).Sqrt(new(big.Int).Mul(amount0, amount1))
		if root.Cmp(MinimumLiquidity) <= 0 {
			return nil, ErrInsufficientLiquidity
		}
		minted = root.Sub(root, MinimumLiquidity)
	} else {
		if r0.Sign() == 0 || r1.Sign() == 0 {
			return nil, ErrEmptyPool
		}
		a := new(big.Int).Mul(amount0, supply)
		a.Quo(a, r0)
		b := new(big.Int).Mul(amount1, supply)
		b.Quo(b, r1)
		minted = a
		if b.Cmp(a) < 0 {
			minted = b
		}
		if minted.Sign() == 0 {
			return nil, ErrInsufficientLiquidity
		}
	}
	if err := p.bank.Transfer(p.token0, provider, p.addr, amount0); err != nil {
		return nil, err
	}
	if err := p.bank.Transfer(p.token1, provider, p.addr, amount1); err != nil {
		return nil, err
	}
	if supply.Sign() == 0 {
		if err := p.bank.Mint(p.addr, p.lp, p.burn, MinimumLiquidity); err != nil {
			return nil, err
		}
	}
	if err := p.bank.Mint(p.addr, p.lp, to, minted); err != nil {
		return nil, err
	}
	p.emitter.Emit(events.PoolProvisioned{
		Pool:     p.addr,
		Provider: provider,
		To:       to,
		Amount0:  new(big.Int).Set(amount0),
		Amount1:  new(big.Int).Set(amount1),
		Minted:   new(big.Int).Set(minted),
	})
	return minted, nil
}
