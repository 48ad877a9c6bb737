package bank

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"contentchain/core/events"
)

var (
	ErrNilState            = errors.New("bank: state not configured")
	ErrUnknownToken        = errors.New("bank: unknown token")
	ErrTokenExists         = errors.New("bank: token already registered")
	ErrInvalidToken        = errors.New("bank: token metadata invalid")
	ErrMintUnauthorized    = errors.New("bank: caller is not the mint authority")
	ErrInvalidAmount       = errors.New("bank: amount must not be negative")
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
)

var (
	tokenPrefix   = []byte("bank/token/")
	balancePrefix = []byte("bank/balance/")
	supplyPrefix  = []byte("bank/supply/")
)

// Token describes a fungible asset tracked by the ledger.
type Token struct {
	Address       common.Address
	Name          string
	Symbol        string
	Decimals      uint8
	MintAuthority common.Address
}

// Clone returns a copy of the metadata.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger is the multi-token balance book shared by every channel component.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger constructs a ledger with a no-op emitter.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEmitter configures the event emitter used by the ledger.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func tokenKey(token common.Address) []byte {
	return append(append([]byte(nil), tokenPrefix...), token.Bytes()...)
}

func balanceKey(token, account common.Address) []byte {
	key := append(append([]byte(nil), balancePrefix...), token.Bytes()...)
	return append(key, account.Bytes()...)
}

func supplyKey(token common.Address) []byte {
	return append(append([]byte(nil), supplyPrefix...), token.Bytes()...)
}

// RegisterToken records a new token. The address must be unused.
func (l *Ledger) RegisterToken(meta *Token) error {
	if l.state == nil {
		return ErrNilState
	}
	if meta == nil || meta.Address == (common.Address{}) {
		return ErrInvalidToken
	}
	record := meta.Clone()
	record.Name = strings.TrimSpace(record.Name)
	record.Symbol = strings.TrimSpace(record.Symbol)
	if record.Name == "" || record.Symbol == "" {
		return ErrInvalidToken
	}
	ok, err := l.state.KVGet(tokenKey(record.Address), nil)
	if err != nil {
		return err
	}
	if ok {
		return ErrTokenExists
	}
	if err := l.state.KVPut(tokenKey(record.Address), record); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenRegistered{
		Token:         record.Address,
		Name:          record.Name,
		Symbol:        record.Symbol,
		Decimals:      record.Decimals,
		MintAuthority: record.MintAuthority,
	})
	return nil
}

// Token returns the metadata of a registered token.
func (l *Ledger) Token(token common.Address) (*Token, error) {
	if l.state == nil {
		return nil, ErrNilState
	}
	meta := new(Token)
	ok, err := l.state.KVGet(tokenKey(token), meta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownToken
	}
	return meta, nil
}

// SetMintAuthority hands the mint capability to a new account. Only the
// current authority may do so.
func (l *Ledger) SetMintAuthority(caller, token, authority common.Address) error {
	meta, err := l.Token(token)
	if err != nil {
		return err
	}
	if meta.MintAuthority != caller {
		return ErrMintUnauthorized
	}
	previous := meta.MintAuthority
	meta.MintAuthority = authority
	if err := l.state.KVPut(tokenKey(token), meta); err != nil {
		return err
	}
	l.emitter.Emit(events.MintAuthoritySet{Token: token, Previous: previous, Authority: authority})
	return nil
}

// BalanceOf returns the balance of account in token. Unknown tokens report zero.
func (l *Ledger) BalanceOf(token, account common.Address) (*big.Int, error) {
	if l.state == nil {
		return nil, ErrNilState
	}
	balance := new(big.Int)
	if _, err := l.state.KVGet(balanceKey(token, account), balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// TotalSupply returns the minted supply of token.
func (l *Ledger) TotalSupply(token common.Address) (*big.Int, error) {
	if l.state == nil {
		return nil, ErrNilState
	}
	supply := new(big.Int)
	if _, err := l.state.KVGet(supplyKey(token), supply); err != nil {
		return nil, err
	}
	return supply, nil
}

func (l *Ledger) putBalance(token, account common.Address, amount *big.Int) error {
	return l.state.KVPut(balanceKey(token, account), amount)
}

// Mint creates amount of token for to. Zero amounts are a no-op.
func (l *Ledger) Mint(caller, token, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	meta, err := l.Token(token)
	if err != nil {
		return err
	}
	if meta.MintAuthority != caller {
		return ErrMintUnauthorized
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := l.BalanceOf(token, to)
	if err != nil {
		return err
	}
	supply, err := l.TotalSupply(token)
	if err != nil {
		return err
	}
	balance.Add(balance, amount)
	supply.Add(supply, amount)
	if err := l.putBalance(token, to, balance); err != nil {
		return err
	}
	if err := l.state.KVPut(supplyKey(token), supply); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenMinted{Token: token, To: to, Amount: new(big.Int).Set(amount), Supply: supply})
	return nil
}

// Transfer moves amount of token from one account to another. Zero amounts
// are a no-op so callers do not need to special-case free operations.
func (l *Ledger) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if _, err := l.Token(token); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBalance, err := l.BalanceOf(token, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBalance, err := l.BalanceOf(token, to)
	if err != nil {
		return err
	}
	fromBalance.Sub(fromBalance, amount)
	toBalance.Add(toBalance, amount)
	if err := l.putBalance(token, from, fromBalance); err != nil {
		return err
	}
	if err := l.putBalance(token, to, toBalance); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenTransfer{Token: token, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}
