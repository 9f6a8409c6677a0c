package bank

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAmount       = errors.New("bank: amount must not be negative")
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrRecipientRejected   = errors.New("bank: recipient does not accept transfers")
	errNilState            = errors.New("bank: state not configured")
)

type ledgerState interface {
	Balance(addr []byte) (*big.Int, error)
	SetBalance(addr []byte, amount *big.Int) error
	Payable(addr []byte) (bool, error)
}

// Ledger moves native currency between account balances held in state.
type Ledger struct {
	state ledgerState
}

// NewLedger constructs a ledger over the provided state.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state}
}

// Transfer debits amount from sender and credits it to recipient. Recipients
// marked as non-payable reject every transfer, including zero-value ones.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	payable, err := l.state.Payable(to.Bytes())
	if err != nil {
		return err
	}
	if !payable {
		return fmt.Errorf("%w: %s", ErrRecipientRejected, to.Hex())
	}
	balance, err := l.state.Balance(from.Bytes())
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, from.Hex(), balance, amount)
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := l.state.SetBalance(from.Bytes(), new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	return l.Credit(to, amount)
}

// Credit adds amount to the balance of addr without a matching debit. It is
// used for genesis allocations and operator funding.
func (l *Ledger) Credit(addr common.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	balance, err := l.state.Balance(addr.Bytes())
	if err != nil {
		return err
	}
	return l.state.SetBalance(addr.Bytes(), new(big.Int).Add(balance, amount))
}
