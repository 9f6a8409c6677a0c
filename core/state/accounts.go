package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	balancePrefix = []byte("balance:")
	payablePrefix = []byte("payable:")
)

func accountKey(prefix []byte, addr []byte) []byte {
	buf := make([]byte, len(prefix)+len(addr))
	copy(buf, prefix)
	copy(buf[len(prefix):], addr)
	return ethcrypto.Keccak256(buf)
}

// Balance returns the native balance of addr. Unknown accounts hold zero.
func (m *Manager) Balance(addr []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.getRLP(accountKey(balancePrefix, addr), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// SetBalance stores the native balance of addr.
func (m *Manager) SetBalance(addr []byte, amount *big.Int) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	if amount.Sign() == 0 {
		m.delete(accountKey(balancePrefix, addr))
		return nil
	}
	return m.putRLP(accountKey(balancePrefix, addr), amount)
}

// Payable reports whether addr accepts incoming transfers. Accounts are
// payable unless explicitly marked otherwise.
func (m *Manager) Payable(addr []byte) (bool, error) {
	var payable bool
	ok, err := m.getRLP(accountKey(payablePrefix, addr), &payable)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return payable, nil
}

// SetPayable marks whether addr accepts incoming transfers.
func (m *Manager) SetPayable(addr []byte, payable bool) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if payable {
		m.delete(accountKey(payablePrefix, addr))
		return nil
	}
	return m.putRLP(accountKey(payablePrefix, addr), false)
}
