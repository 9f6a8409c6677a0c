package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/plebbit/plebbit-tipping-v1/native/tipping"
)

// TippingParams returns the stored ledger configuration.
func (m *Manager) TippingParams() (*tipping.Params, bool, error) {
	params := new(tipping.Params)
	ok, err := m.getRLP(TippingParamsKey(), params)
	if err != nil || !ok {
		return nil, ok, err
	}
	if params.MinimumTipAmount == nil {
		params.MinimumTipAmount = big.NewInt(0)
	}
	return params, true, nil
}

// TippingParamsPut stores the ledger configuration.
func (m *Manager) TippingParamsPut(params *tipping.Params) error {
	if params == nil {
		return fmt.Errorf("tipping: params must not be nil")
	}
	return m.putRLP(TippingParamsKey(), params)
}

// TippingInitialized reports whether the ledger configuration was initialised.
func (m *Manager) TippingInitialized() (bool, error) {
	var initialized bool
	if _, err := m.getRLP(TippingInitializedKey(), &initialized); err != nil {
		return false, err
	}
	return initialized, nil
}

// TippingMarkInitialized records that initialisation ran.
func (m *Manager) TippingMarkInitialized() error {
	return m.putRLP(TippingInitializedKey(), true)
}

// TippingTipCount returns the number of tips stored under key.
func (m *Manager) TippingTipCount(key common.Hash) (uint64, error) {
	var count uint64
	if _, err := m.getRLP(TippingTipCountKey(key), &count); err != nil {
		return 0, err
	}
	return count, nil
}

// TippingTipAt returns the tip stored at index under key.
func (m *Manager) TippingTipAt(key common.Hash, index uint64) (*tipping.TipRecord, bool, error) {
	record := new(tipping.TipRecord)
	ok, err := m.getRLP(TippingTipKey(key, index), record)
	if err != nil || !ok {
		return nil, false, err
	}
	if record.Amount == nil {
		record.Amount = big.NewInt(0)
	}
	return record, true, nil
}

// TippingTipAppend stores record after the existing tips of key and returns its
// index.
func (m *Manager) TippingTipAppend(key common.Hash, record *tipping.TipRecord) (uint64, error) {
	if record == nil {
		return 0, fmt.Errorf("tipping: record must not be nil")
	}
	count, err := m.TippingTipCount(key)
	if err != nil {
		return 0, err
	}
	if err := m.putRLP(TippingTipKey(key, count), record); err != nil {
		return 0, err
	}
	if err := m.putRLP(TippingTipCountKey(key), count+1); err != nil {
		return 0, err
	}
	return count, nil
}

// TippingRecipientTotal returns the running total of a recipient key.
func (m *Manager) TippingRecipientTotal(key common.Hash) (*big.Int, error) {
	return m.loadTotal(TippingRecipientTotalKey(key))
}

// TippingRecipientTotalPut stores the running total of a recipient key.
func (m *Manager) TippingRecipientTotalPut(key common.Hash, total *big.Int) error {
	return m.storeTotal(TippingRecipientTotalKey(key), total)
}

// TippingSenderTotal returns the running total of a sender key.
func (m *Manager) TippingSenderTotal(key common.Hash) (*big.Int, error) {
	return m.loadTotal(TippingSenderTotalKey(key))
}

// TippingSenderTotalPut stores the running total of a sender key.
func (m *Manager) TippingSenderTotalPut(key common.Hash, total *big.Int) error {
	return m.storeTotal(TippingSenderTotalKey(key), total)
}

func (m *Manager) loadTotal(key []byte) (*big.Int, error) {
	total := new(big.Int)
	ok, err := m.getRLP(key, total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return total, nil
}

func (m *Manager) storeTotal(key []byte, total *big.Int) error {
	if total == nil || total.Sign() < 0 {
		return fmt.Errorf("tipping: invalid total")
	}
	return m.putRLP(key, total)
}
