package modules

import (
	"encoding/json"

	"github.com/plebbit/plebbit-tipping-v1/core"
)

// BankModule exposes native balances.
type BankModule struct {
	node *core.Node
}

// NewBankModule constructs the balance RPC module.
func NewBankModule(node *core.Node) *BankModule {
	return &BankModule{node: node}
}

type balanceParams struct {
	Address string `json:"address"`
}

// BalanceResult describes an account's native balance.
type BalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Payable bool   `json:"payable"`
}

// Balance returns the committed balance of an address.
func (m *BankModule) Balance(raw json.RawMessage) (*BalanceResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params balanceParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	balance, err := m.node.Balance(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	payable, err := m.node.Payable(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	return &BalanceResult{Address: addr.Hex(), Balance: bigString(balance), Payable: payable}, nil
}
