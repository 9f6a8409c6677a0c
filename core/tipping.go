package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/plebbit/plebbit-tipping-v1/native/tipping"
)

// RecordTip records a tip paid by sender with value attached.
func (n *Node) RecordTip(sender common.Address, value *big.Int, req tipping.TipRequest) (*tipping.TipReceipt, error) {
	var receipt *tipping.TipReceipt
	err := n.apply("record_tip", func() error {
		var err error
		receipt, err = n.tipping.RecordTip(sender, value, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.metrics.ObserveTip(receipt.Record.Amount, receipt.Fee)
	return receipt, nil
}

// SetMinimumTipAmount updates the minimum tip on behalf of caller.
func (n *Node) SetMinimumTipAmount(caller common.Address, value *big.Int) error {
	return n.apply("set_minimum_tip_amount", func() error {
		return n.tipping.SetMinimumTipAmount(caller, value)
	})
}

// SetFeePercent updates the fee percent on behalf of caller.
func (n *Node) SetFeePercent(caller common.Address, value uint64) error {
	return n.apply("set_fee_percent", func() error {
		return n.tipping.SetFeePercent(caller, value)
	})
}

// GrantModerator grants the moderator role on behalf of caller.
func (n *Node) GrantModerator(caller, account common.Address) error {
	return n.apply("grant_moderator", func() error {
		return n.tipping.GrantModerator(caller, account)
	})
}

// RevokeModerator revokes the moderator role on behalf of caller.
func (n *Node) RevokeModerator(caller, account common.Address) error {
	return n.apply("revoke_moderator", func() error {
		return n.tipping.RevokeModerator(caller, account)
	})
}

// Params returns the committed ledger configuration.
func (n *Node) Params() (*tipping.Params, error) {
	if n == nil {
		return nil, errNilNode
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tipping.Params()
}

// HasRole reports whether account holds role.
func (n *Node) HasRole(role string, account common.Address) bool {
	if n == nil {
		return false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tipping.HasRole(role, account)
}

// RoleMembers lists the accounts holding role in address order.
func (n *Node) RoleMembers(role string) ([]common.Address, error) {
	if n == nil {
		return nil, errNilNode
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	raw, err := n.state.RoleMembers(role)
	if err != nil {
		return nil, err
	}
	members := make([]common.Address, 0, len(raw))
	for _, member := range raw {
		members = append(members, common.BytesToAddress(member))
	}
	return members, nil
}

// RecipientTotal wraps tipping.Engine.RecipientTotal with a consistent read.
func (n *Node) RecipientTotal(cid common.Hash, feeRecipients []common.Address) (*big.Int, error) {
	if n == nil {
		return nil, errNilNode
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tipping.RecipientTotal(cid, feeRecipients)
}

// RecipientTotals wraps tipping.Engine.RecipientTotals with a consistent read.
func (n *Node) RecipientTotals(cids []common.Hash, feeRecipientsPerCID [][]common.Address) ([]*big.Int, error) {
	if n == nil {
		return nil, errNilNode
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tipping.RecipientTotals(cids, feeRecipientsPerCID)
}

// RecipientTotalsUniform wraps tipping.Engine.RecipientTotalsUniform with a
// consistent read.
func (n *Node) RecipientTotalsUniform(cids []common.Hash, feeRecipients []common.Address) ([]*big.Int, error) {
	if n == nil {
		return nil, errNilNode
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tipping.RecipientTotalsUniform(cids, feeRecipients)
}

// SenderTotal wraps tipping.Engine.SenderTotal with a consistent read.
func (n *Node) SenderTotal(senderCID common.Hash, sender common.Address, recipientCID common.Hash, feeRecipients []common.Address) (*big.Int, error) {
	if n == nil {
		return nil, errNilNode
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tipping.SenderTotal(senderCID, sender, recipientCID, feeRecipients)
}

// SenderTotals wraps tipping.Engine.SenderTotals with a consistent read.
func (n *Node) SenderTotals(sender common.Address, senderCIDs, recipientCIDs []common.Hash, feeRecipientsPerCID [][]common.Address) ([]*big.Int, error) {
	if n == nil {
		return nil, errNilNode
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tipping.SenderTotals(sender, senderCIDs, recipientCIDs, feeRecipientsPerCID)
}

// SenderTotalsUniform wraps tipping.Engine.SenderTotalsUniform with a
// consistent read.
func (n *Node) SenderTotalsUniform(sender common.Address, senderCIDs, recipientCIDs []common.Hash, feeRecipients []common.Address) ([]*big.Int, error) {
	if n == nil {
		return nil, errNilNode
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tipping.SenderTotalsUniform(sender, senderCIDs, recipientCIDs, feeRecipients)
}

// Tips returns one page of the concatenated tip lists.
func (n *Node) Tips(cid common.Hash, feeRecipients []common.Address, offset, limit uint64) ([]*tipping.TipRecord, error) {
	if n == nil {
		return nil, errNilNode
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tipping.Tips(cid, feeRecipients, offset, limit)
}

// TipsAmounts returns the amounts of one page of the concatenated tip lists.
func (n *Node) TipsAmounts(cid common.Hash, feeRecipients []common.Address, offset, limit uint64) ([]*big.Int, error) {
	if n == nil {
		return nil, errNilNode
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tipping.TipsAmounts(cid, feeRecipients, offset, limit)
}

// TipsCount returns the length of the concatenated tip lists.
func (n *Node) TipsCount(cid common.Hash, feeRecipients []common.Address) (uint64, error) {
	if n == nil {
		return 0, errNilNode
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tipping.TipsCount(cid, feeRecipients)
}
