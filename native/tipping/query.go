package tipping

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RecipientTotal sums the recipient totals of cid under every fee recipient.
// Duplicate fee recipients are counted once per occurrence.
func (e *Engine) RecipientTotal(recipientCommentCID common.Hash, feeRecipients []common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	sum := big.NewInt(0)
	for _, feeRecipient := range feeRecipients {
		total, err := e.state.TippingRecipientTotal(DeriveRecipientKey(recipientCommentCID, feeRecipient))
		if err != nil {
			return nil, err
		}
		if total != nil {
			sum.Add(sum, total)
		}
	}
	return sum, nil
}

// RecipientTotals evaluates RecipientTotal for each cid with its own fee
// recipient list.
func (e *Engine) RecipientTotals(recipientCommentCIDs []common.Hash, feeRecipientsPerCID [][]common.Address) ([]*big.Int, error) {
	if len(recipientCommentCIDs) != len(feeRecipientsPerCID) {
		return nil, ErrArrayLengthMismatch
	}
	out := make([]*big.Int, len(recipientCommentCIDs))
	for i, cid := range recipientCommentCIDs {
		total, err := e.RecipientTotal(cid, feeRecipientsPerCID[i])
		if err != nil {
			return nil, err
		}
		out[i] = total
	}
	return out, nil
}

// RecipientTotalsUniform evaluates RecipientTotal for each cid with one shared
// fee recipient list.
func (e *Engine) RecipientTotalsUniform(recipientCommentCIDs []common.Hash, feeRecipients []common.Address) ([]*big.Int, error) {
	out := make([]*big.Int, len(recipientCommentCIDs))
	for i, cid := range recipientCommentCIDs {
		total, err := e.RecipientTotal(cid, feeRecipients)
		if err != nil {
			return nil, err
		}
		out[i] = total
	}
	return out, nil
}

// SenderTotal sums what sender tipped from senderCommentCID to
// recipientCommentCID across the fee recipients.
func (e *Engine) SenderTotal(senderCommentCID common.Hash, sender common.Address, recipientCommentCID common.Hash, feeRecipients []common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	sum := big.NewInt(0)
	for _, feeRecipient := range feeRecipients {
		total, err := e.state.TippingSenderTotal(DeriveSenderKey(senderCommentCID, sender, recipientCommentCID, feeRecipient))
		if err != nil {
			return nil, err
		}
		if total != nil {
			sum.Add(sum, total)
		}
	}
	return sum, nil
}

// SenderTotals evaluates SenderTotal position-wise over the three slices.
func (e *Engine) SenderTotals(sender common.Address, senderCommentCIDs, recipientCommentCIDs []common.Hash, feeRecipientsPerCID [][]common.Address) ([]*big.Int, error) {
	if len(senderCommentCIDs) != len(recipientCommentCIDs) || len(senderCommentCIDs) != len(feeRecipientsPerCID) {
		return nil, ErrArrayLengthMismatch
	}
	out := make([]*big.Int, len(senderCommentCIDs))
	for i := range senderCommentCIDs {
		total, err := e.SenderTotal(senderCommentCIDs[i], sender, recipientCommentCIDs[i], feeRecipientsPerCID[i])
		if err != nil {
			return nil, err
		}
		out[i] = total
	}
	return out, nil
}

// SenderTotalsUniform is SenderTotals with one shared fee recipient list.
func (e *Engine) SenderTotalsUniform(sender common.Address, senderCommentCIDs, recipientCommentCIDs []common.Hash, feeRecipients []common.Address) ([]*big.Int, error) {
	if len(senderCommentCIDs) != len(recipientCommentCIDs) {
		return nil, ErrArrayLengthMismatch
	}
	out := make([]*big.Int, len(senderCommentCIDs))
	for i := range senderCommentCIDs {
		total, err := e.SenderTotal(senderCommentCIDs[i], sender, recipientCommentCIDs[i], feeRecipients)
		if err != nil {
			return nil, err
		}
		out[i] = total
	}
	return out, nil
}

// Tips returns the window [offset, offset+limit) of the concatenation of the
// tip lists of cid under each fee recipient, in fee recipient order. An
// out-of-range window yields an empty slice.
func (e *Engine) Tips(recipientCommentCID common.Hash, feeRecipients []common.Address, offset, limit uint64) ([]*TipRecord, error) {
	out := make([]*TipRecord, 0)
	err := e.walkTips(recipientCommentCID, feeRecipients, offset, limit, func(record *TipRecord) {
		out = append(out, record)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TipsAmounts returns the amounts of the same window Tips would return.
func (e *Engine) TipsAmounts(recipientCommentCID common.Hash, feeRecipients []common.Address, offset, limit uint64) ([]*big.Int, error) {
	out := make([]*big.Int, 0)
	err := e.walkTips(recipientCommentCID, feeRecipients, offset, limit, func(record *TipRecord) {
		out = append(out, newBigInt(record.Amount))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TipsCount returns the length of the concatenated tip lists.
func (e *Engine) TipsCount(recipientCommentCID common.Hash, feeRecipients []common.Address) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	var total uint64
	for _, feeRecipient := range feeRecipients {
		count, err := e.state.TippingTipCount(DeriveRecipientKey(recipientCommentCID, feeRecipient))
		if err != nil {
			return 0, err
		}
		if total > math.MaxUint64-count {
			return math.MaxUint64, nil
		}
		total += count
	}
	return total, nil
}

// walkTips visits the requested window segment by segment. Only the per-key
// counters and the records inside the window are read.
func (e *Engine) walkTips(recipientCommentCID common.Hash, feeRecipients []common.Address, offset, limit uint64, visit func(*TipRecord)) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if limit == 0 {
		return nil
	}
	end := offset + limit
	if end < offset {
		end = math.MaxUint64
	}
	var base uint64
	for _, feeRecipient := range feeRecipients {
		if base >= end {
			break
		}
		key := DeriveRecipientKey(recipientCommentCID, feeRecipient)
		count, err := e.state.TippingTipCount(key)
		if err != nil {
			return err
		}
		segEnd := base + count
		if segEnd < base {
			segEnd = math.MaxUint64
		}
		lo := max(offset, base)
		hi := min(end, segEnd)
		for i := lo; i < hi; i++ {
			record, ok, err := e.state.TippingTipAt(key, i-base)
			if err != nil {
				return err
			}
			if !ok || record == nil {
				continue
			}
			visit(record)
		}
		base = segEnd
	}
	return nil
}
