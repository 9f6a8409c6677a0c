package tipping

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// MinFeePercent is the smallest fee percent a moderator may configure.
	MinFeePercent uint64 = 1
	// MaxFeePercent is the largest fee percent a moderator may configure.
	MaxFeePercent uint64 = 20

	// AmountBits is the storage width of a single tip amount.
	AmountBits = 96
)

const (
	// RoleAdmin is granted once to the deployer and administers moderators.
	RoleAdmin = "tipping.admin"
	// RoleModerator may change the minimum tip amount and the fee percent.
	RoleModerator = "tipping.moderator"
)

// maxTipAmount is 2^96 - 1.
var maxTipAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), AmountBits), big.NewInt(1))

// TipRecord is a single tip stored under a (recipient comment, fee recipient) key.
// Amount already includes the fee.
type TipRecord struct {
	Amount           *big.Int       `json:"amount"`
	FeeRecipient     common.Address `json:"feeRecipient"`
	Sender           common.Address `json:"sender"`
	SenderCommentCID common.Hash    `json:"senderCommentCid"`
}

// Clone returns a deep copy of the record.
func (t *TipRecord) Clone() *TipRecord {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Amount != nil {
		clone.Amount = new(big.Int).Set(t.Amount)
	}
	return &clone
}

// TipRequest carries the caller supplied fields of RecordTip. The sender and the
// attached value are passed separately because they come from the
// authenticated call, not from user metadata.
type TipRequest struct {
	Recipient           common.Address
	Amount              *big.Int
	FeeRecipient        common.Address
	SenderCommentCID    common.Hash
	RecipientCommentCID common.Hash
}

// TipReceipt describes a recorded tip and how its amount was split.
type TipReceipt struct {
	Record              *TipRecord
	Recipient           common.Address
	RecipientCommentCID common.Hash
	Fee                 *big.Int
	NetPayment          *big.Int
	RecipientKey        common.Hash
	SenderKey           common.Hash
}

// Params is the moderator controlled configuration read on every tip.
type Params struct {
	MinimumTipAmount *big.Int
	FeePercent       uint64
}

// Clone returns a deep copy of the params.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	if p.MinimumTipAmount != nil {
		clone.MinimumTipAmount = new(big.Int).Set(p.MinimumTipAmount)
	}
	return &clone
}
