package client

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/plebbit/plebbit-tipping-v1/native/tipping"
	"github.com/plebbit/plebbit-tipping-v1/rpc/modules"
)

// Tip describes a tip to record. A nil Value attaches exactly Amount.
type Tip struct {
	Recipient           common.Address
	Amount              *big.Int
	Value               *big.Int
	FeeRecipient        common.Address
	SenderCommentCID    common.Hash
	RecipientCommentCID common.Hash
}

// Receipt is the decoded result of a recorded tip.
type Receipt struct {
	Sender              common.Address
	Recipient           common.Address
	Amount              *big.Int
	Fee                 *big.Int
	NetPayment          *big.Int
	FeeRecipient        common.Address
	RecipientCommentCID common.Hash
	SenderCommentCID    common.Hash
	RecipientKey        common.Hash
	SenderKey           common.Hash
}

// Activity is one entry of the indexed tip feed.
type Activity struct {
	Sequence            uint64
	Sender              common.Address
	Recipient           common.Address
	FeeRecipient        common.Address
	Amount              *big.Int
	RecipientCommentCID common.Hash
	SenderCommentCID    common.Hash
	RecordedAt          int64
}

// ActivityFilter narrows the activity feed. Zero values match everything.
type ActivityFilter struct {
	Sender              common.Address
	Recipient           common.Address
	FeeRecipient        common.Address
	RecipientCommentCID common.Hash
	Limit               int
}

// Balance is the native balance of an account.
type Balance struct {
	Address common.Address
	Balance *big.Int
	Payable bool
}

func parseBig(field, value string) (*big.Int, error) {
	out, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("client: invalid %s %q", field, value)
	}
	return out, nil
}

func parseBigs(field string, values []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(values))
	for i, value := range values {
		parsed, err := parseBig(field, value)
		if err != nil {
			return nil, err
		}
		out[i] = parsed
	}
	return out, nil
}

func hexAddresses(addrs []common.Address) []string {
	out := make([]string, len(addrs))
	for i, addr := range addrs {
		out[i] = addr.Hex()
	}
	return out
}

func hexHashes(hashes []common.Hash) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.Hex()
	}
	return out
}

func hexAddressGroups(groups [][]common.Address) [][]string {
	out := make([][]string, len(groups))
	for i, group := range groups {
		out[i] = hexAddresses(group)
	}
	return out
}

func totalKey(parts ...string) string {
	return strings.Join(parts, "|")
}

// RecordTip records a tip as the token's subject. A successful tip invalidates
// the cached totals.
func (c *Client) RecordTip(ctx context.Context, tip Tip) (*Receipt, error) {
	if tip.Amount == nil {
		return nil, fmt.Errorf("client: tip amount is required")
	}
	params := map[string]interface{}{
		"recipient":           tip.Recipient.Hex(),
		"amount":              tip.Amount.String(),
		"feeRecipient":        tip.FeeRecipient.Hex(),
		"senderCommentCid":    tip.SenderCommentCID.Hex(),
		"recipientCommentCid": tip.RecipientCommentCID.Hex(),
	}
	if tip.Value != nil {
		params["value"] = tip.Value.String()
	}
	var result modules.ReceiptResult
	if err := c.call(ctx, "tip_record", params, &result); err != nil {
		return nil, err
	}
	c.InvalidateCache()
	receipt := &Receipt{
		Sender:              common.HexToAddress(result.Sender),
		Recipient:           common.HexToAddress(result.Recipient),
		FeeRecipient:        common.HexToAddress(result.FeeRecipient),
		RecipientCommentCID: common.HexToHash(result.RecipientCommentCID),
		SenderCommentCID:    common.HexToHash(result.SenderCommentCID),
		RecipientKey:        common.HexToHash(result.RecipientKey),
		SenderKey:           common.HexToHash(result.SenderKey),
	}
	var err error
	if receipt.Amount, err = parseBig("amount", result.Amount); err != nil {
		return nil, err
	}
	if receipt.Fee, err = parseBig("fee", result.Fee); err != nil {
		return nil, err
	}
	if receipt.NetPayment, err = parseBig("netPayment", result.NetPayment); err != nil {
		return nil, err
	}
	return receipt, nil
}

// RecipientTotal returns the total tipped to a comment across fee recipients.
func (c *Client) RecipientTotal(ctx context.Context, recipientCommentCID common.Hash, feeRecipients []common.Address) (*big.Int, error) {
	fees := hexAddresses(feeRecipients)
	key := totalKey("recipient", recipientCommentCID.Hex(), strings.Join(fees, ","))
	value, err := c.cachedTotal(ctx, key, func(ctx context.Context) (string, error) {
		var result modules.TotalResult
		err := c.call(ctx, "tip_getRecipientTotal", map[string]interface{}{
			"recipientCommentCid": recipientCommentCID.Hex(),
			"feeRecipients":       fees,
		}, &result)
		return result.Total, err
	})
	if err != nil {
		return nil, err
	}
	return parseBig("total", value)
}

// RecipientTotals returns one total per comment with per-comment fee
// recipients.
func (c *Client) RecipientTotals(ctx context.Context, recipientCommentCIDs []common.Hash, feeRecipientsPerCID [][]common.Address) ([]*big.Int, error) {
	var result modules.TotalsResult
	if err := c.call(ctx, "tip_getRecipientTotals", map[string]interface{}{
		"recipientCommentCids": hexHashes(recipientCommentCIDs),
		"feeRecipients":        hexAddressGroups(feeRecipientsPerCID),
	}, &result); err != nil {
		return nil, err
	}
	return parseBigs("total", result.Totals)
}

// RecipientTotalsUniform returns one total per comment sharing fee recipients.
func (c *Client) RecipientTotalsUniform(ctx context.Context, recipientCommentCIDs []common.Hash, feeRecipients []common.Address) ([]*big.Int, error) {
	var result modules.TotalsResult
	if err := c.call(ctx, "tip_getRecipientTotalsUniform", map[string]interface{}{
		"recipientCommentCids": hexHashes(recipientCommentCIDs),
		"feeRecipients":        hexAddresses(feeRecipients),
	}, &result); err != nil {
		return nil, err
	}
	return parseBigs("total", result.Totals)
}

// SenderTotal returns what a sender comment paid toward a recipient comment.
func (c *Client) SenderTotal(ctx context.Context, senderCommentCID common.Hash, sender common.Address, recipientCommentCID common.Hash, feeRecipients []common.Address) (*big.Int, error) {
	fees := hexAddresses(feeRecipients)
	key := totalKey("sender", senderCommentCID.Hex(), sender.Hex(), recipientCommentCID.Hex(), strings.Join(fees, ","))
	value, err := c.cachedTotal(ctx, key, func(ctx context.Context) (string, error) {
		var result modules.TotalResult
		err := c.call(ctx, "tip_getSenderTotal", map[string]interface{}{
			"senderCommentCid":    senderCommentCID.Hex(),
			"sender":              sender.Hex(),
			"recipientCommentCid": recipientCommentCID.Hex(),
			"feeRecipients":       fees,
		}, &result)
		return result.Total, err
	})
	if err != nil {
		return nil, err
	}
	return parseBig("total", value)
}

// SenderTotals returns one sender total per comment pair.
func (c *Client) SenderTotals(ctx context.Context, sender common.Address, senderCommentCIDs, recipientCommentCIDs []common.Hash, feeRecipientsPerCID [][]common.Address) ([]*big.Int, error) {
	var result modules.TotalsResult
	if err := c.call(ctx, "tip_getSenderTotals", map[string]interface{}{
		"sender":               sender.Hex(),
		"senderCommentCids":    hexHashes(senderCommentCIDs),
		"recipientCommentCids": hexHashes(recipientCommentCIDs),
		"feeRecipients":        hexAddressGroups(feeRecipientsPerCID),
	}, &result); err != nil {
		return nil, err
	}
	return parseBigs("total", result.Totals)
}

// SenderTotalsUniform returns one sender total per comment pair sharing fee
// recipients.
func (c *Client) SenderTotalsUniform(ctx context.Context, sender common.Address, senderCommentCIDs, recipientCommentCIDs []common.Hash, feeRecipients []common.Address) ([]*big.Int, error) {
	var result modules.TotalsResult
	if err := c.call(ctx, "tip_getSenderTotalsUniform", map[string]interface{}{
		"sender":               sender.Hex(),
		"senderCommentCids":    hexHashes(senderCommentCIDs),
		"recipientCommentCids": hexHashes(recipientCommentCIDs),
		"feeRecipients":        hexAddresses(feeRecipients),
	}, &result); err != nil {
		return nil, err
	}
	return parseBigs("total", result.Totals)
}

func tipsParams(recipientCommentCID common.Hash, feeRecipients []common.Address, offset, limit uint64) map[string]interface{} {
	return map[string]interface{}{
		"recipientCommentCid": recipientCommentCID.Hex(),
		"feeRecipients":       hexAddresses(feeRecipients),
		"offset":              offset,
		"limit":               limit,
	}
}

// Tips returns one page of tip records.
func (c *Client) Tips(ctx context.Context, recipientCommentCID common.Hash, feeRecipients []common.Address, offset, limit uint64) ([]*tipping.TipRecord, error) {
	var result modules.TipsResult
	if err := c.call(ctx, "tip_getTips", tipsParams(recipientCommentCID, feeRecipients, offset, limit), &result); err != nil {
		return nil, err
	}
	out := make([]*tipping.TipRecord, 0, len(result.Tips))
	for _, tip := range result.Tips {
		amount, err := parseBig("amount", tip.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, &tipping.TipRecord{
			Amount:           amount,
			Sender:           common.HexToAddress(tip.Sender),
			FeeRecipient:     common.HexToAddress(tip.FeeRecipient),
			SenderCommentCID: common.HexToHash(tip.SenderCommentCID),
		})
	}
	return out, nil
}

// TipsAmounts returns the amounts of one page of tip records.
func (c *Client) TipsAmounts(ctx context.Context, recipientCommentCID common.Hash, feeRecipients []common.Address, offset, limit uint64) ([]*big.Int, error) {
	var result modules.AmountsResult
	if err := c.call(ctx, "tip_getTipsAmounts", tipsParams(recipientCommentCID, feeRecipients, offset, limit), &result); err != nil {
		return nil, err
	}
	return parseBigs("amount", result.Amounts)
}

// TipsCount returns the number of tips across the queried lists.
func (c *Client) TipsCount(ctx context.Context, recipientCommentCID common.Hash, feeRecipients []common.Address) (uint64, error) {
	var result modules.CountResult
	if err := c.call(ctx, "tip_getTipsCount", tipsParams(recipientCommentCID, feeRecipients, 0, 0), &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

// Params returns the ledger configuration.
func (c *Client) Params(ctx context.Context) (*tipping.Params, error) {
	var result modules.ParamsResult
	if err := c.call(ctx, "tip_params", nil, &result); err != nil {
		return nil, err
	}
	return decodeParams(result)
}

func decodeParams(result modules.ParamsResult) (*tipping.Params, error) {
	minimum, err := parseBig("minimumTipAmount", result.MinimumTipAmount)
	if err != nil {
		return nil, err
	}
	return &tipping.Params{MinimumTipAmount: minimum, FeePercent: result.FeePercent}, nil
}

// HasRole reports whether account holds role.
func (c *Client) HasRole(ctx context.Context, role string, account common.Address) (bool, error) {
	var result modules.RoleResult
	if err := c.call(ctx, "tip_hasRole", map[string]interface{}{"role": role, "account": account.Hex()}, &result); err != nil {
		return false, err
	}
	return result.HasRole, nil
}

// SetMinimumTipAmount updates the minimum tip. The token subject must be a
// moderator.
func (c *Client) SetMinimumTipAmount(ctx context.Context, amount *big.Int) (*tipping.Params, error) {
	if amount == nil {
		return nil, fmt.Errorf("client: amount is required")
	}
	var result modules.ParamsResult
	if err := c.call(ctx, "tip_setMinimumTipAmount", map[string]interface{}{"amount": amount.String()}, &result); err != nil {
		return nil, err
	}
	return decodeParams(result)
}

// SetFeePercent updates the fee percent. The token subject must be a
// moderator.
func (c *Client) SetFeePercent(ctx context.Context, feePercent uint64) (*tipping.Params, error) {
	var result modules.ParamsResult
	if err := c.call(ctx, "tip_setFeePercent", map[string]interface{}{"feePercent": feePercent}, &result); err != nil {
		return nil, err
	}
	return decodeParams(result)
}

// GrantModerator grants the moderator role. The token subject must be an admin.
func (c *Client) GrantModerator(ctx context.Context, account common.Address) error {
	return c.call(ctx, "tip_grantModerator", map[string]interface{}{"account": account.Hex()}, nil)
}

// RevokeModerator revokes the moderator role. The token subject must be an
// admin.
func (c *Client) RevokeModerator(ctx context.Context, account common.Address) error {
	return c.call(ctx, "tip_revokeModerator", map[string]interface{}{"account": account.Hex()}, nil)
}

// RoleMembers lists the accounts holding role. Short role names ("admin",
// "moderator") are accepted.
func (c *Client) RoleMembers(ctx context.Context, role string) ([]common.Address, error) {
	var result modules.RoleMembersResult
	if err := c.call(ctx, "tip_getRoleMembers", map[string]interface{}{"role": role}, &result); err != nil {
		return nil, err
	}
	members := make([]common.Address, len(result.Members))
	for i, member := range result.Members {
		members[i] = common.HexToAddress(member)
	}
	return members, nil
}

// DeriveKeys asks the node for the storage keys of a comment. The sender key
// is only derived when sender is non-nil.
func (c *Client) DeriveKeys(ctx context.Context, recipientCommentCID common.Hash, feeRecipient common.Address, senderCommentCID common.Hash, sender *common.Address) (common.Hash, common.Hash, error) {
	params := map[string]interface{}{
		"recipientCommentCid": recipientCommentCID.Hex(),
		"feeRecipient":        feeRecipient.Hex(),
	}
	if sender != nil {
		params["sender"] = sender.Hex()
		params["senderCommentCid"] = senderCommentCID.Hex()
	}
	var result modules.KeysResult
	if err := c.call(ctx, "tip_deriveKeys", params, &result); err != nil {
		return common.Hash{}, common.Hash{}, err
	}
	var senderKey common.Hash
	if result.SenderKey != "" {
		senderKey = common.HexToHash(result.SenderKey)
	}
	return common.HexToHash(result.RecipientKey), senderKey, nil
}

// Activity returns the newest indexed tips matching filter.
func (c *Client) Activity(ctx context.Context, filter ActivityFilter) ([]Activity, error) {
	params := map[string]interface{}{}
	if filter.Sender != (common.Address{}) {
		params["sender"] = filter.Sender.Hex()
	}
	if filter.Recipient != (common.Address{}) {
		params["recipient"] = filter.Recipient.Hex()
	}
	if filter.FeeRecipient != (common.Address{}) {
		params["feeRecipient"] = filter.FeeRecipient.Hex()
	}
	if filter.RecipientCommentCID != (common.Hash{}) {
		params["recipientCommentCid"] = filter.RecipientCommentCID.Hex()
	}
	if filter.Limit > 0 {
		params["limit"] = filter.Limit
	}
	var result modules.ActivityResult
	if err := c.call(ctx, "tip_activity", params, &result); err != nil {
		return nil, err
	}
	out := make([]Activity, 0, len(result.Activity))
	for _, entry := range result.Activity {
		amount, err := parseBig("amount", entry.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, Activity{
			Sequence:            entry.Sequence,
			Sender:              common.HexToAddress(entry.Sender),
			Recipient:           common.HexToAddress(entry.Recipient),
			FeeRecipient:        common.HexToAddress(entry.FeeRecipient),
			Amount:              amount,
			RecipientCommentCID: common.HexToHash(entry.RecipientCommentCID),
			SenderCommentCID:    common.HexToHash(entry.SenderCommentCID),
			RecordedAt:          entry.RecordedAt,
		})
	}
	return out, nil
}

// Balance returns the native balance of addr.
func (c *Client) Balance(ctx context.Context, addr common.Address) (*Balance, error) {
	var result modules.BalanceResult
	if err := c.call(ctx, "bank_getBalance", map[string]interface{}{"address": addr.Hex()}, &result); err != nil {
		return nil, err
	}
	balance, err := parseBig("balance", result.Balance)
	if err != nil {
		return nil, err
	}
	return &Balance{Address: common.HexToAddress(result.Address), Balance: balance, Payable: result.Payable}, nil
}
