package modules

import (
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/plebbit/plebbit-tipping-v1/core"
	"github.com/plebbit/plebbit-tipping-v1/native/tipping"
)

// TippingModule exposes the tip ledger over JSON-RPC.
type TippingModule struct {
	node *core.Node
}

// NewTippingModule constructs the tip ledger RPC module.
func NewTippingModule(node *core.Node) *TippingModule {
	return &TippingModule{node: node}
}

type recordParams struct {
	Recipient           string `json:"recipient"`
	Amount              string `json:"amount"`
	Value               string `json:"value,omitempty"`
	FeeRecipient        string `json:"feeRecipient"`
	SenderCommentCID    string `json:"senderCommentCid,omitempty"`
	RecipientCommentCID string `json:"recipientCommentCid"`
}

type recipientTotalParams struct {
	RecipientCommentCID string   `json:"recipientCommentCid"`
	FeeRecipients       []string `json:"feeRecipients"`
}

type recipientTotalsParams struct {
	RecipientCommentCIDs []string   `json:"recipientCommentCids"`
	FeeRecipients        [][]string `json:"feeRecipients"`
}

type recipientTotalsUniformParams struct {
	RecipientCommentCIDs []string `json:"recipientCommentCids"`
	FeeRecipients        []string `json:"feeRecipients"`
}

type senderTotalParams struct {
	SenderCommentCID    string   `json:"senderCommentCid,omitempty"`
	Sender              string   `json:"sender"`
	RecipientCommentCID string   `json:"recipientCommentCid"`
	FeeRecipients       []string `json:"feeRecipients"`
}

type senderTotalsParams struct {
	Sender               string     `json:"sender"`
	SenderCommentCIDs    []string   `json:"senderCommentCids"`
	RecipientCommentCIDs []string   `json:"recipientCommentCids"`
	FeeRecipients        [][]string `json:"feeRecipients"`
}

type senderTotalsUniformParams struct {
	Sender               string   `json:"sender"`
	SenderCommentCIDs    []string `json:"senderCommentCids"`
	RecipientCommentCIDs []string `json:"recipientCommentCids"`
	FeeRecipients        []string `json:"feeRecipients"`
}

type tipsParams struct {
	RecipientCommentCID string   `json:"recipientCommentCid"`
	FeeRecipients       []string `json:"feeRecipients"`
	Offset              uint64   `json:"offset"`
	Limit               uint64   `json:"limit"`
}

type roleMembersParams struct {
	Role string `json:"role"`
}

type hasRoleParams struct {
	Role    string `json:"role"`
	Account string `json:"account"`
}

type setMinimumParams struct {
	Amount string `json:"amount"`
}

type setFeePercentParams struct {
	FeePercent *uint64 `json:"feePercent"`
}

type accountParams struct {
	Account string `json:"account"`
}

type deriveKeysParams struct {
	RecipientCommentCID string `json:"recipientCommentCid"`
	FeeRecipient        string `json:"feeRecipient"`
	SenderCommentCID    string `json:"senderCommentCid,omitempty"`
	Sender              string `json:"sender,omitempty"`
}

// ReceiptResult describes a recorded tip.
type ReceiptResult struct {
	Sender              string `json:"sender"`
	Recipient           string `json:"recipient"`
	Amount              string `json:"amount"`
	Fee                 string `json:"fee"`
	NetPayment          string `json:"netPayment"`
	FeeRecipient        string `json:"feeRecipient"`
	RecipientCommentCID string `json:"recipientCommentCid"`
	SenderCommentCID    string `json:"senderCommentCid"`
	RecipientKey        string `json:"recipientKey"`
	SenderKey           string `json:"senderKey"`
}

// TotalResult carries a single running total.
type TotalResult struct {
	Total string `json:"total"`
}

// TotalsResult carries one total per queried comment.
type TotalsResult struct {
	Totals []string `json:"totals"`
}

// TipResult is one stored tip record.
type TipResult struct {
	Amount           string `json:"amount"`
	Sender           string `json:"sender"`
	FeeRecipient     string `json:"feeRecipient"`
	SenderCommentCID string `json:"senderCommentCid"`
}

// TipsResult is one page of tip records.
type TipsResult struct {
	Tips []TipResult `json:"tips"`
}

// AmountsResult is one page of tip amounts.
type AmountsResult struct {
	Amounts []string `json:"amounts"`
}

// CountResult is the number of tips across the queried lists.
type CountResult struct {
	Count uint64 `json:"count"`
}

// ParamsResult describes the ledger configuration.
type ParamsResult struct {
	MinimumTipAmount string `json:"minimumTipAmount"`
	FeePercent       uint64 `json:"feePercent"`
	MinFeePercent    uint64 `json:"minFeePercent"`
	MaxFeePercent    uint64 `json:"maxFeePercent"`
}

// RoleMembersResult lists the holders of a role.
type RoleMembersResult struct {
	Role    string   `json:"role"`
	Members []string `json:"members"`
}

// RoleResult reports role membership.
type RoleResult struct {
	Role    string `json:"role"`
	Account string `json:"account"`
	HasRole bool   `json:"hasRole"`
}

// KeysResult carries derived storage keys.
type KeysResult struct {
	RecipientKey string `json:"recipientKey"`
	SenderKey    string `json:"senderKey,omitempty"`
}

// Record records a tip paid by caller.
func (m *TippingModule) Record(caller common.Address, raw json.RawMessage) (*ReceiptResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params recordParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	recipient, err := parseAddress("recipient", params.Recipient)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	feeRecipient, err := parseAddress("feeRecipient", params.FeeRecipient)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	value := amount
	if strings.TrimSpace(params.Value) != "" {
		if value, err = parseAmount("value", params.Value); err != nil {
			return nil, invalidParams(err.Error(), nil)
		}
	}
	recipientCID, err := parseCommentCID("recipientCommentCid", params.RecipientCommentCID)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	senderCID, err := parseOptionalCommentCID("senderCommentCid", params.SenderCommentCID)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	receipt, err := m.node.RecordTip(caller, value, tipping.TipRequest{
		Recipient:           recipient,
		Amount:              amount,
		FeeRecipient:        feeRecipient,
		SenderCommentCID:    senderCID,
		RecipientCommentCID: recipientCID,
	})
	if err != nil {
		return nil, ledgerError(err)
	}
	return &ReceiptResult{
		Sender:              receipt.Record.Sender.Hex(),
		Recipient:           receipt.Recipient.Hex(),
		Amount:              bigString(receipt.Record.Amount),
		Fee:                 bigString(receipt.Fee),
		NetPayment:          bigString(receipt.NetPayment),
		FeeRecipient:        receipt.Record.FeeRecipient.Hex(),
		RecipientCommentCID: receipt.RecipientCommentCID.Hex(),
		SenderCommentCID:    receipt.Record.SenderCommentCID.Hex(),
		RecipientKey:        receipt.RecipientKey.Hex(),
		SenderKey:           receipt.SenderKey.Hex(),
	}, nil
}

// RecipientTotal returns the total tipped to one comment across fee recipients.
func (m *TippingModule) RecipientTotal(raw json.RawMessage) (*TotalResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params recipientTotalParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	cid, err := parseCommentCID("recipientCommentCid", params.RecipientCommentCID)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	fees, err := parseAddresses("feeRecipients", params.FeeRecipients)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	total, err := m.node.RecipientTotal(cid, fees)
	if err != nil {
		return nil, ledgerError(err)
	}
	return &TotalResult{Total: bigString(total)}, nil
}

// RecipientTotals returns one total per comment with per-comment fee recipients.
func (m *TippingModule) RecipientTotals(raw json.RawMessage) (*TotalsResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params recipientTotalsParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	cids, err := parseCommentCIDs("recipientCommentCids", params.RecipientCommentCIDs)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	fees := make([][]common.Address, len(params.FeeRecipients))
	for i, group := range params.FeeRecipients {
		if fees[i], err = parseAddresses("feeRecipients", group); err != nil {
			return nil, invalidParams(err.Error(), nil)
		}
	}
	totals, err := m.node.RecipientTotals(cids, fees)
	if err != nil {
		return nil, ledgerError(err)
	}
	return &TotalsResult{Totals: bigStrings(totals)}, nil
}

// RecipientTotalsUniform returns one total per comment sharing fee recipients.
func (m *TippingModule) RecipientTotalsUniform(raw json.RawMessage) (*TotalsResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params recipientTotalsUniformParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	cids, err := parseCommentCIDs("recipientCommentCids", params.RecipientCommentCIDs)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	fees, err := parseAddresses("feeRecipients", params.FeeRecipients)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	totals, err := m.node.RecipientTotalsUniform(cids, fees)
	if err != nil {
		return nil, ledgerError(err)
	}
	return &TotalsResult{Totals: bigStrings(totals)}, nil
}

// SenderTotal returns what one sender comment paid toward a recipient comment.
func (m *TippingModule) SenderTotal(raw json.RawMessage) (*TotalResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params senderTotalParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	senderCID, err := parseOptionalCommentCID("senderCommentCid", params.SenderCommentCID)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	sender, err := parseAddress("sender", params.Sender)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	recipientCID, err := parseCommentCID("recipientCommentCid", params.RecipientCommentCID)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	fees, err := parseAddresses("feeRecipients", params.FeeRecipients)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	total, err := m.node.SenderTotal(senderCID, sender, recipientCID, fees)
	if err != nil {
		return nil, ledgerError(err)
	}
	return &TotalResult{Total: bigString(total)}, nil
}

// SenderTotals returns one sender total per comment pair.
func (m *TippingModule) SenderTotals(raw json.RawMessage) (*TotalsResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params senderTotalsParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	sender, err := parseAddress("sender", params.Sender)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	senderCIDs, err := parseCommentCIDs("senderCommentCids", params.SenderCommentCIDs)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	recipientCIDs, err := parseCommentCIDs("recipientCommentCids", params.RecipientCommentCIDs)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	fees := make([][]common.Address, len(params.FeeRecipients))
	for i, group := range params.FeeRecipients {
		if fees[i], err = parseAddresses("feeRecipients", group); err != nil {
			return nil, invalidParams(err.Error(), nil)
		}
	}
	totals, err := m.node.SenderTotals(sender, senderCIDs, recipientCIDs, fees)
	if err != nil {
		return nil, ledgerError(err)
	}
	return &TotalsResult{Totals: bigStrings(totals)}, nil
}

// SenderTotalsUniform returns one sender total per comment pair sharing fee
// recipients.
func (m *TippingModule) SenderTotalsUniform(raw json.RawMessage) (*TotalsResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params senderTotalsUniformParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	sender, err := parseAddress("sender", params.Sender)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	senderCIDs, err := parseCommentCIDs("senderCommentCids", params.SenderCommentCIDs)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	recipientCIDs, err := parseCommentCIDs("recipientCommentCids", params.RecipientCommentCIDs)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	fees, err := parseAddresses("feeRecipients", params.FeeRecipients)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	totals, err := m.node.SenderTotalsUniform(sender, senderCIDs, recipientCIDs, fees)
	if err != nil {
		return nil, ledgerError(err)
	}
	return &TotalsResult{Totals: bigStrings(totals)}, nil
}

func (m *TippingModule) decodeTips(raw json.RawMessage) (common.Hash, []common.Address, *tipsParams, *ModuleError) {
	var params tipsParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return common.Hash{}, nil, nil, modErr
	}
	cid, err := parseCommentCID("recipientCommentCid", params.RecipientCommentCID)
	if err != nil {
		return common.Hash{}, nil, nil, invalidParams(err.Error(), nil)
	}
	fees, err := parseAddresses("feeRecipients", params.FeeRecipients)
	if err != nil {
		return common.Hash{}, nil, nil, invalidParams(err.Error(), nil)
	}
	return cid, fees, &params, nil
}

// Tips returns one page of tip records.
func (m *TippingModule) Tips(raw json.RawMessage) (*TipsResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	cid, fees, params, modErr := m.decodeTips(raw)
	if modErr != nil {
		return nil, modErr
	}
	records, err := m.node.Tips(cid, fees, params.Offset, params.Limit)
	if err != nil {
		return nil, ledgerError(err)
	}
	result := &TipsResult{Tips: make([]TipResult, 0, len(records))}
	for _, rec := range records {
		result.Tips = append(result.Tips, TipResult{
			Amount:           bigString(rec.Amount),
			Sender:           rec.Sender.Hex(),
			FeeRecipient:     rec.FeeRecipient.Hex(),
			SenderCommentCID: rec.SenderCommentCID.Hex(),
		})
	}
	return result, nil
}

// TipsAmounts returns the amounts of one page of tip records.
func (m *TippingModule) TipsAmounts(raw json.RawMessage) (*AmountsResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	cid, fees, params, modErr := m.decodeTips(raw)
	if modErr != nil {
		return nil, modErr
	}
	amounts, err := m.node.TipsAmounts(cid, fees, params.Offset, params.Limit)
	if err != nil {
		return nil, ledgerError(err)
	}
	return &AmountsResult{Amounts: bigStrings(amounts)}, nil
}

// TipsCount returns the number of tips across the queried lists.
func (m *TippingModule) TipsCount(raw json.RawMessage) (*CountResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	cid, fees, _, modErr := m.decodeTips(raw)
	if modErr != nil {
		return nil, modErr
	}
	count, err := m.node.TipsCount(cid, fees)
	if err != nil {
		return nil, ledgerError(err)
	}
	return &CountResult{Count: count}, nil
}

// Params returns the ledger configuration.
func (m *TippingModule) Params() (*ParamsResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	params, err := m.node.Params()
	if err != nil {
		return nil, ledgerError(err)
	}
	return formatParams(params), nil
}

// HasRole reports whether an account holds a role. Short role names
// ("admin", "moderator") are accepted.
func (m *TippingModule) HasRole(raw json.RawMessage) (*RoleResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params hasRoleParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	role, ok := resolveRole(params.Role)
	if !ok {
		return nil, invalidParams("unknown role", params.Role)
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	return &RoleResult{Role: role, Account: account.Hex(), HasRole: m.node.HasRole(role, account)}, nil
}

// RoleMembers lists the accounts holding a role.
func (m *TippingModule) RoleMembers(raw json.RawMessage) (*RoleMembersResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params roleMembersParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	role, ok := resolveRole(params.Role)
	if !ok {
		return nil, invalidParams("unknown role", params.Role)
	}
	members, err := m.node.RoleMembers(role)
	if err != nil {
		return nil, ledgerError(err)
	}
	out := make([]string, len(members))
	for i, member := range members {
		out[i] = member.Hex()
	}
	return &RoleMembersResult{Role: role, Members: out}, nil
}

// SetMinimumTipAmount updates the minimum tip on behalf of caller.
func (m *TippingModule) SetMinimumTipAmount(caller common.Address, raw json.RawMessage) (*ParamsResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params setMinimumParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	if err := m.node.SetMinimumTipAmount(caller, amount); err != nil {
		return nil, ledgerError(err)
	}
	return m.Params()
}

// SetFeePercent updates the fee percent on behalf of caller.
func (m *TippingModule) SetFeePercent(caller common.Address, raw json.RawMessage) (*ParamsResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params setFeePercentParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	if params.FeePercent == nil {
		return nil, invalidParams("feePercent is required", nil)
	}
	if err := m.node.SetFeePercent(caller, *params.FeePercent); err != nil {
		return nil, ledgerError(err)
	}
	return m.Params()
}

// GrantModerator grants the moderator role on behalf of caller.
func (m *TippingModule) GrantModerator(caller common.Address, raw json.RawMessage) (*RoleResult, *ModuleError) {
	return m.changeModerator(caller, raw, true)
}

// RevokeModerator revokes the moderator role on behalf of caller.
func (m *TippingModule) RevokeModerator(caller common.Address, raw json.RawMessage) (*RoleResult, *ModuleError) {
	return m.changeModerator(caller, raw, false)
}

func (m *TippingModule) changeModerator(caller common.Address, raw json.RawMessage, grant bool) (*RoleResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params accountParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	if grant {
		err = m.node.GrantModerator(caller, account)
	} else {
		err = m.node.RevokeModerator(caller, account)
	}
	if err != nil {
		return nil, ledgerError(err)
	}
	return &RoleResult{
		Role:    tipping.RoleModerator,
		Account: account.Hex(),
		HasRole: m.node.HasRole(tipping.RoleModerator, account),
	}, nil
}

// DeriveKeys computes the storage keys for a comment and fee recipient. The
// sender key is included when a sender is given.
func (m *TippingModule) DeriveKeys(raw json.RawMessage) (*KeysResult, *ModuleError) {
	var params deriveKeysParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	recipientCID, err := parseCommentCID("recipientCommentCid", params.RecipientCommentCID)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	feeRecipient, err := parseAddress("feeRecipient", params.FeeRecipient)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	result := &KeysResult{RecipientKey: tipping.DeriveRecipientKey(recipientCID, feeRecipient).Hex()}
	if strings.TrimSpace(params.Sender) == "" {
		return result, nil
	}
	sender, err := parseAddress("sender", params.Sender)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	senderCID, err := parseOptionalCommentCID("senderCommentCid", params.SenderCommentCID)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	result.SenderKey = tipping.DeriveSenderKey(senderCID, sender, recipientCID, feeRecipient).Hex()
	return result, nil
}

func formatParams(params *tipping.Params) *ParamsResult {
	result := &ParamsResult{MinFeePercent: tipping.MinFeePercent, MaxFeePercent: tipping.MaxFeePercent}
	if params != nil {
		result.MinimumTipAmount = bigString(params.MinimumTipAmount)
		result.FeePercent = params.FeePercent
	}
	return result
}

func resolveRole(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", tipping.RoleAdmin:
		return tipping.RoleAdmin, true
	case "moderator", tipping.RoleModerator:
		return tipping.RoleModerator, true
	default:
		return "", false
	}
}
