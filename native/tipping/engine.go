package tipping

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/plebbit/plebbit-tipping-v1/core/events"
	"github.com/plebbit/plebbit-tipping-v1/core/types"
)

type engineState interface {
	TippingParams() (*Params, bool, error)
	TippingParamsPut(params *Params) error
	TippingInitialized() (bool, error)
	TippingMarkInitialized() error
	TippingTipCount(key common.Hash) (uint64, error)
	TippingTipAt(key common.Hash, index uint64) (*TipRecord, bool, error)
	TippingTipAppend(key common.Hash, record *TipRecord) (uint64, error)
	TippingRecipientTotal(key common.Hash) (*big.Int, error)
	TippingRecipientTotalPut(key common.Hash, total *big.Int) error
	TippingSenderTotal(key common.Hash) (*big.Int, error)
	TippingSenderTotalPut(key common.Hash, total *big.Int) error
	HasRole(role string, addr []byte) bool
	SetRole(role string, addr []byte) error
	RemoveRole(role string, addr []byte) error
}

// Bank moves native currency between accounts. A failed transfer must leave
// balances untouched.
type Bank interface {
	Transfer(from, to common.Address, amount *big.Int) error
}

// Engine implements the tip ledger on top of an injected state backend.
type Engine struct {
	state   engineState
	bank    Bank
	emitter events.Emitter
}

// NewEngine constructs a tipping engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the transfer backend used for the fee and payment legs.
func (e *Engine) SetBank(bank Bank) { e.bank = bank }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

// Initialize stores the initial configuration and makes the deployer both admin
// and moderator. It may only run once.
func (e *Engine) Initialize(deployer common.Address, minimumTipAmount *big.Int, feePercent uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	initialized, err := e.state.TippingInitialized()
	if err != nil {
		return err
	}
	if initialized {
		return ErrAlreadyInitialized
	}
	if err := validateFeePercent(feePercent); err != nil {
		return err
	}
	if minimumTipAmount != nil && minimumTipAmount.Sign() < 0 {
		return fmt.Errorf("%w: negative minimum", ErrAmountOutOfRange)
	}
	params := &Params{MinimumTipAmount: newBigInt(minimumTipAmount), FeePercent: feePercent}
	if err := e.state.TippingParamsPut(params); err != nil {
		return err
	}
	for _, role := range []string{RoleAdmin, RoleModerator} {
		if err := e.state.SetRole(role, deployer.Bytes()); err != nil {
			return err
		}
	}
	if err := e.state.TippingMarkInitialized(); err != nil {
		return err
	}
	e.emit(ParamsUpdatedEvent(deployer, params))
	e.emit(RoleGrantedEvent(RoleAdmin, deployer, deployer))
	e.emit(RoleGrantedEvent(RoleModerator, deployer, deployer))
	return nil
}

// Params returns the active configuration.
func (e *Engine) Params() (*Params, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	params, ok, err := e.state.TippingParams()
	if err != nil {
		return nil, err
	}
	if !ok || params == nil {
		return nil, ErrNotInitialized
	}
	if params.MinimumTipAmount == nil {
		params.MinimumTipAmount = big.NewInt(0)
	}
	return params, nil
}

// HasRole reports whether account holds role.
func (e *Engine) HasRole(role string, account common.Address) bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.state.HasRole(role, account.Bytes())
}

func (e *Engine) requireRole(caller common.Address, role string) error {
	if !e.HasRole(role, caller) {
		return fmt.Errorf("%w: %s required", ErrUnauthorized, role)
	}
	return nil
}

// SetMinimumTipAmount replaces the minimum attached value accepted by RecordTip.
// Zero disables the minimum.
func (e *Engine) SetMinimumTipAmount(caller common.Address, value *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireRole(caller, RoleModerator); err != nil {
		return err
	}
	if value != nil && value.Sign() < 0 {
		return fmt.Errorf("%w: negative minimum", ErrAmountOutOfRange)
	}
	params, err := e.Params()
	if err != nil {
		return err
	}
	params.MinimumTipAmount = newBigInt(value)
	if err := e.state.TippingParamsPut(params); err != nil {
		return err
	}
	e.emit(ParamsUpdatedEvent(caller, params))
	return nil
}

// SetFeePercent replaces the fee percent applied to new tips.
func (e *Engine) SetFeePercent(caller common.Address, value uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireRole(caller, RoleModerator); err != nil {
		return err
	}
	if err := validateFeePercent(value); err != nil {
		return err
	}
	params, err := e.Params()
	if err != nil {
		return err
	}
	params.FeePercent = value
	if err := e.state.TippingParamsPut(params); err != nil {
		return err
	}
	e.emit(ParamsUpdatedEvent(caller, params))
	return nil
}

// GrantModerator gives account the moderator role.
func (e *Engine) GrantModerator(caller, account common.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	if err := e.state.SetRole(RoleModerator, account.Bytes()); err != nil {
		return err
	}
	e.emit(RoleGrantedEvent(RoleModerator, account, caller))
	return nil
}

// RevokeModerator removes the moderator role from account.
func (e *Engine) RevokeModerator(caller, account common.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	if err := e.state.RemoveRole(RoleModerator, account.Bytes()); err != nil {
		return err
	}
	e.emit(RoleRevokedEvent(RoleModerator, account, caller))
	return nil
}

// RecordTip validates a tip, pays out the fee and net legs and records the tip
// under both aggregate indexes. value is the native amount attached by the
// sender and must equal req.Amount.
func (e *Engine) RecordTip(sender common.Address, value *big.Int, req TipRequest) (*TipReceipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.bank == nil {
		return nil, errNilBank
	}
	params, err := e.Params()
	if err != nil {
		return nil, err
	}
	value = newBigInt(value)
	amount := newBigInt(req.Amount)
	if value.Cmp(params.MinimumTipAmount) < 0 {
		return nil, ErrAmountTooLow
	}
	if value.Cmp(amount) != 0 {
		return nil, ErrAmountMismatch
	}
	if !amountInRange(amount) {
		return nil, ErrAmountOutOfRange
	}

	fee, net := splitAmount(amount, params.FeePercent)
	if err := e.bank.Transfer(sender, req.FeeRecipient, fee); err != nil {
		return nil, fmt.Errorf("%w: fee to %s: %v", ErrTransferFailed, req.FeeRecipient.Hex(), err)
	}
	if err := e.bank.Transfer(sender, req.Recipient, net); err != nil {
		return nil, fmt.Errorf("%w: payment to %s: %v", ErrTransferFailed, req.Recipient.Hex(), err)
	}

	record := &TipRecord{
		Amount:           amount,
		FeeRecipient:     req.FeeRecipient,
		Sender:           sender,
		SenderCommentCID: req.SenderCommentCID,
	}
	recipientKey := DeriveRecipientKey(req.RecipientCommentCID, req.FeeRecipient)
	senderKey := DeriveSenderKey(req.SenderCommentCID, sender, req.RecipientCommentCID, req.FeeRecipient)

	recipientTotal, err := e.state.TippingRecipientTotal(recipientKey)
	if err != nil {
		return nil, err
	}
	recipientTotal, err = addTotal(recipientTotal, amount)
	if err != nil {
		return nil, err
	}
	senderTotal, err := e.state.TippingSenderTotal(senderKey)
	if err != nil {
		return nil, err
	}
	senderTotal, err = addTotal(senderTotal, amount)
	if err != nil {
		return nil, err
	}
	if _, err := e.state.TippingTipAppend(recipientKey, record); err != nil {
		return nil, err
	}
	if err := e.state.TippingRecipientTotalPut(recipientKey, recipientTotal); err != nil {
		return nil, err
	}
	if err := e.state.TippingSenderTotalPut(senderKey, senderTotal); err != nil {
		return nil, err
	}

	e.emit(TipRecordedEvent(sender, req.Recipient, amount, req.FeeRecipient, req.RecipientCommentCID, req.SenderCommentCID))
	return &TipReceipt{
		Record:              record.Clone(),
		Recipient:           req.Recipient,
		RecipientCommentCID: req.RecipientCommentCID,
		Fee:                 fee,
		NetPayment:          net,
		RecipientKey:        recipientKey,
		SenderKey:           senderKey,
	}, nil
}

func validateFeePercent(value uint64) error {
	if value < MinFeePercent || value > MaxFeePercent {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrFeePercentOutOfRange, value, MinFeePercent, MaxFeePercent)
	}
	return nil
}
