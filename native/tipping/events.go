package tipping

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/plebbit/plebbit-tipping-v1/core/events"
	"github.com/plebbit/plebbit-tipping-v1/core/types"
)

const (
	// EventTypeTipRecorded is emitted for every recorded tip.
	EventTypeTipRecorded = "tipping.tip.recorded"
	// EventTypeParamsUpdated is emitted when the minimum tip or fee percent changes.
	EventTypeParamsUpdated = "tipping.params.updated"
	// EventTypeRoleGranted is emitted when an account gains a role.
	EventTypeRoleGranted = "tipping.role.granted"
	// EventTypeRoleRevoked is emitted when an account loses a role.
	EventTypeRoleRevoked = "tipping.role.revoked"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// TipRecordedEvent returns the notification published for a recorded tip.
func TipRecordedEvent(sender, recipient common.Address, amount *big.Int, feeRecipient common.Address, recipientCommentCID, senderCommentCID common.Hash) *types.Event {
	return &types.Event{
		Type: EventTypeTipRecorded,
		Attributes: map[string]string{
			"sender":              sender.Hex(),
			"recipient":           recipient.Hex(),
			"amount":              newBigInt(amount).String(),
			"feeRecipient":        feeRecipient.Hex(),
			"recipientCommentCid": recipientCommentCID.Hex(),
			"senderCommentCid":    senderCommentCID.Hex(),
		},
	}
}

// ParamsUpdatedEvent captures the configuration after a moderator change.
func ParamsUpdatedEvent(caller common.Address, params *Params) *types.Event {
	attrs := map[string]string{"caller": caller.Hex()}
	if params != nil {
		attrs["minimumTipAmount"] = newBigInt(params.MinimumTipAmount).String()
		attrs["feePercent"] = strconv.FormatUint(params.FeePercent, 10)
	}
	return &types.Event{Type: EventTypeParamsUpdated, Attributes: attrs}
}

// RoleGrantedEvent captures a role assignment.
func RoleGrantedEvent(role string, account, caller common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeRoleGranted,
		Attributes: map[string]string{
			"role":    role,
			"account": account.Hex(),
			"caller":  caller.Hex(),
		},
	}
}

// RoleRevokedEvent captures a role removal.
func RoleRevokedEvent(role string, account, caller common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeRoleRevoked,
		Attributes: map[string]string{
			"role":    role,
			"account": account.Hex(),
			"caller":  caller.Hex(),
		},
	}
}
