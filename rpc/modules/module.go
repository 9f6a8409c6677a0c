package modules

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/plebbit/plebbit-tipping-v1/native/tipping"
)

const (
	codeInvalidParams = -32602
	codeUnauthorized  = -32001
	codeServerError   = -32000
	codeLedgerError   = -32010
)

var errModuleOffline = &ModuleError{HTTPStatus: http.StatusServiceUnavailable, Code: codeServerError, Message: "node unavailable"}

// ModuleError carries the JSON-RPC error the server writes for a failed call.
type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// ErrorData is attached to ledger failures so clients can branch on Reason.
type ErrorData struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func invalidParams(message string, data interface{}) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: message, Data: data}
}

// ledgerError maps a ledger failure onto a JSON-RPC error with its reason.
func ledgerError(err error) *ModuleError {
	reason := tipping.Reason(err)
	data := ErrorData{Reason: reason, Detail: err.Error()}
	switch {
	case errors.Is(err, tipping.ErrUnauthorized):
		return &ModuleError{HTTPStatus: http.StatusForbidden, Code: codeUnauthorized, Message: "caller lacks the required role", Data: data}
	case errors.Is(err, tipping.ErrTransferFailed):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: codeLedgerError, Message: "payment transfer failed", Data: data}
	case errors.Is(err, tipping.ErrNotInitialized):
		return &ModuleError{HTTPStatus: http.StatusServiceUnavailable, Code: codeServerError, Message: "ledger not initialized", Data: data}
	case reason != "":
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeLedgerError, Message: err.Error(), Data: data}
	default:
		return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: err.Error()}
	}
}

func decodeParams(raw json.RawMessage, dst interface{}) *ModuleError {
	if len(raw) == 0 {
		return invalidParams("parameter object required", nil)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

func parseAddress(field, value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("%s is required", field)
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s must be a 0x-prefixed 20 byte hex address", field)
	}
	return common.HexToAddress(trimmed), nil
}

func parseOptionalAddress(field, value string) (common.Address, error) {
	if strings.TrimSpace(value) == "" {
		return common.Address{}, nil
	}
	return parseAddress(field, value)
}

func parseAddresses(field string, values []string) ([]common.Address, error) {
	out := make([]common.Address, len(values))
	for i, value := range values {
		addr, err := parseAddress(fmt.Sprintf("%s[%d]", field, i), value)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}

func parseCommentCID(field, value string) (common.Hash, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return common.Hash{}, fmt.Errorf("%s is required", field)
	}
	raw, err := hexutil.Decode(trimmed)
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%s must be a 0x-prefixed 32 byte hex value", field)
	}
	return common.BytesToHash(raw), nil
}

func parseOptionalCommentCID(field, value string) (common.Hash, error) {
	if strings.TrimSpace(value) == "" {
		return common.Hash{}, nil
	}
	return parseCommentCID(field, value)
}

func parseCommentCIDs(field string, values []string) ([]common.Hash, error) {
	out := make([]common.Hash, len(values))
	for i, value := range values {
		cid, err := parseCommentCID(fmt.Sprintf("%s[%d]", field, i), value)
		if err != nil {
			return nil, err
		}
		out[i] = cid
	}
	return out, nil
}

// parseAmount accepts a non-negative decimal integer. Zero is valid because a
// zero minimum permits zero-value tips.
func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a decimal integer", field)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%s must not be negative", field)
	}
	return amount, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func bigStrings(values []*big.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = bigString(v)
	}
	return out
}
