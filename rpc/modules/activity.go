package modules

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/plebbit/plebbit-tipping-v1/services/indexer"
)

// ActivitySource is the read side of the activity indexer.
type ActivitySource interface {
	Recent(ctx context.Context, filter indexer.Filter) ([]indexer.TipActivity, error)
}

// ActivityModule serves the indexed tip feed.
type ActivityModule struct {
	source ActivitySource
}

// NewActivityModule wraps source. A nil source reports the feed as disabled.
func NewActivityModule(source ActivitySource) *ActivityModule {
	return &ActivityModule{source: source}
}

type activityParams struct {
	Sender              string `json:"sender,omitempty"`
	Recipient           string `json:"recipient,omitempty"`
	FeeRecipient        string `json:"feeRecipient,omitempty"`
	RecipientCommentCID string `json:"recipientCommentCid,omitempty"`
	Limit               int    `json:"limit,omitempty"`
}

// ActivityEntry is one indexed tip.
type ActivityEntry struct {
	Sequence            uint64 `json:"sequence"`
	Sender              string `json:"sender"`
	Recipient           string `json:"recipient"`
	FeeRecipient        string `json:"feeRecipient"`
	Amount              string `json:"amount"`
	RecipientCommentCID string `json:"recipientCommentCid"`
	SenderCommentCID    string `json:"senderCommentCid"`
	RecordedAt          int64  `json:"recordedAt"`
}

// ActivityResult is the newest-first tip feed.
type ActivityResult struct {
	Activity []ActivityEntry `json:"activity"`
}

// Recent returns the newest indexed tips matching the filter.
func (m *ActivityModule) Recent(ctx context.Context, raw json.RawMessage) (*ActivityResult, *ModuleError) {
	if m == nil || m.source == nil {
		return nil, &ModuleError{HTTPStatus: http.StatusServiceUnavailable, Code: codeServerError, Message: "activity indexer disabled"}
	}
	var params activityParams
	if len(raw) > 0 {
		if modErr := decodeParams(raw, &params); modErr != nil {
			return nil, modErr
		}
	}
	var (
		filter indexer.Filter
		err    error
	)
	if filter.Sender, err = parseOptionalAddress("sender", params.Sender); err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	if filter.Recipient, err = parseOptionalAddress("recipient", params.Recipient); err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	if filter.FeeRecipient, err = parseOptionalAddress("feeRecipient", params.FeeRecipient); err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	if filter.RecipientCommentCID, err = parseOptionalCommentCID("recipientCommentCid", params.RecipientCommentCID); err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	if params.Limit < 0 {
		return nil, invalidParams("limit must not be negative", nil)
	}
	filter.Limit = params.Limit

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := m.source.Recent(ctx, filter)
	if err != nil {
		return nil, &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "activity query failed", Data: err.Error()}
	}
	result := &ActivityResult{Activity: make([]ActivityEntry, 0, len(rows))}
	for _, row := range rows {
		result.Activity = append(result.Activity, ActivityEntry{
			Sequence:            row.Sequence,
			Sender:              row.Sender,
			Recipient:           row.Recipient,
			FeeRecipient:        row.FeeRecipient,
			Amount:              row.Amount,
			RecipientCommentCID: row.RecipientCommentCID,
			SenderCommentCID:    row.SenderCommentCID,
			RecordedAt:          row.RecordedAt.Unix(),
		})
	}
	return result, nil
}
