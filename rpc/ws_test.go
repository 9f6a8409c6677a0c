package rpc

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/plebbit/plebbit-tipping-v1/core/types"
	"github.com/plebbit/plebbit-tipping-v1/native/tipping"
)

func readStreamEvent(t *testing.T, ctx context.Context, conn *websocket.Conn) *types.Event {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	var evt types.Event
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("decode stream event: %v", err)
	}
	return &evt
}

func TestTipStreamBacklogAndLive(t *testing.T) {
	server, node := newTestServer(t, testServerConfig())
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	if _, err := node.RecordTip(tipper, milliEth(5), tipping.TipRequest{
		Recipient:           author,
		Amount:              milliEth(5),
		FeeRecipient:        feeSink,
		RecipientCommentCID: commentCID,
	}); err != nil {
		t.Fatalf("record tip: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/tips?type=" + tipping.EventTypeTipRecorded
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	first := readStreamEvent(t, ctx, conn)
	if first.Type != tipping.EventTypeTipRecorded || first.Attr("amount") != milliEth(5).String() {
		t.Fatalf("unexpected backlog event %+v", first)
	}

	deployerToken := signToken(t, deployer, nil)
	// Parameter updates are filtered out of this stream.
	if resp := callRPC(t, server.Handler(), deployerToken, "tip_setFeePercent", map[string]interface{}{"feePercent": 7}); resp.Error != nil {
		t.Fatalf("set fee: %+v", resp.Error)
	}
	if _, err := node.RecordTip(tipper, milliEth(3), tipping.TipRequest{
		Recipient:           author,
		Amount:              milliEth(3),
		FeeRecipient:        feeSink,
		RecipientCommentCID: commentCID,
	}); err != nil {
		t.Fatalf("record tip: %v", err)
	}

	live := readStreamEvent(t, ctx, conn)
	if live.Type != tipping.EventTypeTipRecorded || live.Attr("amount") != milliEth(3).String() {
		t.Fatalf("unexpected live event %+v", live)
	}
	if live.Sequence <= first.Sequence {
		t.Fatalf("sequence did not advance: %d <= %d", live.Sequence, first.Sequence)
	}
}

func TestTipStreamCursorSkipsSeen(t *testing.T) {
	server, node := newTestServer(t, testServerConfig())
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	for _, amount := range []int64{2, 4} {
		if _, err := node.RecordTip(tipper, milliEth(amount), tipping.TipRequest{
			Recipient:           author,
			Amount:              milliEth(amount),
			FeeRecipient:        feeSink,
			RecipientCommentCID: commentCID,
		}); err != nil {
			t.Fatalf("record tip: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/tips?type="+tipping.EventTypeTipRecorded, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	first := readStreamEvent(t, ctx, conn)
	conn.Close(websocket.StatusNormalClosure, "")

	cursor := first.Sequence
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/tips?type=" + tipping.EventTypeTipRecorded + "&cursor=" + strconv.FormatUint(cursor, 10)
	resumed, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial with cursor: %v", err)
	}
	defer resumed.Close(websocket.StatusNormalClosure, "")

	next := readStreamEvent(t, ctx, resumed)
	if next.Sequence <= cursor || next.Attr("amount") != milliEth(4).String() {
		t.Fatalf("cursor not honoured: %+v", next)
	}
}
