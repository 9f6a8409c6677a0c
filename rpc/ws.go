package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/plebbit/plebbit-tipping-v1/core/types"
)

const (
	wsWriteTimeout = 10 * time.Second
)

// handleTipStream upgrades to a websocket and streams committed ledger
// notifications. The optional cursor query parameter resumes after a sequence
// number and type restricts the stream to one notification type.
func (s *Server) handleTipStream(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.node == nil {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	eventType := strings.TrimSpace(r.URL.Query().Get("type"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamTips(ctx, conn, cursor, eventType); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamTips(ctx context.Context, conn *websocket.Conn, cursor, eventType string) error {
	updates, cancel, backlog, err := s.node.Subscribe(ctx, cursor)
	if err != nil {
		return err
	}
	defer cancel()

	for _, evt := range backlog {
		if err := writeStreamEvent(ctx, conn, evt, eventType); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeStreamEvent(ctx, conn, evt, eventType); err != nil {
				return err
			}
		}
	}
}

func writeStreamEvent(ctx context.Context, conn *websocket.Conn, evt *types.Event, eventType string) error {
	if evt == nil || (eventType != "" && evt.Type != eventType) {
		return nil
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
