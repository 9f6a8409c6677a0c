package core

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/plebbit/plebbit-tipping-v1/core/types"
)

const eventHistoryLimit = 2048

// publishStream stores evt in the bounded history and offers it to every
// subscriber. Subscribers that are not keeping up miss the event.
func (n *Node) publishStream(evt *types.Event) {
	if n == nil || evt == nil {
		return
	}

	n.streamMu.Lock()
	if n.streamSubs == nil {
		n.streamSubs = make(map[uint64]chan *types.Event)
	}
	n.streamHistory = append(n.streamHistory, evt.Clone())
	limit := n.historyLimit
	if limit <= 0 {
		limit = eventHistoryLimit
	}
	if len(n.streamHistory) > limit {
		excess := len(n.streamHistory) - limit
		trimmed := make([]*types.Event, limit)
		copy(trimmed, n.streamHistory[excess:])
		n.streamHistory = trimmed
	}
	// Sends happen under the lock so cancel cannot close a channel mid-send.
	for _, ch := range n.streamSubs {
		select {
		case ch <- evt.Clone():
		default:
			n.metrics.RecordStreamDrop()
		}
	}
	n.streamMu.Unlock()
}

// Subscribe registers a subscriber for committed ledger notifications. The
// returned backlog holds the retained notifications with a sequence greater
// than cursor; live notifications follow on the channel until cancel is called
// or ctx ends.
func (n *Node) Subscribe(ctx context.Context, cursor string) (<-chan *types.Event, func(), []*types.Event, error) {
	if n == nil {
		return nil, nil, nil, errNilNode
	}
	updates := make(chan *types.Event, 32)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	n.streamMu.Lock()
	if n.streamSubs == nil {
		n.streamSubs = make(map[uint64]chan *types.Event)
	}
	id := n.streamNextID
	n.streamNextID++
	n.streamSubs[id] = updates
	history := make([]*types.Event, len(n.streamHistory))
	copy(history, n.streamHistory)
	n.streamMu.Unlock()

	backlog := make([]*types.Event, 0, len(history))
	for _, entry := range history {
		if entry.Sequence > since {
			backlog = append(backlog, entry.Clone())
		}
	}

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			n.streamMu.Lock()
			sub, ok := n.streamSubs[id]
			if ok {
				delete(n.streamSubs, id)
				close(sub)
			}
			n.streamMu.Unlock()
		})
	}

	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-done:
			}
		}()
	}

	return updates, cancel, backlog, nil
}
