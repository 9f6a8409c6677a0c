package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/plebbit/plebbit-tipping-v1/core/events"
	"github.com/plebbit/plebbit-tipping-v1/core/genesis"
	nhbstate "github.com/plebbit/plebbit-tipping-v1/core/state"
	"github.com/plebbit/plebbit-tipping-v1/core/types"
	"github.com/plebbit/plebbit-tipping-v1/native/bank"
	"github.com/plebbit/plebbit-tipping-v1/native/tipping"
	"github.com/plebbit/plebbit-tipping-v1/observability"
	"github.com/plebbit/plebbit-tipping-v1/observability/metrics"
	"github.com/plebbit/plebbit-tipping-v1/storage"
)

var errNilNode = errors.New("node not initialised")

// eventSequenceKey persists the last assigned notification sequence so stream
// cursors stay valid across restarts.
var eventSequenceKey = []byte("events/sequence")

// Node is the execution environment of the ledger. Mutations are serialized
// under a single writer lock and either commit in full or leave no trace;
// notifications are released only after the commit succeeded.
type Node struct {
	db      storage.Database
	state   *nhbstate.Manager
	bank    *bank.Ledger
	tipping *tipping.Engine
	pending *events.Buffer

	mu sync.RWMutex

	emitters events.Multi
	eventSeq uint64

	streamMu      sync.Mutex
	streamSubs    map[uint64]chan *types.Event
	streamNextID  uint64
	streamHistory []*types.Event
	historyLimit  int

	logger  *slog.Logger
	metrics *metrics.TippingMetrics
}

// Option customises a Node.
type Option func(*Node)

// WithLogger sets the structured logger used for mutation outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithEmitter registers an emitter that receives committed notifications.
func WithEmitter(emitter events.Emitter) Option {
	return func(n *Node) {
		if emitter != nil {
			n.emitters = append(n.emitters, emitter)
		}
	}
}

// WithStreamHistory bounds the number of notifications kept for stream
// subscribers resuming from a cursor.
func WithStreamHistory(limit int) Option {
	return func(n *Node) {
		if limit > 0 {
			n.historyLimit = limit
		}
	}
}

// NewNode opens the ledger stored in db. When the ledger has never been
// initialised and gen is provided, genesis is applied in one transaction.
func NewNode(db storage.Database, gen *genesis.Genesis, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("database must not be nil")
	}
	manager := nhbstate.NewManager(db)
	n := &Node{
		db:           db,
		state:        manager,
		bank:         bank.NewLedger(manager),
		tipping:      tipping.NewEngine(),
		pending:      &events.Buffer{},
		streamSubs:   make(map[uint64]chan *types.Event),
		historyLimit: eventHistoryLimit,
		logger:       slog.Default(),
		metrics:      metrics.Tipping(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.tipping.SetState(manager)
	n.tipping.SetBank(n.bank)
	n.tipping.SetEmitter(n.pending)

	if _, err := manager.KVGet(eventSequenceKey, &n.eventSeq); err != nil {
		return nil, fmt.Errorf("read event sequence: %w", err)
	}
	initialized, err := manager.TippingInitialized()
	if err != nil {
		return nil, fmt.Errorf("read ledger state: %w", err)
	}
	if !initialized && gen != nil {
		if err := n.applyGenesis(gen); err != nil {
			return nil, fmt.Errorf("apply genesis: %w", err)
		}
	}
	return n, nil
}

func (n *Node) applyGenesis(gen *genesis.Genesis) error {
	return n.apply("genesis", func() error {
		if err := n.tipping.Initialize(gen.Deployer, gen.MinimumTipAmount, gen.FeePercent); err != nil {
			return err
		}
		for _, moderator := range gen.Moderators {
			if err := n.tipping.GrantModerator(gen.Deployer, moderator); err != nil {
				return err
			}
		}
		for _, alloc := range gen.Alloc {
			if err := n.bank.Credit(alloc.Address, alloc.Amount); err != nil {
				return fmt.Errorf("alloc %s: %w", alloc.Address.Hex(), err)
			}
		}
		for _, addr := range gen.NonPayable {
			if err := n.state.SetPayable(addr.Bytes(), false); err != nil {
				return err
			}
		}
		return nil
	})
}

// apply runs fn as one atomic ledger transaction.
func (n *Node) apply(operation string, fn func() error) error {
	if n == nil {
		return errNilNode
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	n.pending.Reset()
	if err := fn(); err != nil {
		n.fail(operation, err)
		return err
	}
	batch := n.pending.Drain()
	if len(batch) > 0 {
		if err := n.state.KVPut(eventSequenceKey, n.eventSeq+uint64(len(batch))); err != nil {
			n.fail(operation, fmt.Errorf("persist event sequence: %w", err))
			return err
		}
	}
	writes := n.state.Dirty()
	start := time.Now()
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		n.pending.Reset()
		n.metrics.ObserveOperation(operation, "commit")
		n.logger.Error("ledger commit failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()))
		return err
	}
	n.metrics.ObserveCommit(time.Since(start))
	n.metrics.ObserveOperation(operation, "")
	n.logger.Debug("ledger operation committed",
		slog.String("operation", operation),
		slog.Int("writes", writes),
		slog.Int("events", len(batch)))
	n.publish(batch)
	return nil
}

// fail discards the journal of a rejected operation and records the outcome.
func (n *Node) fail(operation string, err error) {
	n.state.Discard()
	n.pending.Reset()
	reason := tipping.Reason(err)
	if reason == "" {
		reason = "internal"
	}
	n.metrics.ObserveOperation(operation, reason)
	n.logger.Warn("ledger operation rejected",
		slog.String("operation", operation),
		slog.String("reason", reason),
		slog.String("error", err.Error()))
}

// publish stamps committed events with a sequence number and hands them to the
// registered emitters and stream subscribers. It runs under the writer lock so
// notifications leave in commit order.
func (n *Node) publish(batch []events.Event) {
	for _, evt := range batch {
		n.eventSeq++
		payload, ok := evt.(events.Payload)
		if !ok || payload.Event() == nil {
			continue
		}
		raw := payload.Event().Clone()
		raw.Sequence = n.eventSeq
		observability.Events().RecordPublished(raw.Type)

		n.emitters.Emit(tipping.WrapEvent(raw))
		n.publishStream(raw)
	}
}

// Credit adds native currency to addr. It is the operator faucet used to fund
// tipping accounts outside genesis.
func (n *Node) Credit(addr common.Address, amount *big.Int) error {
	return n.apply("credit", func() error {
		return n.bank.Credit(addr, amount)
	})
}

// SetPayable marks whether addr accepts incoming transfers.
func (n *Node) SetPayable(addr common.Address, payable bool) error {
	return n.apply("set_payable", func() error {
		return n.state.SetPayable(addr.Bytes(), payable)
	})
}

// Balance returns the committed native balance of addr.
func (n *Node) Balance(addr common.Address) (*big.Int, error) {
	if n == nil {
		return nil, errNilNode
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state.Balance(addr.Bytes())
}

// Payable reports whether addr accepts incoming transfers.
func (n *Node) Payable(addr common.Address) (bool, error) {
	if n == nil {
		return false, errNilNode
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state.Payable(addr.Bytes())
}
