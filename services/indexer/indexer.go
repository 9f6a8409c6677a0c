// Package indexer mirrors committed tips into a SQL database so they can be
// browsed newest first without walking the ledger lists.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/plebbit/plebbit-tipping-v1/core/events"
	"github.com/plebbit/plebbit-tipping-v1/core/types"
	"github.com/plebbit/plebbit-tipping-v1/native/tipping"
	"github.com/plebbit/plebbit-tipping-v1/observability"
	"github.com/plebbit/plebbit-tipping-v1/observability/logging"
)

const (
	defaultQueueSize    = 1024
	defaultPageSize     = 50
	maxPageSize         = 500
	defaultDrainTimeout = 5 * time.Second
)

var (
	errNilIndexer = errors.New("indexer: not initialised")
	errEmptyDSN   = errors.New("indexer: dsn is required")
)

// Filter narrows Recent results. Zero values match everything.
type Filter struct {
	Sender              common.Address
	Recipient           common.Address
	FeeRecipient        common.Address
	RecipientCommentCID common.Hash
	Limit               int
}

// Option customises an Indexer.
type Option func(*Indexer)

// WithQueueSize bounds the number of notifications waiting to be stored.
func WithQueueSize(size int) Option {
	return func(ix *Indexer) {
		if size > 0 {
			ix.queueSize = size
		}
	}
}

// WithDrainTimeout bounds how long Run keeps storing queued notifications
// after its context ends.
func WithDrainTimeout(d time.Duration) Option {
	return func(ix *Indexer) {
		if d > 0 {
			ix.drainTimeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) {
		if l != nil {
			ix.logger = l
		}
	}
}

// Indexer consumes tip notifications and persists them with gorm.
type Indexer struct {
	db           *gorm.DB
	queue        chan *types.Event
	queueSize    int
	drainTimeout time.Duration
	logger       *slog.Logger
	nowFn        func() time.Time
}

// Dialector selects the gorm driver for dsn: postgres URLs use the postgres
// driver, anything else is treated as a sqlite path or URI.
func Dialector(dsn string) (gorm.Dialector, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, errEmptyDSN
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return postgres.Open(trimmed), nil
	}
	return sqlite.Open(trimmed), nil
}

// Open connects to dsn, migrates the schema and returns a ready indexer.
func Open(dsn string, opts ...Option) (*Indexer, error) {
	dialector, err := Dialector(dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", logging.MaskDSN(dsn), err)
	}
	return New(db, opts...)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, opts ...Option) (*Indexer, error) {
	if db == nil {
		return nil, errNilIndexer
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	ix := &Indexer{
		db:           db,
		queueSize:    defaultQueueSize,
		drainTimeout: defaultDrainTimeout,
		logger:       slog.Default(),
		nowFn:        time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.queue = make(chan *types.Event, ix.queueSize)
	return ix, nil
}

// Emit queues tip notifications for storage. It never blocks the ledger: when
// the queue is full the notification is dropped and counted.
func (ix *Indexer) Emit(evt events.Event) {
	if ix == nil || evt == nil || evt.EventType() != tipping.EventTypeTipRecorded {
		return
	}
	payload, ok := evt.(events.Payload)
	if !ok || payload.Event() == nil {
		return
	}
	select {
	case ix.queue <- payload.Event().Clone():
		observability.Events().RecordIndexed("queued")
	default:
		observability.Events().RecordIndexed("dropped")
		ix.logger.Warn("indexer queue full, dropping notification",
			slog.Uint64("sequence", payload.Event().Sequence))
	}
}

// Run stores queued notifications until ctx ends, then drains what is still
// queued for at most the drain timeout.
func (ix *Indexer) Run(ctx context.Context) error {
	if ix == nil {
		return errNilIndexer
	}
	for {
		if ctx.Err() != nil {
			ix.drain()
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
		case evt := <-ix.queue:
			ix.process(ctx, evt)
		}
	}
}

func (ix *Indexer) process(ctx context.Context, evt *types.Event) {
	if err := ix.Store(ctx, evt); err != nil {
		observability.Events().RecordIndexed("failed")
		ix.logger.Error("indexer store failed",
			slog.Uint64("sequence", evt.Sequence),
			slog.String("error", err.Error()))
		return
	}
	observability.Events().RecordIndexed("stored")
}

func (ix *Indexer) drain() {
	deadline := time.Now().Add(ix.drainTimeout)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	stored := 0
	for {
		select {
		case evt := <-ix.queue:
			if !time.Now().Before(deadline) {
				dropped := 1 + len(ix.queue)
				for len(ix.queue) > 0 {
					<-ix.queue
				}
				for i := 0; i < dropped; i++ {
					observability.Events().RecordIndexed("dropped")
				}
				ix.logger.Warn("indexer drain timed out, dropping notifications",
					slog.Int("stored", stored),
					slog.Int("dropped", dropped))
				return
			}
			ix.process(ctx, evt)
			stored++
		default:
			if stored > 0 {
				ix.logger.Info("indexer drained queue", slog.Int("stored", stored))
			}
			return
		}
	}
}

// Store persists a single tip notification. Re-storing a sequence that is
// already indexed is a no-op.
func (ix *Indexer) Store(ctx context.Context, evt *types.Event) error {
	if ix == nil {
		return errNilIndexer
	}
	row, err := activityFromEvent(evt, ix.nowFn())
	if err != nil {
		return err
	}
	return ix.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sequence"}}, DoNothing: true}).
		Create(row).Error
}

// Recent returns the newest matching activity first.
func (ix *Indexer) Recent(ctx context.Context, filter Filter) ([]TipActivity, error) {
	if ix == nil {
		return nil, errNilIndexer
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	query := ix.db.WithContext(ctx).Model(&TipActivity{})
	if filter.Sender != (common.Address{}) {
		query = query.Where("sender = ?", filter.Sender.Hex())
	}
	if filter.Recipient != (common.Address{}) {
		query = query.Where("recipient = ?", filter.Recipient.Hex())
	}
	if filter.FeeRecipient != (common.Address{}) {
		query = query.Where("fee_recipient = ?", filter.FeeRecipient.Hex())
	}
	if filter.RecipientCommentCID != (common.Hash{}) {
		query = query.Where("recipient_comment_cid = ?", filter.RecipientCommentCID.Hex())
	}
	var rows []TipActivity
	if err := query.Order("sequence DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Close releases the underlying connection pool.
func (ix *Indexer) Close() error {
	if ix == nil {
		return nil
	}
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func activityFromEvent(evt *types.Event, now time.Time) (*TipActivity, error) {
	if evt == nil || evt.Type != tipping.EventTypeTipRecorded {
		return nil, fmt.Errorf("indexer: unsupported event")
	}
	if evt.Sequence == 0 {
		return nil, fmt.Errorf("indexer: event has no sequence")
	}
	amount := evt.Attr("amount")
	if !isDecimal(amount) {
		return nil, fmt.Errorf("indexer: invalid amount %q", amount)
	}
	return &TipActivity{
		Sequence:            evt.Sequence,
		Sender:              evt.Attr("sender"),
		Recipient:           evt.Attr("recipient"),
		FeeRecipient:        evt.Attr("feeRecipient"),
		Amount:              amount,
		RecipientCommentCID: evt.Attr("recipientCommentCid"),
		SenderCommentCID:    evt.Attr("senderCommentCid"),
		RecordedAt:          now.UTC(),
	}, nil
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
