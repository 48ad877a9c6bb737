// Package eventlog persists committed channel events in an append-only,
// hash-chained table so indexers and API clients can replay them.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"contentchain/core/events"
	"contentchain/core/types"
	"contentchain/observability"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	// DefaultQueryLimit applies when a query does not set a limit.
	DefaultQueryLimit = 100
	// MaxQueryLimit caps a single page of results.
	MaxQueryLimit = 1000

	verifyBatchSize = 500
)

var (
	ErrUnknownDriver = errors.New("eventlog: unknown driver")
	ErrEmptyDSN      = errors.New("eventlog: dsn required")
	ErrNilEvent      = errors.New("eventlog: event required")
	ErrChainBroken   = errors.New("eventlog: hash chain broken")
	ErrEventsLost    = errors.New("eventlog: committed events were not persisted")
)

// Filter narrows a query. After is exclusive.
type Filter struct {
	Type  string
	After uint64
	Limit int
}

// Log is an append-only event store. It implements events.Emitter so the
// host can use it directly as its commit sink.
type Log struct {
	mu     sync.Mutex
	db     *gorm.DB
	seq    uint64
	head   string
	hub    *Hub
	logger *slog.Logger
	nowFn  func() time.Time

	// lost counts events handed to Emit that Append could not persist.
	lost    uint64
	lostErr error
}

// Open connects to the named driver and prepares the schema.
func Open(driver, dsn string) (*Log, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrEmptyDSN
	}
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing connection, migrating the schema and loading the
// chain head.
func New(db *gorm.DB) (*Log, error) {
	if db == nil {
		return nil, errors.New("eventlog: database required")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	l := &Log{
		db:     db,
		hub:    newHub(),
		logger: slog.Default(),
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	var last []Record
	if err := db.Order("seq desc").Limit(1).Find(&last).Error; err != nil {
		return nil, fmt.Errorf("eventlog: load head: %w", err)
	}
	if len(last) == 1 {
		l.seq = last[0].Seq
		l.head = last[0].Hash
	}
	return l, nil
}

// SetLogger overrides the logger used for sink failures.
func (l *Log) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// SetNowFunc overrides the record timestamp clock.
func (l *Log) SetNowFunc(now func() time.Time) {
	if now != nil {
		l.nowFn = now
	}
}

// Head returns the last sequence number and its hash.
func (l *Log) Head() (uint64, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq, l.head
}

// Hub exposes live subscriptions to appended records.
func (l *Log) Hub() *Hub { return l.hub }

// Append persists evt at the end of the chain and publishes it to subscribers.
func (l *Log) Append(evt *types.Event) (Record, error) {
	if evt == nil || strings.TrimSpace(evt.Type) == "" {
		return Record{}, ErrNilEvent
	}
	attrs, err := canonicalAttributes(evt.Attributes)
	if err != nil {
		return Record{}, fmt.Errorf("eventlog: encode attributes: %w", err)
	}
	l.mu.Lock()
	rec := Record{
		Seq:        l.seq + 1,
		Type:       evt.Type,
		Attributes: attrs,
		PrevHash:   l.head,
		CreatedAt:  l.nowFn(),
	}
	rec.Hash = chainHash(rec.PrevHash, rec.Seq, rec.Type, rec.Attributes)
	if err := l.db.Create(&rec).Error; err != nil {
		l.mu.Unlock()
		return Record{}, fmt.Errorf("eventlog: append: %w", err)
	}
	l.seq = rec.Seq
	l.head = rec.Hash
	l.mu.Unlock()

	l.hub.publish(rec)
	return rec, nil
}

// Emit implements events.Emitter. Emitters have no error path, so a failed
// append is logged, counted and remembered. From then on Verify fails with
// ErrEventsLost.
func (l *Log) Emit(evt events.Event) {
	rendered := events.Render(evt)
	if rendered == nil {
		return
	}
	if _, err := l.Append(rendered); err != nil {
		l.mu.Lock()
		l.lost++
		l.lostErr = err
		lost := l.lost
		l.mu.Unlock()
		observability.Events().RecordLost(rendered.Type)
		l.logger.Error("event log append failed", "type", rendered.Type, "lost", lost, "error", err)
	}
}

// Lost reports how many emitted events this process failed to persist.
func (l *Log) Lost() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lost
}

// Query returns records in sequence order.
func (l *Log) Query(ctx context.Context, filter Filter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	tx := l.db.WithContext(ctx).Where("seq > ?", filter.After)
	if typ := strings.TrimSpace(filter.Type); typ != "" {
		tx = tx.Where("type = ?", typ)
	}
	var out []Record
	if err := tx.Order("seq asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("eventlog: query: %w", err)
	}
	return out, nil
}

// Verify walks the whole chain and recomputes every hash. A log that has
// dropped emitted events fails before the walk.
func (l *Log) Verify(ctx context.Context) error {
	l.mu.Lock()
	lost, lostErr := l.lost, l.lostErr
	l.mu.Unlock()
	if lost > 0 {
		return fmt.Errorf("%w: %d missing, last failure: %v", ErrEventsLost, lost, lostErr)
	}

	var (
		prev     string
		expected uint64 = 1
		broken   error
	)
	var batch []Record
	res := l.db.WithContext(ctx).Order("seq asc").FindInBatches(&batch, verifyBatchSize, func(tx *gorm.DB, _ int) error {
		for _, rec := range batch {
			switch {
			case rec.Seq != expected:
				broken = fmt.Errorf("%w: expected seq %d, found %d", ErrChainBroken, expected, rec.Seq)
			case rec.PrevHash != prev:
				broken = fmt.Errorf("%w: seq %d does not link to its predecessor", ErrChainBroken, rec.Seq)
			case rec.Hash != chainHash(rec.PrevHash, rec.Seq, rec.Type, rec.Attributes):
				broken = fmt.Errorf("%w: seq %d hash mismatch", ErrChainBroken, rec.Seq)
			}
			if broken != nil {
				return broken
			}
			prev = rec.Hash
			expected++
		}
		return nil
	})
	if broken != nil {
		return broken
	}
	if res.Error != nil {
		return fmt.Errorf("eventlog: verify: %w", res.Error)
	}
	return nil
}

// Close releases the underlying connection pool and ends subscriptions.
func (l *Log) Close() error {
	l.hub.close()
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
