package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/registry/internal/metrics"
	"github.com/mesh-intelligence/registry/pkg/types"
)

// DatabaseFile is the name of the SQLite file inside the data directory.
const DatabaseFile = "registry.db"

// dsnParams apply to every pooled connection.
const dsnParams = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"

// Backend implements types.Cache on SQLite.
//
// Locking: mu guards the attach lifecycle and is held shared by every
// operation while it touches storage (never while user accessors run);
// Clear and Detach take it exclusively. writeMu serializes SQLite write
// transactions. Schema evolution is serialized per category by the
// schemaManager.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB

	writeMu sync.Mutex
	schemas *schemaManager
	ids     idGenerator

	sizeLimit atomic.Int64

	logger     *zap.Logger
	registerer prometheus.Registerer
	metrics    *metrics.Metrics
	now        func() time.Time

	sweepMu    sync.Mutex
	sweepTimer *time.Timer
}

var _ types.Cache = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRegisterer registers the backend's metrics with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(b *Backend) { b.registerer = r }
}

// WithClock replaces time.Now for expiration checks.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.metrics = metrics.New(b.registerer)
	return b
}

// Attach opens (or creates) the database in config.DataDir, creates the
// metadata tables, and loads the category schemas.
// Returns ErrAlreadyInitialized if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyInitialized
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)
	db, err := sql.Open("sqlite", "file:"+dbPath+dsnParams)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	schemas := newSchemaManager(b)
	if err := schemas.load(db); err != nil {
		db.Close()
		return fmt.Errorf("loading schemas: %w", err)
	}

	var lastID int64
	if err := db.QueryRow("SELECT value FROM registry_meta WHERE key = 'last_id'").Scan(&lastID); err != nil {
		db.Close()
		return fmt.Errorf("loading id high-water mark: %w", err)
	}

	b.db = db
	b.config = config
	b.schemas = schemas
	b.ids.seed(lastID)
	b.sizeLimit.Store(config.SizeLimitBytes)
	b.attached = true

	if config.SweepInterval > 0 {
		b.startSweeper(config.SweepInterval)
	}

	b.logger.Info("registry attached",
		zap.String("path", dbPath),
		zap.Int("categories", schemas.count()),
		zap.Int64("last_id", lastID),
		zap.Int64("size_limit_bytes", config.SizeLimitBytes))
	return nil
}

// Detach releases all resources held by the backend. After Detach, all
// operations return ErrCacheClosed. Detach is idempotent.
func (b *Backend) Detach() error {
	b.stopSweeper()

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}

	b.attached = false
	b.schemas = nil
	b.logger.Info("registry detached")
	return nil
}

// Initialize sets the size limit. Zero or less disables eviction.
func (b *Backend) Initialize(sizeLimitBytes int64) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrCacheClosed
	}
	if sizeLimitBytes < 0 {
		sizeLimitBytes = 0
	}
	b.sizeLimit.Store(sizeLimitBytes)
	return b.enforceSizeLimit(context.Background())
}

// Close is Detach.
func (b *Backend) Close() error {
	return b.Detach()
}

// checkAttached returns ErrCacheClosed when the backend is detached.
// The caller must hold b.mu.
func (b *Backend) checkAttached() error {
	if !b.attached {
		return types.ErrCacheClosed
	}
	return nil
}

// withWrite runs fn in a write transaction, serialized with every other writer.
func (b *Backend) withWrite(ctx context.Context, fn func(tx *sql.Tx) error) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
