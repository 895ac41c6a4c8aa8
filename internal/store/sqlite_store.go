package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kittclouds/bookshelf/internal/logger"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
)

// MemoryPath selects a private in-memory database.
const MemoryPath = ":memory:"

// Config is the injectable configuration of a store.
type Config struct {
	// Path is a file path or MemoryPath.
	Path string

	// MaxOpenConns bounds the pool. Forced to 1 for in-memory databases,
	// since every connection would otherwise see its own empty database.
	MaxOpenConns int

	// BusyTimeout is how long a contended write waits before failing.
	BusyTimeout time.Duration

	// SchemaRetries is the number of retries after the first failed schema
	// attempt; SchemaRetryDelay is the base of the linear backoff.
	SchemaRetries    int
	SchemaRetryDelay time.Duration

	// EmbeddingDimensions fixes the width of the vec0 embedding column.
	EmbeddingDimensions int

	// AutoLabelKeywords caps title keywords added by ApplyAutoLabels.
	AutoLabelKeywords int
}

// DefaultConfig returns the configuration used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		Path:                MemoryPath,
		MaxOpenConns:        4,
		BusyTimeout:         5 * time.Second,
		SchemaRetries:       3,
		SchemaRetryDelay:    200 * time.Millisecond,
		EmbeddingDimensions: 384,
		AutoLabelKeywords:   3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Path == "" {
		c.Path = d.Path
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = d.MaxOpenConns
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = d.BusyTimeout
	}
	if c.SchemaRetries < 0 {
		c.SchemaRetries = 0
	}
	if c.SchemaRetryDelay <= 0 {
		c.SchemaRetryDelay = d.SchemaRetryDelay
	}
	if c.EmbeddingDimensions <= 0 {
		c.EmbeddingDimensions = d.EmbeddingDimensions
	}
	if c.AutoLabelKeywords < 0 {
		c.AutoLabelKeywords = 0
	}
	return c
}

func (c Config) inMemory() bool {
	return c.Path == MemoryPath
}

// DSN builds the driver data source name. File databases run in WAL mode with
// a busy timeout, and write transactions take the lock up front.
func (c Config) DSN() string {
	if c.inMemory() {
		return MemoryPath
	}
	var b strings.Builder
	b.WriteString("file:")
	segments := strings.Split(filepath.ToSlash(c.Path), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	b.WriteString(strings.Join(segments, "/"))
	fmt.Fprintf(&b, "?_pragma=busy_timeout(%d)", c.BusyTimeout.Milliseconds())
	b.WriteString("&_pragma=journal_mode(wal)")
	b.WriteString("&_pragma=synchronous(normal)")
	b.WriteString("&_txlock=immediate")
	return b.String()
}

// SQLiteStore is the SQLite-backed data store.
// Safe for concurrent callers; write serialization is left to SQLite.
type SQLiteStore struct {
	db       *sql.DB
	cfg      Config
	log      logger.Logger
	gate     *Gate
	validate *validator.Validate
	now      func() time.Time

	// vectors is written by migrate before the gate opens and only read after.
	vectors bool
}

// Open opens the database and starts schema initialisation in the
// background. Operations block on the readiness gate until it finishes.
func Open(ctx context.Context, cfg Config, log logger.Logger) (*SQLiteStore, error) {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.Nop()
	}

	db, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.inMemory() {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetMaxIdleConns(db.Stats().MaxOpenConnections)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:       db,
		cfg:      cfg,
		log:      log.Named("store"),
		gate:     NewGate(),
		validate: validator.New(),
		now:      time.Now,
	}

	mgr := &SchemaManager{
		Retries: cfg.SchemaRetries,
		Delay:   cfg.SchemaRetryDelay,
		Migrate: s.migrate,
		Log:     s.log,
	}
	initCtx := context.WithoutCancel(ctx)
	go func() {
		s.gate.Release(mgr.Run(initCtx))
	}()

	return s, nil
}

// NewSQLiteStore opens an in-memory store with default settings and waits for
// its schema.
func NewSQLiteStore() (*SQLiteStore, error) {
	ctx := context.Background()
	s, err := Open(ctx, DefaultConfig(), logger.Nop())
	if err != nil {
		return nil, err
	}
	if err := s.Ready(ctx); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Degraded(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Ready waits for schema initialisation. It returns nil after a failed
// initialisation too; check Degraded for the outcome.
func (s *SQLiteStore) Ready(ctx context.Context) error {
	return s.gate.Wait(ctx)
}

// Degraded returns the schema initialisation error, or nil when the schema is
// in place or still being created.
func (s *SQLiteStore) Degraded() error {
	return s.gate.Err()
}

// Close waits for the schema attempt to settle and closes the pool.
func (s *SQLiteStore) Close() error {
	<-s.gate.Done()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ready is awaited by every public operation.
func (s *SQLiteStore) ready(ctx context.Context) error {
	if err := s.gate.Wait(ctx); err != nil {
		return fmt.Errorf("await schema: %w", err)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in one transaction. Any error or panic rolls back. The
// transaction is detached from ctx cancellation so that an abandoned caller
// never leaves it half-applied.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	ctx = context.WithoutCancel(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.storageErr(fmt.Errorf("begin tx: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return s.storageErr(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// withReadTx runs fn in one read-only transaction, so every query in fn sees
// the same snapshot.
func (s *SQLiteStore) withReadTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return s.storageErr(fmt.Errorf("begin read tx: %w", err))
	}
	defer tx.Rollback()
	return fn(ctx, tx)
}

// storageErr tags errors from a degraded store so callers can tell them apart
// from transient failures.
func (s *SQLiteStore) storageErr(err error) error {
	if err == nil {
		return nil
	}
	if degraded := s.gate.Err(); degraded != nil {
		return fmt.Errorf("%w: %w", degraded, err)
	}
	return err
}

func (s *SQLiteStore) nowMillis() int64 {
	return s.now().UnixMilli()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullString stores empty strings as NULL.
func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// chunk splits ids into groups that stay under SQLite's variable limit.
func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Compile-time interface check
var _ Storer = (*SQLiteStore)(nil)
