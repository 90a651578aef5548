package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"cadventory/internal/logging"
	"cadventory/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// SchemaVersion is written to the metadata table after migrations run.
const SchemaVersion = 2

// Database is the metadata store of one library.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens (creating if needed) the store at dbPath. The parent directory is
// created when missing.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Debug("Opening metadata store: %s", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Metadata store ready at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS models (
		id INTEGER PRIMARY KEY,
		short_name TEXT NOT NULL,
		primary_file TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL,
		library_name TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		thumbnail BLOB,
		is_selected INTEGER NOT NULL DEFAULT 0,
		is_processed INTEGER NOT NULL DEFAULT 0,
		is_included INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_models_file_path ON models(file_path);
	CREATE INDEX IF NOT EXISTS idx_models_short_name ON models(short_name COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_models_processed ON models(is_processed);

	CREATE TABLE IF NOT EXISTS objects (
		object_id INTEGER PRIMARY KEY AUTOINCREMENT,
		model_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		parent_object_id INTEGER NOT NULL DEFAULT -1,
		is_selected INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (model_id) REFERENCES models(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_objects_model ON objects(model_id);
	CREATE INDEX IF NOT EXISTS idx_objects_parent ON objects(parent_object_id);

	CREATE TABLE IF NOT EXISTS tags (
		model_id INTEGER NOT NULL,
		tag TEXT NOT NULL COLLATE NOCASE,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		PRIMARY KEY (model_id, tag),
		FOREIGN KEY (model_id) REFERENCES models(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS file_checksums (
		path TEXT PRIMARY KEY,
		checksum TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		checked_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return d.runMigrations(ctx)
}

// runMigrations applies database schema migrations
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: override_info column, absent from version 1 stores
	var columnExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('models')
		WHERE name='override_info'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for override_info column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating database: adding override_info column to models table")
		if _, err := d.db.ExecContext(ctx, `
			ALTER TABLE models ADD COLUMN override_info TEXT NOT NULL DEFAULT ''
		`); err != nil {
			return fmt.Errorf("failed to add override_info column: %w", err)
		}
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, strconv.Itoa(SchemaVersion))
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Batch is an open write transaction. Obtain one with BeginBatch and finish
// it with EndBatch.
type Batch struct {
	tx    *sql.Tx
	ctx   context.Context
	start time.Time
}

// BeginBatch starts a transaction for bulk writes. The transaction lives
// until EndBatch or until ctx is cancelled.
func (d *Database) BeginBatch(ctx context.Context) (*Batch, error) {
	d.mu.Lock()
	start := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	d.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to begin batch: %w", err)
	}
	return &Batch{tx: tx, ctx: ctx, start: start}, nil
}

// EndBatch commits the batch when err is nil and rolls it back otherwise.
// The returned error carries err and any rollback failure.
func (d *Database) EndBatch(b *Batch, err error) error {
	duration := time.Since(b.start).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := b.tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return b.tx.Commit()
}

// withTx runs fn inside a short transaction holding the write mutex.
func (d *Database) withTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	start := time.Now()
	if err = fn(ctx, tx); err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(start).Seconds())
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}
	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(start).Seconds())
	return tx.Commit()
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
