// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store is the embedded SQL event store: a bounded connection pool
// over modernc.org/sqlite configured for WAL durability plus write
// concurrency, versioned schema migrations, the insert_event contract, and
// backup/maintenance operations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tkdvta/corevta/internal/metrics"
)

// txReadOnly marks a transaction as read-only, used when holding a
// consistent snapshot for backups.
var txReadOnly = sql.TxOptions{ReadOnly: true}

// openPlain opens path with no pool bounds or pragma tuning, used by
// one-shot helpers like integrity verification of a backup candidate.
func openPlain(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}
	return db, nil
}

// Pragmas executed once by Open: WAL journaling, synchronous=NORMAL, a 30s
// busy timeout, foreign keys on, a memory-resident temp store, ~64MiB page
// cache, and ~128MiB mmap. They run on a single pooled connection. WAL
// journaling is stored in the database file and so holds for every
// connection; the other settings apply only to the connection that executed
// them, not to connections the pool opens later.
const connectionPragmas = `
PRAGMA journal_mode=WAL;
PRAGMA synchronous=NORMAL;
PRAGMA busy_timeout=30000;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
PRAGMA cache_size=-64000;
PRAGMA mmap_size=134217728;
`

// Store wraps a bounded SQL connection pool and exposes the event store's
// operations.
type Store struct {
	db   *sql.DB
	path string

	poolMu  sync.Mutex
	maxSize int
}

// Open opens (creating if absent) the SQLite database at dataDir/name.db,
// executes connectionPragmas on one pooled connection (see its comment for
// which settings reach the other connections), bounds the pool to
// poolMaxSize, and runs pending migrations.
func Open(ctx context.Context, dataDir, name string, poolMaxSize int) (*Store, error) {
	path := filepath.Join(dataDir, name+".db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}
	if poolMaxSize < 1 {
		poolMaxSize = 4
	}
	db.SetMaxOpenConns(poolMaxSize)
	db.SetMaxIdleConns(poolMaxSize)
	db.SetConnMaxIdleTime(60 * time.Second)

	if _, err := db.ExecContext(ctx, connectionPragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply connection pragmas: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("validate new connection: %w", err)
	}

	s := &Store{db: db, path: path, maxSize: poolMaxSize}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the on-disk location of the database file.
func (s *Store) Path() string {
	return s.path
}

// isBusyError reports whether err indicates SQLITE_BUSY, the only
// condition transactionWithRetry retries.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// isConnectionError reports whether err indicates the underlying
// connection, rather than the query, is the problem.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "bad connection")
}

// transaction runs fn inside a transaction, rolling back automatically on
// any returned error.
func (s *Store) transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// transactionWithRetry wraps transaction with exponential backoff
// (100ms * 2^k) for SQLITE_BUSY, retrying up to n times.
func (s *Store) transactionWithRetry(ctx context.Context, n int, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= n; attempt++ {
		lastErr = s.transaction(ctx, fn)
		if lastErr == nil || !isBusyError(lastErr) {
			return lastErr
		}
		backoff := time.Duration(100*(1<<attempt)) * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

func (s *Store) timedQuery(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.StoreQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreQueryErrors.WithLabelValues(operation).Inc()
	}
	return err
}
