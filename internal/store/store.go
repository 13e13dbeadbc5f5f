package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/go-playground/validator/v10"

	"github.com/abhisek/mathprogress/internal/backoff"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store owns the database handle and hands out repositories bound either to
// the database or to a transaction.
type Store struct {
	Repos

	db       *sql.DB
	drv      *entsql.Driver
	seq      *sequenceCounter
	validate *validator.Validate
	strict   bool
	retry    backoff.Policy
}

// Option configures a Store.
type Option func(*Store)

// WithStrictInvariants makes invariant violations panic instead of
// returning ErrInvariantViolation. Intended for development and tests.
func WithStrictInvariants(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

// WithConflictRetry sets the policy used by Update to retry transactions
// that fail with ErrConflict.
func WithConflictRetry(p backoff.Policy) Option {
	return func(s *Store) { s.retry = p }
}

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas and migrates the schema.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:"
	// databases alive for the lifetime of the Store.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	drv := entsql.OpenDB(dialect.SQLite, db)
	if err := migrate(context.Background(), drv); err != nil {
		drv.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	seq, err := newSequenceCounter(db)
	if err != nil {
		drv.Close()
		return nil, err
	}

	s := &Store{
		db:       db,
		drv:      drv,
		seq:      seq,
		validate: newValidator(),
		retry:    backoff.ConflictPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Repos = Repos{q: db, s: s}
	return s, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

// Tx is a unit of work. Repositories obtained from it read and write
// within the transaction.
type Tx struct {
	Repos
}

// View runs fn in a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck

	return fn(&Tx{Repos: Repos{q: sqlTx, s: s}})
}

// Update runs fn in a read-write transaction and commits it when fn returns
// nil. Transactions failing with ErrConflict are retried from the start
// using the store's conflict policy, so fn must re-read what it modifies.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	return backoff.Retry(ctx, s.retry, func(err error) bool {
		return errors.Is(err, ErrConflict)
	}, func(ctx context.Context) error {
		return s.runTx(ctx, fn)
	})
}

func (s *Store) runTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{Repos: Repos{q: sqlTx, s: s}}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// check validates v against its struct tags and registered struct rules.
func (s *Store) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		if s.strict {
			panic(fmt.Sprintf("%v: %v", ErrInvariantViolation, err))
		}
		return fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}
	return nil
}

// applyPragmas configures SQLite for optimal single-user performance.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. MATHPROGRESS_DB environment variable
// 2. $XDG_DATA_HOME/mathprogress/mathprogress.db
// 3. ~/.local/share/mathprogress/mathprogress.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("MATHPROGRESS_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "mathprogress", "mathprogress.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
