package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"PortfolioLedger/internal/ledger"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Store is the transactional persistence collaborator of the ledger engine.
// It owns the connection pool; repositories are reached through Queries,
// either bound to the pool (Reader) or to a transaction (WithTx).
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	log     zerolog.Logger
}

// Options configures Open.
type Options struct {
	Driver string
	DSN    string
	Logger zerolog.Logger
}

// Open connects to the database and configures the pool for the dialect.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dialect, err := ParseDialect(opts.Driver)
	if err != nil {
		return nil, err
	}

	dsn := opts.DSN
	if dialect == DialectSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	configurePool(db.DB, dialect)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	return NewStore(db, dialect, opts.Logger), nil
}

// NewStore wraps an existing connection.
func NewStore(db *sqlx.DB, dialect Dialect, logger zerolog.Logger) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		log:     logger.With().Str("component", "store").Logger(),
	}
}

// DB exposes the underlying pool (migrations, health checks).
func (s *Store) DB() *sql.DB {
	return s.db.DB
}

// Dialect returns the SQL engine in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reader returns repositories bound to the pool, for reads outside an
// operation. Only committed data is visible.
func (s *Store) Reader() *Queries {
	return &Queries{ext: s.db, dialect: s.dialect}
}

// WithTx runs fn inside a single transaction. The transaction commits only if
// fn returns nil; any error (or panic) rolls back every write made through the
// Queries handed to fn.
func (s *Store) WithTx(ctx context.Context, fn func(q *Queries) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.log.Warn().Err(rbErr).Msg("rollback failed")
			}
		}
	}()

	if err = fn(&Queries{ext: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", classify(err, ledger.ErrConflict))
	}
	return nil
}

// Queries is the set of repository operations over one executor.
type Queries struct {
	ext     sqlx.ExtContext
	dialect Dialect
}

func (q *Queries) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, q.ext, dest, q.ext.Rebind(query), args...)
}

func (q *Queries) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, q.ext, dest, q.ext.Rebind(query), args...)
}

func (q *Queries) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return q.ext.ExecContext(ctx, q.ext.Rebind(query), args...)
}

// insertReturningID runs an INSERT ... RETURNING id statement.
func (q *Queries) insertReturningID(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var id int64
	if err := q.ext.QueryRowxContext(ctx, q.ext.Rebind(query), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// LockOwner takes the per-owner write lock for the rest of the transaction.
func (q *Queries) LockOwner(ctx context.Context, ownerID int64) error {
	var id int64
	err := q.get(ctx, &id, q.dialect.lockOwnerQuery(), ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("owner %d: %w", ownerID, ledger.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock owner %d: %w", ownerID, err)
	}
	return nil
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "file:portfolio.db"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep +
		"_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(FULL)"
}

func configurePool(db *sql.DB, dialect Dialect) {
	switch dialect {
	case DialectSQLite:
		// One writer at a time; also keeps in-memory databases on a single
		// connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	default:
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
}
