package storex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const maxComputeAttempts = 5

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// OpenSQL connects to postgres or sqlite. SQLite is limited to one
// connection so transactions serialize instead of failing with SQLITE_BUSY.
func OpenSQL(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, storeErrors.New(ErrConnectionFailed).
			WithDetail("driver", driver).
			WithCause(err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// SQLStore keeps JSON encoded values in a table with one row per key
type SQLStore[T any] struct {
	DB        *sqlx.DB
	TableName string
	now       func() time.Time
}

// NewSQLStore creates a store over table
func NewSQLStore[T any](db *sqlx.DB, table string) (*SQLStore[T], error) {
	if !tableNamePattern.MatchString(table) {
		return nil, storeErrors.New(ErrInvalidTable).WithDetail("table", table)
	}
	return &SQLStore[T]{DB: db, TableName: table, now: time.Now}, nil
}

// EnsureSchema creates the table when missing
func (s *SQLStore[T]) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		store_key VARCHAR(255) PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`, s.TableName)

	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		return storeErrors.New(ErrSQLExecFailed).
			WithDetail("table", s.TableName).
			WithCause(err)
	}
	return nil
}

func (s *SQLStore[T]) Get(ctx context.Context, key string) (T, bool, error) {
	query := s.DB.Rebind(fmt.Sprintf("SELECT payload FROM %s WHERE store_key = ?", s.TableName))

	var payload string
	if err := s.DB.GetContext(ctx, &payload, query, key); err != nil {
		var zero T
		if errors.Is(err, sql.ErrNoRows) {
			return zero, false, nil
		}
		return zero, false, storeErrors.New(ErrSQLQueryFailed).
			WithDetail("table", s.TableName).
			WithDetail("key", key).
			WithCause(err)
	}

	v, err := s.decode(key, payload)
	return v, err == nil, err
}

// Compute locks the row (FOR UPDATE on postgres, the single writer on
// sqlite). A first insert that loses a race against another writer is
// retried from the read.
func (s *SQLStore[T]) Compute(ctx context.Context, key string, fn ComputeFunc[T]) (T, bool, error) {
	var zero T
	for attempt := 0; attempt < maxComputeAttempts; attempt++ {
		v, present, retry, err := s.computeOnce(ctx, key, fn)
		if err != nil {
			return zero, false, err
		}
		if !retry {
			return v, present, nil
		}
	}
	return zero, false, storeErrors.New(ErrConflict).
		WithDetail("table", s.TableName).
		WithDetail("key", key)
}

func (s *SQLStore[T]) computeOnce(ctx context.Context, key string, fn ComputeFunc[T]) (v T, present, retry bool, err error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return v, false, false, storeErrors.New(ErrTxBeginFailed).WithCause(err)
	}
	defer tx.Rollback()

	selectQuery := fmt.Sprintf("SELECT payload FROM %s WHERE store_key = ?", s.TableName)
	if s.DB.DriverName() == "postgres" {
		selectQuery += " FOR UPDATE"
	}

	var (
		old     T
		loaded  bool
		payload string
	)
	switch err := tx.GetContext(ctx, &payload, tx.Rebind(selectQuery), key); {
	case err == nil:
		if old, err = s.decode(key, payload); err != nil {
			return v, false, false, err
		}
		loaded = true
	case errors.Is(err, sql.ErrNoRows):
	default:
		return v, false, false, storeErrors.New(ErrSQLQueryFailed).
			WithDetail("table", s.TableName).
			WithDetail("key", key).
			WithCause(err)
	}

	next, op := fn(old, loaded)

	switch op {
	case CancelOp:
		return old, loaded, false, nil

	case DeleteOp:
		if loaded {
			q := tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE store_key = ?", s.TableName))
			if _, err := tx.ExecContext(ctx, q, key); err != nil {
				return v, false, false, s.execErr(key, err)
			}
		}
		var zero T
		return zero, false, false, s.commit(tx)

	default:
		encoded, err := json.Marshal(next)
		if err != nil {
			return v, false, false, storeErrors.New(ErrEncodeFailed).
				WithDetail("key", key).
				WithCause(err)
		}

		stamp := s.now().UnixMilli()
		if loaded {
			q := tx.Rebind(fmt.Sprintf("UPDATE %s SET payload = ?, updated_at = ? WHERE store_key = ?", s.TableName))
			if _, err := tx.ExecContext(ctx, q, string(encoded), stamp, key); err != nil {
				return v, false, false, s.execErr(key, err)
			}
		} else {
			q := tx.Rebind(fmt.Sprintf(
				"INSERT INTO %s (store_key, payload, updated_at) VALUES (?, ?, ?) ON CONFLICT (store_key) DO NOTHING",
				s.TableName))
			res, err := tx.ExecContext(ctx, q, key, string(encoded), stamp)
			if err != nil {
				return v, false, false, s.execErr(key, err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return v, false, true, nil
			}
		}
		return next, true, false, s.commit(tx)
	}
}

func (s *SQLStore[T]) commit(tx *sqlx.Tx) error {
	if err := tx.Commit(); err != nil {
		return storeErrors.New(ErrTxCommitFailed).
			WithDetail("table", s.TableName).
			WithCause(err)
	}
	return nil
}

func (s *SQLStore[T]) Delete(ctx context.Context, key string) error {
	query := s.DB.Rebind(fmt.Sprintf("DELETE FROM %s WHERE store_key = ?", s.TableName))
	if _, err := s.DB.ExecContext(ctx, query, key); err != nil {
		return s.execErr(key, err)
	}
	return nil
}

func (s *SQLStore[T]) decode(key, payload string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return v, storeErrors.New(ErrDecodeFailed).
			WithDetail("table", s.TableName).
			WithDetail("key", key).
			WithCause(err)
	}
	return v, nil
}

func (s *SQLStore[T]) execErr(key string, err error) error {
	return storeErrors.New(ErrSQLExecFailed).
		WithDetail("table", s.TableName).
		WithDetail("key", key).
		WithCause(err)
}
