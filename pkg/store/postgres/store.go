// Package postgres is the production picker.QueryEngine, backed by a pgx
// connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
	"github.com/otherjamesbrown/backoffice/pkg/picker"
	"github.com/otherjamesbrown/backoffice/pkg/store/sqlstore"
)

// Querier is the subset of *pgxpool.Pool the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads users and posts from PostgreSQL.
type Store struct {
	db Querier
}

// New creates a store over db, normally a *pgxpool.Pool.
func New(db Querier) *Store {
	return &Store{db: db}
}

// Find implements picker.QueryEngine.
func (s *Store) Find(ctx context.Context, q picker.Query) ([]picker.Record, error) {
	st, err := sqlstore.Find(sqlstore.Postgres, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, unavailable("find", err)
	}
	defer rows.Close()

	var out []picker.Record
	for rows.Next() {
		var key int64
		values := make([]string, len(st.Fields))
		if err := rows.Scan(st.ScanTargets(&key, values)...); err != nil {
			return nil, unavailable("scan", err)
		}
		out = append(out, st.Record(key, values))
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("find", err)
	}
	return out, nil
}

// Get implements picker.QueryEngine.
func (s *Store) Get(ctx context.Context, entity picker.EntityType, key int64, fields []string) (*picker.Record, error) {
	st, err := sqlstore.Get(sqlstore.Postgres, entity, key, fields)
	if err != nil {
		return nil, err
	}

	var got int64
	values := make([]string, len(st.Fields))
	err = s.db.QueryRow(ctx, st.SQL, st.Args...).Scan(st.ScanTargets(&got, values)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s %d: %w", entity, key, bferrors.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	rec := st.Record(got, values)
	return &rec, nil
}

// Exists implements picker.QueryEngine.
func (s *Store) Exists(ctx context.Context, entity picker.EntityType, key int64) (bool, error) {
	st, err := sqlstore.Exists(sqlstore.Postgres, entity, key)
	if err != nil {
		return false, err
	}

	var ok bool
	if err := s.db.QueryRow(ctx, st.SQL, st.Args...).Scan(&ok); err != nil {
		return false, unavailable("exists", err)
	}
	return ok, nil
}

// unavailable wraps a driver error, keeping the SQLSTATE when the server
// reported one.
func unavailable(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("postgres %s (sqlstate %s): %w: %w", op, pgErr.Code, bferrors.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("postgres %s: %w: %w", op, bferrors.ErrStoreUnavailable, err)
}
