// Package sqlite is a picker.QueryEngine over an embedded SQLite database
// (modernc.org/sqlite, no cgo). It suits local development and single-node
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
	"github.com/otherjamesbrown/backoffice/pkg/picker"
	"github.com/otherjamesbrown/backoffice/pkg/store/sqlstore"
)

// Store reads users and posts from SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := (Migrator{}).Up(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for seeding and admin commands.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Find implements picker.QueryEngine.
func (s *Store) Find(ctx context.Context, q picker.Query) ([]picker.Record, error) {
	st, err := sqlstore.Find(sqlstore.SQLite, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, st.SQL, st.Args...)
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
	st, err := sqlstore.Get(sqlstore.SQLite, entity, key, fields)
	if err != nil {
		return nil, err
	}

	var got int64
	values := make([]string, len(st.Fields))
	err = s.db.QueryRowContext(ctx, st.SQL, st.Args...).Scan(st.ScanTargets(&got, values)...)
	if errors.Is(err, sql.ErrNoRows) {
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
	st, err := sqlstore.Exists(sqlstore.SQLite, entity, key)
	if err != nil {
		return false, err
	}

	var ok bool
	if err := s.db.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&ok); err != nil {
		return false, unavailable("exists", err)
	}
	return ok, nil
}

// InsertUser adds a user and returns its key.
func (s *Store) InsertUser(ctx context.Context, name, email string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (name, email) VALUES (?, ?)`, name, email)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return res.LastInsertId()
}

// InsertPost adds a post owned by userID and returns its key.
func (s *Store) InsertPost(ctx context.Context, userID int64, title, description string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (user_id, title, description) VALUES (?, ?, ?)`,
		userID, title, description)
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}
	return res.LastInsertId()
}

// SoftDelete marks a user or post deleted.
func (s *Store) SoftDelete(ctx context.Context, entity picker.EntityType, key int64, at time.Time) error {
	t, err := sqlstore.LookupTable(entity)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET deleted_at = ? WHERE id = ?`, t.Name),
		at.UTC().Format(time.RFC3339), key)
	if err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %d: %w", entity, key, bferrors.ErrNotFound)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("sqlite %s: %w: %w", op, bferrors.ErrStoreUnavailable, err)
}
