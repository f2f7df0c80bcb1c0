package db

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otherjamesbrown/backoffice/pkg/logging"
)

//go:embed migrations/*.sql
var schema embed.FS

// migrationLockID keys the advisory lock that serializes migrators across
// processes.
const migrationLockID int64 = 0x6b6f666669636531

// Schema returns the embedded migrations rooted at the migrations directory.
func Schema() fs.FS {
	sub, err := fs.Sub(schema, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migration is one .sql file. Version is the file name without extension.
type Migration struct {
	Version  string
	Name     string
	Checksum string
}

// MigrationResult holds the result of a migration run.
type MigrationResult struct {
	Applied []string
	Skipped []string
}

// MigrationStatusEntry represents a single migration in a status report.
type MigrationStatusEntry struct {
	Version   string     `json:"version" yaml:"version"`
	Name      string     `json:"name" yaml:"name"`
	AppliedAt *time.Time `json:"applied_at,omitempty" yaml:"applied_at,omitempty"`
}

// MigrationStatus is a migration status report.
type MigrationStatus struct {
	Applied []MigrationStatusEntry `json:"applied" yaml:"applied"`
	Pending []MigrationStatusEntry `json:"pending" yaml:"pending"`
	// Drift lists versions recorded in the database with no file.
	Drift []MigrationStatusEntry `json:"drift" yaml:"drift"`
	// Modified lists applied versions whose file changed since they ran.
	Modified []MigrationStatusEntry `json:"modified" yaml:"modified"`
}

type appliedMigration struct {
	at       time.Time
	checksum string
}

// Migrator applies the embedded schema to a PostgreSQL pool.
type Migrator struct {
	pool   *pgxpool.Pool
	fsys   fs.FS
	logger logging.Logger
}

// NewMigrator returns a Migrator reading .sql files from the root of fsys.
func NewMigrator(pool *pgxpool.Pool, fsys fs.FS, logger logging.Logger) (*Migrator, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Migrator{pool: pool, fsys: fsys, logger: logger}, nil
}

// Pending returns the migrations Up(ctx, target) would apply, in order.
func (m *Migrator) Pending(ctx context.Context, target string) ([]Migration, error) {
	migrations, applied, err := m.load(ctx, target)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(migrations, func(mg Migration) bool {
		_, ok := applied[mg.Version]
		return ok
	}), nil
}

// Up applies pending migrations up to and including target; an empty
// target applies everything. The run stops at the first failure and the
// result lists what was applied before it.
func (m *Migrator) Up(ctx context.Context, target string) (*MigrationResult, error) {
	migrations, applied, err := m.load(ctx, target)
	if err != nil {
		return nil, err
	}

	result := &MigrationResult{}
	for _, mg := range migrations {
		if _, ok := applied[mg.Version]; ok {
			result.Skipped = append(result.Skipped, mg.Version)
			continue
		}
		ran, err := m.apply(ctx, mg)
		if err != nil {
			return result, fmt.Errorf("migration %s failed: %w", mg.Version, err)
		}
		if !ran {
			m.logger.Info("migration applied concurrently, skipping", logging.F("version", mg.Version))
			result.Skipped = append(result.Skipped, mg.Version)
			continue
		}
		m.logger.Info("migration applied", logging.F("version", mg.Version))
		result.Applied = append(result.Applied, mg.Version)
	}
	return result, nil
}

// Status reports which migrations are applied, pending, drifted or modified.
func (m *Migrator) Status(ctx context.Context) (*MigrationStatus, error) {
	migrations, applied, err := m.load(ctx, "")
	if err != nil {
		return nil, err
	}
	return buildStatus(migrations, applied), nil
}

func (m *Migrator) load(ctx context.Context, target string) ([]Migration, map[string]appliedMigration, error) {
	migrations, err := findMigrations(m.fsys)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find migrations: %w", err)
	}
	if migrations, err = upTo(migrations, target); err != nil {
		return nil, nil, err
	}
	if err := m.ensureTable(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to ensure migrations table: %w", err)
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	return migrations, applied, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			checksum TEXT NOT NULL DEFAULT '',
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (m *Migrator) applied(ctx context.Context) (map[string]appliedMigration, error) {
	rows, err := m.pool.Query(ctx, "SELECT version, checksum, applied_at FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]appliedMigration)
	for rows.Next() {
		var version string
		var a appliedMigration
		if err := rows.Scan(&version, &a.checksum, &a.at); err != nil {
			return nil, err
		}
		applied[normalizeVersion(version)] = a
	}
	return applied, rows.Err()
}

// apply runs one migration under the advisory lock. It reports false when
// another process recorded the version while this one waited for the lock.
func (m *Migrator) apply(ctx context.Context, mg Migration) (bool, error) {
	content, err := fs.ReadFile(m.fsys, mg.Name)
	if err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return false, fmt.Errorf("migration file is empty")
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return false, fmt.Errorf("failed to take migration lock: %w", err)
	}
	var done bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", mg.Version).Scan(&done); err != nil {
		return false, fmt.Errorf("failed to recheck version: %w", err)
	}
	if done {
		return false, nil
	}

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return false, fmt.Errorf("failed to execute SQL: %w", err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version, checksum) VALUES ($1, $2)", mg.Version, mg.Checksum); err != nil {
		return false, fmt.Errorf("failed to record migration: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

func buildStatus(migrations []Migration, applied map[string]appliedMigration) *MigrationStatus {
	status := &MigrationStatus{
		Applied:  []MigrationStatusEntry{},
		Pending:  []MigrationStatusEntry{},
		Drift:    []MigrationStatusEntry{},
		Modified: []MigrationStatusEntry{},
	}

	files := make(map[string]bool, len(migrations))
	for _, mg := range migrations {
		files[mg.Version] = true
		a, ok := applied[mg.Version]
		if !ok {
			status.Pending = append(status.Pending, MigrationStatusEntry{Version: mg.Version, Name: mg.Name})
			continue
		}
		entry := MigrationStatusEntry{Version: mg.Version, Name: mg.Name, AppliedAt: &a.at}
		status.Applied = append(status.Applied, entry)
		// Rows written before checksums were tracked carry an empty one.
		if a.checksum != "" && a.checksum != mg.Checksum {
			status.Modified = append(status.Modified, entry)
		}
	}

	for version, a := range applied {
		if files[version] {
			continue
		}
		status.Drift = append(status.Drift, MigrationStatusEntry{Version: version, Name: version + ".sql", AppliedAt: &a.at})
	}
	slices.SortFunc(status.Drift, func(a, b MigrationStatusEntry) int { return strings.Compare(a.Version, b.Version) })

	return status
}

func upTo(migrations []Migration, target string) ([]Migration, error) {
	if target == "" {
		return migrations, nil
	}
	target = normalizeVersion(target)
	i := slices.IndexFunc(migrations, func(mg Migration) bool { return mg.Version == target })
	if i < 0 {
		return nil, fmt.Errorf("target version %s not found in migrations", target)
	}
	return migrations[:i+1], nil
}

// findMigrations lists the .sql files at the root of fsys sorted by name,
// so numeric prefixes such as 001_ fix the order.
func findMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	var migrations []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(path.Ext(name), ".sql") {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		sum := sha256.Sum256(content)
		migrations = append(migrations, Migration{
			Version:  normalizeVersion(name),
			Name:     name,
			Checksum: hex.EncodeToString(sum[:]),
		})
	}

	slices.SortFunc(migrations, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return migrations, nil
}

// normalizeVersion strips a .sql suffix, in any case.
func normalizeVersion(v string) string {
	if len(v) > 4 && strings.EqualFold(v[len(v)-4:], ".sql") {
		return v[:len(v)-4]
	}
	return v
}
