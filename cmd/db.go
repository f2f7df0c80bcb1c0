package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/backoffice/config"
	"github.com/otherjamesbrown/backoffice/pkg/db"
	"github.com/otherjamesbrown/backoffice/pkg/logging"
)

// Database command flags
var (
	dbDryRun bool
	dbYes    bool
	dbTarget string
	dbOutput string
)

// DbCommandDeps holds the dependencies for database commands.
type DbCommandDeps struct {
	Config      *config.Config
	LoadConfig  func() (*config.Config, error)
	ConnectToDB func(context.Context, *config.Config) (*pgxpool.Pool, error)
}

// DefaultDbDeps returns the default dependencies for production use.
func DefaultDbDeps() *DbCommandDeps {
	return &DbCommandDeps{
		LoadConfig:  config.LoadConfig,
		ConnectToDB: connectToDatabase,
	}
}

// connectToDatabase opens a pool from the database section of cfg.
func connectToDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.Database.Driver != config.DriverPostgres {
		return nil, fmt.Errorf("db commands need the postgres driver (configured: %s); sqlite applies its schema on open", cfg.Database.Driver)
	}
	return db.Connect(ctx, cfg.Database.Postgres())
}

// NewDbCommand creates the root db command with all subcommands.
func NewDbCommand(deps *DbCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDbDeps()
	}

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the PostgreSQL store.

Migrations are embedded in the binary and applied in version order. Applied
versions are tracked in the schema_migrations table.

Examples:
  # Show migration status
  backoffice db status

  # Apply all pending migrations
  backoffice db migrate --yes

  # Preview migrations without applying
  backoffice db migrate --dry-run`,
		Aliases: []string{"database", "migrations"},
	}

	cmd.AddCommand(newDbMigrateCommand(deps))
	cmd.AddCommand(newDbStatusCommand(deps))

	return cmd
}

// newDbMigrateCommand creates the 'db migrate' subcommand.
func newDbMigrateCommand(deps *DbCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending database migrations.

Each migration runs in its own transaction under a PostgreSQL advisory lock,
so concurrent runs apply every file once. If one fails it is rolled back and
no further migrations are attempted.`,
		Example: `  backoffice db migrate
  backoffice db migrate --dry-run
  backoffice db migrate --target 001 --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbMigrate(cmd.Context(), deps, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&dbDryRun, "dry-run", false, "Show what would be applied without executing")
	cmd.Flags().BoolVarP(&dbYes, "yes", "y", false, "Apply without asking for confirmation")
	cmd.Flags().StringVarP(&dbTarget, "target", "t", "", "Target version to migrate to (e.g., 001)")

	return cmd
}

// newDbStatusCommand creates the 'db status' subcommand.
func newDbStatusCommand(deps *DbCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database migration status",
		Long: `Show the current state of database migrations.

Migrations are grouped as:
  - Applied: recorded in schema_migrations and embedded
  - Pending: embedded but not applied yet
  - Drift: recorded but no longer embedded
  - Modified: applied, but the embedded file's checksum has changed`,
		Example: `  backoffice db status
  backoffice db status --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbStatus(cmd.Context(), deps, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&dbOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func loadDbConfig(deps *DbCommandDeps) (*config.Config, error) {
	if deps.Config != nil {
		return deps.Config, nil
	}
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg
	return cfg, nil
}

// openMigrator loads config, connects and returns a migrator plus a cleanup.
func openMigrator(ctx context.Context, deps *DbCommandDeps) (*config.Config, *db.Migrator, func(), error) {
	cfg, err := loadDbConfig(deps)
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	m, err := db.NewMigrator(pool, db.Schema(), newLogger(cfg, nil).With(logging.F("component", "migrator")))
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	return cfg, m, pool.Close, nil
}

// runDbMigrate executes the db migrate command.
func runDbMigrate(ctx context.Context, deps *DbCommandDeps, in io.Reader, out io.Writer) error {
	_, m, closeDB, err := openMigrator(ctx, deps)
	if err != nil {
		return err
	}
	defer closeDB()

	pending, err := m.Pending(ctx, dbTarget)
	if err != nil {
		return fmt.Errorf("planning migrations: %w", err)
	}
	if len(pending) == 0 {
		fmt.Fprintln(out, "No pending migrations.")
		return nil
	}

	fmt.Fprintf(out, "Pending migrations (%d):\n", len(pending))
	for _, mg := range pending {
		fmt.Fprintf(out, "  %s - %s\n", mg.Version, mg.Name)
	}
	fmt.Fprintln(out)

	if dbDryRun {
		fmt.Fprintln(out, "Dry run mode: no migrations applied.")
		return nil
	}
	if !dbYes && !confirm(in, out, "Apply these migrations? (y/N): ") {
		fmt.Fprintln(out, "Migration cancelled.")
		return nil
	}

	result, err := m.Up(ctx, dbTarget)
	if err != nil {
		fmt.Fprintf(out, "\n\033[31mMigration failed:\033[0m %v\n", err)
		if result != nil {
			printVersions(out, "\nApplied before failure:", result.Applied, "\033[32m✓\033[0m")
		}
		return err
	}

	if len(result.Applied) > 0 {
		printVersions(out, fmt.Sprintf("\033[32mApplied %d migration(s):\033[0m", len(result.Applied)), result.Applied, "\033[32m✓\033[0m")
	}
	if len(result.Skipped) > 0 {
		printVersions(out, fmt.Sprintf("\nSkipped %d migration(s), already applied:", len(result.Skipped)), result.Skipped, "-")
	}
	fmt.Fprintln(out, "\n\033[32mMigrations completed successfully.\033[0m")
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	var response string
	fmt.Fscanln(in, &response)
	return strings.EqualFold(strings.TrimSpace(response), "y")
}

func printVersions(out io.Writer, title string, versions []string, mark string) {
	if len(versions) == 0 {
		return
	}
	fmt.Fprintln(out, title)
	for _, v := range versions {
		fmt.Fprintf(out, "  %s %s\n", mark, v)
	}
}

// runDbStatus executes the db status command.
func runDbStatus(ctx context.Context, deps *DbCommandDeps, out io.Writer) error {
	cfg, m, closeDB, err := openMigrator(ctx, deps)
	if err != nil {
		return err
	}
	defer closeDB()

	format, err := resolveFormat(cfg, dbOutput)
	if err != nil {
		return err
	}
	status, err := m.Status(ctx)
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}
	return outputMigrationStatus(out, format, status)
}

// outputMigrationStatus formats and outputs migration status.
func outputMigrationStatus(out io.Writer, format config.OutputFormat, status *db.MigrationStatus) error {
	switch format {
	case config.OutputFormatJSON:
		return outputJSON(out, status)
	case config.OutputFormatYAML:
		return outputYAML(out, status)
	default:
		outputMigrationStatusText(out, status)
		return nil
	}
}

// outputMigrationStatusText formats migration status for terminal display.
func outputMigrationStatusText(out io.Writer, status *db.MigrationStatus) {
	printEntries := func(title string, entries []db.MigrationStatusEntry, withTime bool) {
		if len(entries) == 0 {
			return
		}
		fmt.Fprintf(out, "%s (%d):\n", title, len(entries))
		for _, m := range entries {
			appliedAt := ""
			if withTime {
				appliedAt = "-"
				if m.AppliedAt != nil {
					appliedAt = m.AppliedAt.Format("2006-01-02 15:04:05")
				}
			}
			fmt.Fprintf(out, "  %-10s %-33s %s\n",
				truncateDbString(m.Version, 10),
				truncateDbString(m.Name, 33),
				appliedAt)
		}
		fmt.Fprintln(out)
	}

	printEntries("\033[32mApplied Migrations\033[0m", status.Applied, true)
	printEntries("\033[33mPending Migrations\033[0m", status.Pending, false)
	printEntries("\033[31mDrift - applied but not embedded\033[0m", status.Drift, true)
	printEntries("\033[31mModified since applied\033[0m", status.Modified, true)

	if len(status.Applied) == 0 && len(status.Pending) == 0 && len(status.Drift) == 0 {
		fmt.Fprintln(out, "No migrations found.")
		return
	}

	fmt.Fprintf(out, "Summary: %d applied, %d pending", len(status.Applied), len(status.Pending))
	if len(status.Drift) > 0 {
		fmt.Fprintf(out, ", \033[31m%d drift\033[0m", len(status.Drift))
	}
	if len(status.Modified) > 0 {
		fmt.Fprintf(out, ", \033[31m%d modified\033[0m", len(status.Modified))
	}
	fmt.Fprintln(out)
}

// truncateDbString truncates a string to maxLen, adding "..." if truncated.
func truncateDbString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
