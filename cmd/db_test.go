package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/backoffice/config"
	"github.com/otherjamesbrown/backoffice/pkg/db"
)

// TestDbCommand tests the parent db command structure.
func TestDbCommand(t *testing.T) {
	cmd := NewDbCommand(nil)

	assert.NotNil(t, cmd, "NewDbCommand(nil) should not return nil")
	assert.Equal(t, "db", cmd.Use, "db command Use should be 'db'")
	assert.NotEmpty(t, cmd.Short, "db command should have Short description")
	assert.NotEmpty(t, cmd.Long, "db command should have Long description")
}

// TestDbCommand_HasSubcommands verifies the db command has migrate and status subcommands.
func TestDbCommand_HasSubcommands(t *testing.T) {
	cmd := NewDbCommand(nil)

	subcommands := cmd.Commands()
	require.NotEmpty(t, subcommands, "db command should have subcommands")

	// Look for migrate subcommand
	migrateFound := false
	statusFound := false

	for _, sub := range subcommands {
		switch sub.Use {
		case "migrate":
			migrateFound = true
		case "status":
			statusFound = true
		}
	}

	assert.True(t, migrateFound, "db command should have 'migrate' subcommand")
	assert.True(t, statusFound, "db command should have 'status' subcommand")
}

// TestDbMigrateCommand_Help verifies the migrate subcommand has expected flags.
func TestDbMigrateCommand_Help(t *testing.T) {
	cmd := NewDbCommand(nil)

	migrateCmd, _, err := cmd.Find([]string{"migrate"})
	require.NoError(t, err, "should find migrate subcommand")
	require.NotNil(t, migrateCmd, "migrate subcommand should not be nil")

	assert.Equal(t, "migrate", migrateCmd.Use, "migrate subcommand Use should be 'migrate'")
	assert.NotEmpty(t, migrateCmd.Short, "migrate subcommand should have Short description")
	assert.NotEmpty(t, migrateCmd.Long, "migrate subcommand should have Long description")

	// Check for --dry-run flag
	dryRunFlag := migrateCmd.Flags().Lookup("dry-run")
	assert.NotNil(t, dryRunFlag, "migrate command should have --dry-run flag")
	assert.Equal(t, "bool", dryRunFlag.Value.Type(), "--dry-run should be a boolean flag")

	// Check for --target flag
	targetFlag := migrateCmd.Flags().Lookup("target")
	assert.NotNil(t, targetFlag, "migrate command should have --target flag")
	assert.Equal(t, "string", targetFlag.Value.Type(), "--target should be a string flag")

	yesFlag := migrateCmd.Flags().Lookup("yes")
	assert.NotNil(t, yesFlag, "migrate command should have --yes flag")
}

// TestDbMigrateCommand_FlagDescriptions verifies flag help text is present.
func TestDbMigrateCommand_FlagDescriptions(t *testing.T) {
	cmd := NewDbCommand(nil)

	migrateCmd, _, err := cmd.Find([]string{"migrate"})
	require.NoError(t, err)
	require.NotNil(t, migrateCmd)

	dryRunFlag := migrateCmd.Flags().Lookup("dry-run")
	require.NotNil(t, dryRunFlag)
	assert.NotEmpty(t, dryRunFlag.Usage, "--dry-run flag should have usage description")

	targetFlag := migrateCmd.Flags().Lookup("target")
	require.NotNil(t, targetFlag)
	assert.NotEmpty(t, targetFlag.Usage, "--target flag should have usage description")
}

// TestDbStatusCommand_Help verifies the status subcommand structure.
func TestDbStatusCommand_Help(t *testing.T) {
	cmd := NewDbCommand(nil)

	statusCmd, _, err := cmd.Find([]string{"status"})
	require.NoError(t, err, "should find status subcommand")
	require.NotNil(t, statusCmd, "status subcommand should not be nil")

	assert.Equal(t, "status", statusCmd.Use, "status subcommand Use should be 'status'")
	assert.NotEmpty(t, statusCmd.Short, "status subcommand should have Short description")
	assert.NotEmpty(t, statusCmd.Long, "status subcommand should have Long description")
}

// TestDbStatusCommand_OutputFlag verifies the status command has output format flag.
func TestDbStatusCommand_OutputFlag(t *testing.T) {
	cmd := NewDbCommand(nil)

	statusCmd, _, err := cmd.Find([]string{"status"})
	require.NoError(t, err)
	require.NotNil(t, statusCmd)

	outputFlag := statusCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag, "status command should have --output flag")
	assert.Equal(t, "o", outputFlag.Shorthand)
}

// TestDbMigrateCommand_Examples verifies migrate command has examples in help text.
func TestDbMigrateCommand_Examples(t *testing.T) {
	cmd := NewDbCommand(nil)

	migrateCmd, _, err := cmd.Find([]string{"migrate"})
	require.NoError(t, err)
	require.NotNil(t, migrateCmd)

	assert.NotEmpty(t, migrateCmd.Example, "migrate command should have example usage")
}

// TestDbStatusCommand_Examples verifies status command has examples in help text.
func TestDbStatusCommand_Examples(t *testing.T) {
	cmd := NewDbCommand(nil)

	statusCmd, _, err := cmd.Find([]string{"status"})
	require.NoError(t, err)
	require.NotNil(t, statusCmd)

	assert.NotEmpty(t, statusCmd.Example, "status command should have example usage")
}

// TestConnectToDatabase_RequiresPostgres verifies non-postgres drivers are rejected.
func TestConnectToDatabase_RequiresPostgres(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Driver = config.DriverSQLite

	_, err := connectToDatabase(context.Background(), cfg)
	assert.ErrorContains(t, err, "postgres driver")
}

// TestOutputMigrationStatusText verifies the text rendering of a status report.
func TestOutputMigrationStatusText(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	status := &db.MigrationStatus{
		Applied: []db.MigrationStatusEntry{{Version: "001", Name: "init", AppliedAt: &at}},
		Pending: []db.MigrationStatusEntry{{Version: "002", Name: "indexes"}},
	}

	var out bytes.Buffer
	require.NoError(t, outputMigrationStatus(&out, config.OutputFormatText, status))

	text := out.String()
	assert.Contains(t, text, "Applied Migrations")
	assert.Contains(t, text, "2026-01-02 03:04:05")
	assert.Contains(t, text, "Pending Migrations")
	assert.Contains(t, text, "Summary: 1 applied, 1 pending")
	assert.NotContains(t, text, "drift")
}

// TestOutputMigrationStatusText_Empty verifies the message for an empty report.
func TestOutputMigrationStatusText_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, outputMigrationStatus(&out, config.OutputFormatText, &db.MigrationStatus{}))
	assert.Equal(t, "No migrations found.\n", out.String())
}

// TestOutputMigrationStatus_JSON verifies the JSON shape of a status report.
func TestOutputMigrationStatus_JSON(t *testing.T) {
	status := &db.MigrationStatus{Pending: []db.MigrationStatusEntry{{Version: "001", Name: "init"}}}

	var out bytes.Buffer
	require.NoError(t, outputMigrationStatus(&out, config.OutputFormatJSON, status))
	assert.Contains(t, out.String(), `"version": "001"`)
}

// TestTruncateDbString verifies truncation with an ellipsis.
func TestOutputMigrationStatusText_Modified(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	entry := db.MigrationStatusEntry{Version: "001_init", Name: "001_init.sql", AppliedAt: &at}
	status := &db.MigrationStatus{Applied: []db.MigrationStatusEntry{entry}, Modified: []db.MigrationStatusEntry{entry}}

	var out bytes.Buffer
	require.NoError(t, outputMigrationStatus(&out, config.OutputFormatText, status))
	assert.Contains(t, out.String(), "Modified since applied")
	assert.Contains(t, out.String(), "1 modified")
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		assert.Equal(t, tt.want, confirm(strings.NewReader(tt.input), &out, "ok? "), "input %q", tt.input)
		assert.Equal(t, "ok? ", out.String())
	}
}

func TestPrintVersions(t *testing.T) {
	var out bytes.Buffer
	printVersions(&out, "Applied:", []string{"001_init", "002_indexes"}, "+")
	assert.Equal(t, "Applied:\n  + 001_init\n  + 002_indexes\n", out.String())

	out.Reset()
	printVersions(&out, "Skipped:", nil, "-")
	assert.Empty(t, out.String())
}

func TestTruncateDbString(t *testing.T) {
	assert.Equal(t, "short", truncateDbString("short", 10))
	assert.Equal(t, "abcdefg...", truncateDbString("abcdefghijklmnop", 10))
}
