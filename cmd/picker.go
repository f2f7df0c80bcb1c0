package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/backoffice/config"
	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
	"github.com/otherjamesbrown/backoffice/pkg/picker"
)

// MissingLabel is printed in place of a label whose record no longer exists.
const MissingLabel = "(missing)"

// Picker command flags
var (
	pickerOutput string
	pickerLimit  int
)

// PickerCommandDeps holds the dependencies for picker commands.
type PickerCommandDeps struct {
	Config      *config.Config
	LoadConfig  func() (*config.Config, error)
	OpenBackend func(context.Context, *config.Config) (*Backend, error)
}

// DefaultPickerDeps returns the default dependencies for production use.
func DefaultPickerDeps() *PickerCommandDeps {
	return &PickerCommandDeps{
		LoadConfig: config.LoadConfig,
		OpenBackend: func(ctx context.Context, cfg *config.Config) (*Backend, error) {
			return OpenBackend(ctx, cfg, BackendOptions{Logger: newLogger(cfg, nil)})
		},
	}
}

// SearchResult is the structured output of 'picker search'.
type SearchResult struct {
	EntityType picker.EntityType `json:"entity_type" yaml:"entity_type"`
	Query      string            `json:"query" yaml:"query"`
	Options    picker.OptionSet  `json:"options" yaml:"options"`
}

// LabelResult is the structured output of 'picker label'.
type LabelResult struct {
	EntityType picker.EntityType `json:"entity_type" yaml:"entity_type"`
	Key        int64             `json:"key" yaml:"key"`
	Label      string            `json:"label" yaml:"label"`
	Found      bool              `json:"found" yaml:"found"`
}

// NewPickerCommand creates the root picker command with all subcommands.
func NewPickerCommand(deps *PickerCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultPickerDeps()
	}

	cmd := &cobra.Command{
		Use:   "picker",
		Short: "Search and resolve entity references",
		Long: `Search and resolve entity references.

A picker offers at most 50 records of one entity type whose searchable
attributes contain the query, case-insensitively. Users are matched on name,
email and id; posts on title, description and id.

Labels:
  users   "{name} - {email}"
  posts   "{title} - {owner name}"

Examples:
  backoffice picker search users an
  backoffice picker search posts --output json
  backoffice picker label users 42`,
		Aliases: []string{"pick"},
	}

	cmd.PersistentFlags().StringVarP(&pickerOutput, "output", "o", "", "Output format: text, json, yaml")

	cmd.AddCommand(newPickerSearchCommand(deps))
	cmd.AddCommand(newPickerLabelCommand(deps))

	return cmd
}

func newPickerSearchCommand(deps *PickerCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <type> [query]",
		Short: "List options matching a query",
		Long: `List the options a picker offers for a query.

An empty query lists the first records in store order. Wildcard characters
in the query (% and _) are passed through to the store unescaped.`,
		Example: `  backoffice picker search users an
  backoffice picker search posts cat --limit 10`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 2 {
				query = args[1]
			}
			return runPickerSearch(cmd.Context(), deps, cmd.OutOrStdout(), args[0], query)
		},
	}

	cmd.Flags().IntVarP(&pickerLimit, "limit", "l", 0, "Maximum number of options (1-50)")

	return cmd
}

func newPickerLabelCommand(deps *PickerCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "label <type> <key>",
		Short: "Resolve the label of a chosen key",
		Long: `Resolve the label shown for an already chosen key.

If the record no longer exists the label is printed as (missing) and the
command still succeeds, matching what an edit form shows for a stale
reference.`,
		Example: `  backoffice picker label users 42
  backoffice picker label posts 7 --output json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPickerLabel(cmd.Context(), deps, cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func loadPickerConfig(deps *PickerCommandDeps) (*config.Config, config.OutputFormat, error) {
	cfg := deps.Config
	if cfg == nil {
		var err error
		cfg, err = deps.LoadConfig()
		if err != nil {
			return nil, "", fmt.Errorf("loading configuration: %w", err)
		}
		deps.Config = cfg
	}
	format, err := resolveFormat(cfg, pickerOutput)
	if err != nil {
		return nil, "", err
	}
	return cfg, format, nil
}

// runPickerSearch executes the picker search command.
func runPickerSearch(ctx context.Context, deps *PickerCommandDeps, out io.Writer, typeArg, query string) error {
	entity, err := picker.ParseEntityType(typeArg)
	if err != nil {
		return err
	}
	cfg, format, err := loadPickerConfig(deps)
	if err != nil {
		return err
	}
	if pickerLimit != 0 {
		limited := *cfg
		limited.Picker.Limit = pickerLimit
		cfg = &limited
	}

	backend, err := deps.OpenBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	options, err := backend.Registry.Search(ctx, query, entity)
	if err != nil {
		return fmt.Errorf("searching %s: %w", entity, err)
	}

	result := SearchResult{EntityType: entity, Query: query, Options: options}
	switch format {
	case config.OutputFormatJSON:
		return outputJSON(out, result)
	case config.OutputFormatYAML:
		return outputYAML(out, result)
	default:
		return outputOptionsText(out, options)
	}
}

// runPickerLabel executes the picker label command.
func runPickerLabel(ctx context.Context, deps *PickerCommandDeps, out io.Writer, typeArg, keyArg string) error {
	entity, err := picker.ParseEntityType(typeArg)
	if err != nil {
		return err
	}
	key, err := picker.ParseKey(keyArg)
	if err != nil {
		return err
	}
	cfg, format, err := loadPickerConfig(deps)
	if err != nil {
		return err
	}

	backend, err := deps.OpenBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	result := LabelResult{EntityType: entity, Key: key}
	label, err := backend.Registry.ResolveLabel(ctx, entity, key)
	switch {
	case bferrors.IsNotFound(err):
	case err != nil:
		return fmt.Errorf("resolving %s %d: %w", entity, key, err)
	default:
		result.Label = label
		result.Found = true
	}

	switch format {
	case config.OutputFormatJSON:
		return outputJSON(out, result)
	case config.OutputFormatYAML:
		return outputYAML(out, result)
	default:
		if !result.Found {
			fmt.Fprintln(out, MissingLabel)
			return nil
		}
		fmt.Fprintln(out, result.Label)
		return nil
	}
}

// outputOptionsText prints options as an aligned table.
func outputOptionsText(out io.Writer, options picker.OptionSet) error {
	if len(options) == 0 {
		fmt.Fprintln(out, "No matches.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tLABEL")
	for _, o := range options {
		fmt.Fprintf(w, "%d\t%s\n", o.Key, o.Label)
	}
	return w.Flush()
}
