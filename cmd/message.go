package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/backoffice/config"
	"github.com/otherjamesbrown/backoffice/pkg/forms"
)

// Message command flags
var (
	msgSender      int64
	msgReceiver    int64
	msgDescription string
	msgSeen        bool
	msgOutput      string
)

// MessageCommandDeps holds the dependencies for message commands.
type MessageCommandDeps struct {
	Config      *config.Config
	LoadConfig  func() (*config.Config, error)
	OpenBackend func(context.Context, *config.Config) (*Backend, error)
}

// DefaultMessageDeps returns the default dependencies for production use.
func DefaultMessageDeps() *MessageCommandDeps {
	return &MessageCommandDeps{
		LoadConfig: config.LoadConfig,
		OpenBackend: func(ctx context.Context, cfg *config.Config) (*Backend, error) {
			return OpenBackend(ctx, cfg, BackendOptions{Logger: newLogger(cfg, nil)})
		},
	}
}

// ValidationReport is the structured output of 'message validate'.
type ValidationReport struct {
	Form   string            `json:"form" yaml:"form"`
	Valid  bool              `json:"valid" yaml:"valid"`
	Fields map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// NewMessageCommand creates the root message command.
func NewMessageCommand(deps *MessageCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultMessageDeps()
	}

	cmd := &cobra.Command{
		Use:   "message",
		Short: "Private message commands",
		Long: `Private message commands.

A private message references two users through pickers. The receiver must
differ from the sender and both must exist.`,
		Aliases: []string{"msg"},
	}

	cmd.AddCommand(newMessageValidateCommand(deps))
	return cmd
}

func newMessageValidateCommand(deps *MessageCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a private message before saving",
		Long: `Validate a private message the way the edit form does before saving.

Checks:
  - sender and receiver are set and differ
  - description is set and at most 512 characters
  - sender and receiver exist

Exits non-zero when the message is invalid.`,
		Example: `  backoffice message validate --sender 1 --receiver 2 --description "hello"
  backoffice message validate --sender 1 --receiver 1 --description "hi" -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := forms.PrivateMessageInput{
				SenderID:    msgSender,
				ReceiverID:  msgReceiver,
				Description: msgDescription,
				Seen:        msgSeen,
			}
			return runMessageValidate(cmd.Context(), deps, cmd.OutOrStdout(), in)
		},
	}

	cmd.Flags().Int64Var(&msgSender, "sender", 0, "Sender user ID")
	cmd.Flags().Int64Var(&msgReceiver, "receiver", 0, "Receiver user ID")
	cmd.Flags().StringVarP(&msgDescription, "description", "d", "", "Message body")
	cmd.Flags().BoolVar(&msgSeen, "seen", false, "Mark the message as seen")
	cmd.Flags().StringVarP(&msgOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

// runMessageValidate executes the message validate command.
func runMessageValidate(ctx context.Context, deps *MessageCommandDeps, out io.Writer, in forms.PrivateMessageInput) error {
	cfg := deps.Config
	if cfg == nil {
		var err error
		cfg, err = deps.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		deps.Config = cfg
	}
	format, err := resolveFormat(cfg, msgOutput)
	if err != nil {
		return err
	}

	backend, err := deps.OpenBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	report := ValidationReport{Form: forms.FormPrivateMessage, Valid: true}
	verr := forms.New(backend.Registry).PrivateMessage(ctx, in)
	var fieldErrs *forms.ValidationError
	switch {
	case errors.As(verr, &fieldErrs):
		report.Valid = false
		report.Fields = fieldErrs.Fields
	case verr != nil:
		return verr
	}

	switch format {
	case config.OutputFormatJSON:
		err = outputJSON(out, report)
	case config.OutputFormatYAML:
		err = outputYAML(out, report)
	default:
		outputValidationText(out, report)
	}
	if err != nil {
		return err
	}
	if !report.Valid {
		return verr
	}
	return nil
}

func outputValidationText(out io.Writer, report ValidationReport) {
	if report.Valid {
		fmt.Fprintln(out, "Valid.")
		return
	}
	fmt.Fprintf(out, "Invalid %s:\n", report.Form)
	fields := make([]string, 0, len(report.Fields))
	for f := range report.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(out, "  %-12s %s\n", f, report.Fields[f])
	}
}
