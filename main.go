// Package main provides the backoffice CLI entry point.
// backoffice serves and exercises the entity reference pickers of the
// classifieds admin panel.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/backoffice/cmd"
	"github.com/otherjamesbrown/backoffice/config"
	"github.com/otherjamesbrown/backoffice/pkg/buildinfo"
)

// Global flags and state.
var (
	driver  string
	timeout time.Duration
	debug   bool

	// cfg holds the loaded configuration.
	cfg *config.Config

	// cancelTimeout releases the per-command deadline.
	cancelTimeout context.CancelFunc
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "backoffice",
	Short: "Backoffice - entity reference pickers for the classifieds admin panel",
	Long: `backoffice searches and resolves the entity references used by the
classifieds admin panel forms (comment to user, comment to post, post to user,
message to sender and receiver).

COMMON WORKFLOWS:
  Find a user:        backoffice picker search users ana
  Show a chosen key:  backoffice picker label posts 42
  Check a message:    backoffice message validate --sender 1 --receiver 2 -d "hi"
  Run the API:        backoffice serve
  Migrate Postgres:   backoffice db status  ->  backoffice db migrate

CONFIGURATION:
  ~/.backoffice/config.yaml (or $BACKOFFICE_CONFIG_DIR/config.yaml), then
  BACKOFFICE_* environment variables, then flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for commands that don't need it.
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		// config subcommands must work with a broken config file.
		if cmd.Parent() != nil && cmd.Parent().Name() == "config" {
			return nil
		}

		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}

		// Bound one-shot commands; serve runs until interrupted.
		if cmd.Name() != "serve" {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
			cancelTimeout = cancel
			cmd.SetContext(ctx)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cancelTimeout != nil {
			cancelTimeout()
			cancelTimeout = nil
		}
		return nil
	},
}

// loadConfig loads configuration once and applies flag overrides.
func loadConfig() (*config.Config, error) {
	if cfg != nil {
		return cfg, nil
	}

	loaded, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	// Override with command-line flags.
	if driver != "" {
		loaded.Database.Driver = driver
	}
	if timeout != 0 {
		loaded.Timeout = timeout
	}
	if debug {
		loaded.Debug = true
		loaded.Log.Level = "debug"
	}
	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return loaded, nil
}

// Version command flags.
var versionOutputJSON bool

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of backoffice.

Examples:
  backoffice version
  backoffice version --output-json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Get("backoffice")

		out := cmd.OutOrStdout()
		if versionOutputJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		fmt.Fprintf(out, "backoffice version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify the backoffice configuration settings.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration (file, environment and flags) as YAML. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := loadConfig()
		if err != nil {
			return err
		}

		masked := *current
		if masked.Database.Password != "" {
			masked.Database.Password = "********"
		}
		if masked.Database.URL != "" {
			masked.Database.URL = "(set)"
		}
		if masked.Redis.Password != "" {
			masked.Redis.Password = "********"
		}

		configPath, _ := config.ConfigPath()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n", configPath)
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(masked)
	},
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}

		out := cmd.OutOrStdout()
		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
			fmt.Fprintln(out, "Use 'backoffice config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfig(defaultCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		fmt.Fprintln(out, "\nDefault settings:")
		fmt.Fprintf(out, "  Driver:         %s\n", defaultCfg.Database.Driver)
		fmt.Fprintf(out, "  SQLite path:    %s\n", defaultCfg.Database.Path)
		fmt.Fprintf(out, "  HTTP address:   %s\n", defaultCfg.HTTP.Addr)
		fmt.Fprintf(out, "  Picker limit:   %d\n", defaultCfg.Picker.Limit)
		return nil
	},
}

// configSetCmd sets a configuration value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Available keys:
  database.driver   - Store driver (postgres, sqlite, memory)
  database.url      - PostgreSQL connection string
  database.path     - SQLite database file (supports ~)
  database.fixtures - YAML fixtures for the memory driver
  picker.limit      - Options per search (1-50)
  redis.enabled     - Enable the label cache (true/false)
  redis.addr        - Redis address (host:port)
  http.addr         - Listen address for serve
  log.level         - debug, info, warn, error
  timeout           - Command timeout (e.g., 30s, 1m)
  output_format     - Default output format (text, json, yaml)
  debug             - Enable debug mode (true/false)

Examples:
  backoffice config set database.driver postgres
  backoffice config set picker.limit 20
  backoffice config set redis.enabled true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		currentCfg, err := config.LoadConfig()
		if err != nil {
			// If config doesn't exist or is invalid, start with defaults.
			currentCfg = config.DefaultConfig()
		}

		if err := setConfigValue(currentCfg, key, value); err != nil {
			return err
		}
		if err := currentCfg.Validate(); err != nil {
			return err
		}

		if err := config.SaveConfig(currentCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

// setConfigValue assigns one dotted key on c.
func setConfigValue(c *config.Config, key, value string) error {
	switch key {
	case "database.driver":
		c.Database.Driver = value
	case "database.url":
		c.Database.URL = value
	case "database.path":
		c.Database.Path = value
	case "database.fixtures":
		c.Database.Fixtures = value
	case "picker.limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid picker.limit value: %w", err)
		}
		c.Picker.Limit = n
	case "redis.enabled":
		b, err := parseBool(key, value)
		if err != nil {
			return err
		}
		c.Redis.Enabled = b
	case "redis.addr":
		c.Redis.Addr = value
	case "http.addr":
		c.HTTP.Addr = value
	case "log.level":
		c.Log.Level = value
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		c.Timeout = d
	case "output_format":
		format := config.OutputFormat(value)
		if !format.IsValid() {
			return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", value)
		}
		c.OutputFormat = format
	case "debug":
		b, err := parseBool(key, value)
		if err != nil {
			return err
		}
		c.Debug = b
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func parseBool(key, value string) (bool, error) {
	switch value {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s value: %s (must be true or false)", key, value)
	}
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for backoffice.

Bash:
  $ source <(backoffice completion bash)

Zsh:
  $ backoffice completion zsh > "${fpath[1]}/_backoffice"

Fish:
  $ backoffice completion fish | source

PowerShell:
  PS> backoffice completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "store driver: postgres, sqlite, memory")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "command timeout (e.g., 30s, 1m)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	versionCmd.Flags().BoolVar(&versionOutputJSON, "output-json", false, "Output as JSON")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)

	pickerDeps := cmd.DefaultPickerDeps()
	pickerDeps.LoadConfig = loadConfig
	messageDeps := cmd.DefaultMessageDeps()
	messageDeps.LoadConfig = loadConfig
	serveDeps := cmd.DefaultServeDeps()
	serveDeps.LoadConfig = loadConfig
	dbDeps := cmd.DefaultDbDeps()
	dbDeps.LoadConfig = loadConfig

	rootCmd.AddCommand(
		versionCmd,
		configCmd,
		completionCmd,
		cmd.NewPickerCommand(pickerDeps),
		cmd.NewMessageCommand(messageDeps),
		cmd.NewServeCommand(serveDeps),
		cmd.NewDbCommand(dbDeps),
	)
}

func main() {
	// Set up signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
