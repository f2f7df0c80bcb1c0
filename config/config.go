// Package config provides configuration management for the backoffice
// service and command-line tool. It supports loading configuration from
// YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/backoffice/pkg/db"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Default configuration values.
const (
	DefaultDriver       = DriverSQLite
	DefaultSQLitePath   = "~/.backoffice/backoffice.db"
	DefaultHTTPAddr     = ":8080"
	DefaultPickerLimit  = 50
	MaxPickerLimit      = 50
	DefaultTimeout      = 30 * time.Second
	DefaultLabelTTL     = 5 * time.Minute
	DefaultOutputFormat = OutputFormatText
	DefaultLogLevel     = "info"
	DefaultConfigDir    = ".backoffice"
	DefaultConfigFile   = "config.yaml"
)

// DatabaseConfig selects and configures the store behind the picker.
type DatabaseConfig struct {
	// Driver is postgres, sqlite or memory.
	Driver string `yaml:"driver"`

	// URL is a PostgreSQL connection string. When set it overrides the
	// discrete connection fields.
	URL      string `yaml:"url,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Name     string `yaml:"name,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	SSLMode  string `yaml:"sslmode,omitempty"`
	MaxConns int32  `yaml:"max_conns,omitempty"`
	MinConns int32  `yaml:"min_conns,omitempty"`

	StatementTimeout time.Duration `yaml:"statement_timeout,omitempty"`
	ConnectAttempts  int           `yaml:"connect_attempts,omitempty"`

	// Path is the SQLite database file. Supports ~.
	Path string `yaml:"path,omitempty"`

	// Fixtures is a YAML file loaded into the memory store.
	Fixtures string `yaml:"fixtures,omitempty"`
}

// Postgres converts the section into a pool configuration.
func (d DatabaseConfig) Postgres() *db.Config {
	cfg := db.DefaultConfig()
	cfg.URL = d.URL
	if d.Host != "" {
		cfg.Host = d.Host
	}
	if d.Port != 0 {
		cfg.Port = d.Port
	}
	if d.Name != "" {
		cfg.Database = d.Name
	}
	if d.User != "" {
		cfg.User = d.User
	}
	cfg.Password = d.Password
	if d.SSLMode != "" {
		cfg.SSLMode = d.SSLMode
	}
	if d.MaxConns > 0 {
		cfg.MaxConns = d.MaxConns
	}
	if d.MinConns > 0 {
		cfg.MinConns = d.MinConns
	}
	cfg.StatementTimeout = d.StatementTimeout
	if d.ConnectAttempts > 0 {
		cfg.ConnectAttempts = d.ConnectAttempts
	}
	return cfg
}

// RedisConfig configures the optional label cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
	Prefix   string        `yaml:"prefix,omitempty"`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"write_timeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// PickerConfig configures reference pickers.
type PickerConfig struct {
	// Limit is the number of options a search returns, 1..50.
	Limit int `yaml:"limit"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json,omitempty"`
}

// Config holds the backoffice configuration settings.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	HTTP     HTTPConfig     `yaml:"http"`
	Picker   PickerConfig   `yaml:"picker"`
	Log      LogConfig      `yaml:"log"`

	// Timeout bounds a single CLI command.
	Timeout time.Duration `yaml:"timeout"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: DefaultDriver,
			Path:   DefaultSQLitePath,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  DefaultLabelTTL,
		},
		HTTP: HTTPConfig{
			Addr:            DefaultHTTPAddr,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Picker:       PickerConfig{Limit: DefaultPickerLimit},
		Log:          LogConfig{Level: DefaultLogLevel},
		Timeout:      DefaultTimeout,
		OutputFormat: DefaultOutputFormat,
	}
}

// ConfigDir returns the configuration directory path.
// Uses $BACKOFFICE_CONFIG_DIR if set, otherwise ~/.backoffice
func ConfigDir() (string, error) {
	if dir := os.Getenv("BACKOFFICE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.backoffice/config.yaml or $BACKOFFICE_CONFIG_DIR/config.yaml)
// 3. Environment variables (BACKOFFICE_*)
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file. Sections absent from
// the file keep their current values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return fileCfg.apply(cfg)
}

// configFile mirrors Config with durations as strings.
type configFile struct {
	Database *DatabaseConfig `yaml:"database"`
	Redis    *struct {
		Enabled  *bool  `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	HTTP *struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"http"`
	Picker       *PickerConfig `yaml:"picker"`
	Log          *LogConfig    `yaml:"log"`
	Timeout      string        `yaml:"timeout"`
	OutputFormat OutputFormat  `yaml:"output_format"`
	Debug        bool          `yaml:"debug"`
}

func (f *configFile) apply(cfg *Config) error {
	if f.Database != nil {
		mergeDatabase(&cfg.Database, *f.Database)
	}

	if r := f.Redis; r != nil {
		if r.Enabled != nil {
			cfg.Redis.Enabled = *r.Enabled
		}
		if r.Addr != "" {
			cfg.Redis.Addr = r.Addr
		}
		if r.Password != "" {
			cfg.Redis.Password = r.Password
		}
		cfg.Redis.DB = r.DB
		if r.Prefix != "" {
			cfg.Redis.Prefix = r.Prefix
		}
		if err := parseDuration(r.TTL, "redis.ttl", &cfg.Redis.TTL); err != nil {
			return err
		}
	}

	if h := f.HTTP; h != nil {
		if h.Addr != "" {
			cfg.HTTP.Addr = h.Addr
		}
		if err := parseDuration(h.ReadTimeout, "http.read_timeout", &cfg.HTTP.ReadTimeout); err != nil {
			return err
		}
		if err := parseDuration(h.WriteTimeout, "http.write_timeout", &cfg.HTTP.WriteTimeout); err != nil {
			return err
		}
		if err := parseDuration(h.ShutdownTimeout, "http.shutdown_timeout", &cfg.HTTP.ShutdownTimeout); err != nil {
			return err
		}
	}

	if f.Picker != nil {
		cfg.Picker.Limit = f.Picker.Limit
	}
	if f.Log != nil {
		if f.Log.Level != "" {
			cfg.Log.Level = f.Log.Level
		}
		cfg.Log.JSON = f.Log.JSON
	}
	if err := parseDuration(f.Timeout, "timeout", &cfg.Timeout); err != nil {
		return err
	}
	if f.OutputFormat != "" {
		cfg.OutputFormat = f.OutputFormat
	}
	cfg.Debug = f.Debug

	return nil
}

func mergeDatabase(dst *DatabaseConfig, src DatabaseConfig) {
	if src.Driver != "" {
		dst.Driver = src.Driver
	}
	if src.URL != "" {
		dst.URL = src.URL
	}
	if src.Host != "" {
		dst.Host = src.Host
	}
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.User != "" {
		dst.User = src.User
	}
	if src.Password != "" {
		dst.Password = src.Password
	}
	if src.SSLMode != "" {
		dst.SSLMode = src.SSLMode
	}
	if src.MaxConns != 0 {
		dst.MaxConns = src.MaxConns
	}
	if src.MinConns != 0 {
		dst.MinConns = src.MinConns
	}
	if src.Path != "" {
		dst.Path = src.Path
	}
	if src.Fixtures != "" {
		dst.Fixtures = src.Fixtures
	}
}

func parseDuration(s, name string, dst *time.Duration) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = d
	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
// Malformed numbers and durations are ignored.
func loadFromEnv(cfg *Config) {
	envString("BACKOFFICE_DB_DRIVER", &cfg.Database.Driver)
	envString("BACKOFFICE_DATABASE_URL", &cfg.Database.URL)
	envString("BACKOFFICE_DB_HOST", &cfg.Database.Host)
	envInt("BACKOFFICE_DB_PORT", &cfg.Database.Port)
	envString("BACKOFFICE_DB_NAME", &cfg.Database.Name)
	envString("BACKOFFICE_DB_USER", &cfg.Database.User)
	envString("BACKOFFICE_DB_PASSWORD", &cfg.Database.Password)
	envString("BACKOFFICE_DB_SSLMODE", &cfg.Database.SSLMode)
	if v := os.Getenv("BACKOFFICE_DB_MAX_CONNS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			cfg.Database.MaxConns = int32(n)
		}
	}
	envString("BACKOFFICE_SQLITE_PATH", &cfg.Database.Path)
	envString("BACKOFFICE_FIXTURES", &cfg.Database.Fixtures)

	envBool("BACKOFFICE_REDIS_ENABLED", &cfg.Redis.Enabled)
	envString("BACKOFFICE_REDIS_ADDR", &cfg.Redis.Addr)
	envString("BACKOFFICE_REDIS_PASSWORD", &cfg.Redis.Password)
	envInt("BACKOFFICE_REDIS_DB", &cfg.Redis.DB)
	envDuration("BACKOFFICE_REDIS_TTL", &cfg.Redis.TTL)

	envString("BACKOFFICE_HTTP_ADDR", &cfg.HTTP.Addr)
	envInt("BACKOFFICE_PICKER_LIMIT", &cfg.Picker.Limit)

	envString("BACKOFFICE_LOG_LEVEL", &cfg.Log.Level)
	envBool("BACKOFFICE_LOG_JSON", &cfg.Log.JSON)

	envDuration("BACKOFFICE_TIMEOUT", &cfg.Timeout)
	if v := os.Getenv("BACKOFFICE_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}
	if v := os.Getenv("BACKOFFICE_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	switch os.Getenv(key) {
	case "true", "1":
		*dst = true
	case "false", "0":
		*dst = false
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("invalid database.driver: %q (must be postgres, sqlite, or memory)", c.Database.Driver)
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		return fmt.Errorf("database.path is required for the sqlite driver")
	}

	if c.Picker.Limit < 1 || c.Picker.Limit > MaxPickerLimit {
		return fmt.Errorf("picker.limit must be between 1 and %d, got %d", MaxPickerLimit, c.Picker.Limit)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}

	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *Config) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Durations are written in time.ParseDuration form.
	out := map[string]any{
		"database": cfg.Database,
		"redis": map[string]any{
			"enabled":  cfg.Redis.Enabled,
			"addr":     cfg.Redis.Addr,
			"password": cfg.Redis.Password,
			"db":       cfg.Redis.DB,
			"ttl":      cfg.Redis.TTL.String(),
			"prefix":   cfg.Redis.Prefix,
		},
		"http": map[string]any{
			"addr":             cfg.HTTP.Addr,
			"read_timeout":     cfg.HTTP.ReadTimeout.String(),
			"write_timeout":    cfg.HTTP.WriteTimeout.String(),
			"shutdown_timeout": cfg.HTTP.ShutdownTimeout.String(),
		},
		"picker":        cfg.Picker,
		"log":           cfg.Log,
		"timeout":       cfg.Timeout.String(),
		"output_format": cfg.OutputFormat,
		"debug":         cfg.Debug,
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
