package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/graphql-lsp/internal/definition"
	"github.com/conduit-lang/graphql-lsp/internal/session"
)

// EnvPrefix prefixes environment variables that override configuration keys.
// GRAPHQL_LSP_LOG_LEVEL overrides log.level.
const EnvPrefix = "GRAPHQL_LSP"

// Files are the configuration file names looked up in a project root, in
// order of preference.
var Files = []string{
	".graphqlrc.yml",
	".graphqlrc.yaml",
	".graphqlrc.json",
	".graphqlrc",
	".graphqlconfig",
}

// Config represents a GraphQL project configuration
type Config struct {
	// Schema lists the schema files or globs, relative to the root
	Schema []string `mapstructure:"schema"`

	// Extensions are the document extensions scanned for fragments
	Extensions []string `mapstructure:"extensions"`

	// Excludes are directory names skipped when scanning
	Excludes []string `mapstructure:"excludes"`

	Scan       ScanConfig       `mapstructure:"scan"`
	Watch      bool             `mapstructure:"watch"`
	Debounce   time.Duration    `mapstructure:"watch_debounce"`
	Validation ValidationConfig `mapstructure:"validation"`
	Log        LogConfig        `mapstructure:"log"`

	// File is the configuration file that was read, empty when defaults apply
	File string `mapstructure:"-"`
}

// ScanConfig represents directory scan configuration
type ScanConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// ValidationConfig represents validation configuration
type ValidationConfig struct {
	// IgnoredRules replaces the default list of dropped validator rules
	IgnoredRules []string `mapstructure:"ignored_rules"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads the configuration found in root. A root without a configuration
// file yields the defaults.
func Load(root string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("schema", []string{})
	v.SetDefault("extensions", definition.DefaultExtensions)
	v.SetDefault("excludes", definition.DefaultExcludes)
	v.SetDefault("scan.concurrency", definition.DefaultConcurrency)
	v.SetDefault("watch", true)
	v.SetDefault("watch_debounce", "100ms")
	v.SetDefault("log.level", "info")

	// Enable environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := findFile(root)
	if file != "" {
		v.SetConfigFile(file)
		switch filepath.Base(file) {
		case ".graphqlrc":
			// JSON is valid YAML, so either form reads.
			v.SetConfigType("yaml")
		case ".graphqlconfig":
			v.SetConfigType("json")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.File = file

	// The legacy format names a single schema file.
	if len(config.Schema) == 0 && v.IsSet("schemaPath") {
		config.Schema = []string{v.GetString("schemaPath")}
	}
	if !v.IsSet("validation.ignored_rules") {
		config.Validation.IgnoredRules = nil
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadProject loads the configuration in root as a session project.
func LoadProject(root string) (session.Project, error) {
	cfg, err := Load(root)
	if err != nil {
		return session.Project{}, err
	}
	return cfg.Project(), nil
}

// Project converts the configuration into the settings a session uses.
func (c *Config) Project() session.Project {
	return session.Project{
		Schema:          c.Schema,
		Extensions:      c.Extensions,
		Excludes:        c.Excludes,
		ScanConcurrency: c.Scan.Concurrency,
		IgnoredRules:    c.Validation.IgnoredRules,
		Watch:           c.Watch,
		WatchDebounce:   c.Debounce,
	}
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// FindRoot walks up from dir to the first directory holding a configuration
// file.
func FindRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		if findFile(dir) != "" {
			return dir, nil
		}

		// Move up one directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return "", fmt.Errorf("not in a GraphQL project (no %s found)", Files[0])
		}
		dir = parent
	}
}

func findFile(root string) string {
	if root == "" {
		return ""
	}
	for _, name := range Files {
		path := filepath.Join(root, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Scan.Concurrency < 0 {
		return fmt.Errorf("scan.concurrency must not be negative, got: %d", cfg.Scan.Concurrency)
	}
	if cfg.Debounce < 0 {
		return fmt.Errorf("watch_debounce must not be negative, got: %s", cfg.Debounce)
	}
	for _, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extensions must start with '.', got: %s", ext)
		}
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return fmt.Errorf("invalid log.level %q: %w", cfg.Log.Level, err)
	}
	return nil
}
