// Package config provides configuration management for fieldexport.
//
// Configuration is loaded from four sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (FIELDEXPORT_ prefix)
//  3. Config file (.fieldexport.yaml)
//  4. Built-in defaults
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Supported CSV line endings.
const (
	LineEndingCRLF = "crlf"
	LineEndingLF   = "lf"
)

// Extent is the reference rectangle a layer must fit into, in degrees.
type Extent struct {
	MinLon float64 `mapstructure:"min-lon" json:"minLon"`
	MinLat float64 `mapstructure:"min-lat" json:"minLat"`
	MaxLon float64 `mapstructure:"max-lon" json:"maxLon"`
	MaxLat float64 `mapstructure:"max-lat" json:"maxLat"`
}

// NetherlandsExtent approximates the bounds of The Netherlands.
var NetherlandsExtent = Extent{MinLon: 2, MinLat: 50, MaxLon: 8, MaxLat: 55}

// Config represents the global configuration for fieldexport.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" json:"logLevel"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" json:"logFormat"`

	// NoColor disables colored output.
	NoColor bool `mapstructure:"no-color" json:"noColor"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" json:"quiet"`

	// Extent is the reference rectangle the layer extent must lie in.
	Extent Extent `mapstructure:"extent" json:"extent"`

	// AllowDuplicatePlotIDs exempts features sharing a Plot-ID from the
	// overlap check instead of rejecting them.
	AllowDuplicatePlotIDs bool `mapstructure:"allow-duplicate-plot-ids" json:"allowDuplicatePlotIds"`

	// LineEnding selects the CSV row terminator.
	// Valid values: crlf, lf.
	LineEnding string `mapstructure:"line-ending" json:"lineEnding"`

	// ConfigFile is the resolved path to the config file used.
	// Set after Load() — not read from config itself.
	ConfigFile string `mapstructure:"-" json:"-"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:   LogLevelInfo,
		LogFormat:  LogFormatText,
		Extent:     NetherlandsExtent,
		LineEnding: LineEndingCRLF,
	}
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat)
	}

	switch c.LineEnding {
	case LineEndingCRLF, LineEndingLF:
		// valid
	default:
		return fmt.Errorf("invalid line ending %q: must be one of crlf, lf", c.LineEnding)
	}

	return c.Extent.Validate()
}

// Validate checks that the extent is a proper rectangle.
func (e Extent) Validate() error {
	if e.MinLon >= e.MaxLon || e.MinLat >= e.MaxLat {
		return fmt.Errorf("invalid extent %g,%g : %g,%g: minimum must be below maximum",
			e.MinLon, e.MinLat, e.MaxLon, e.MaxLat)
	}

	return nil
}

// EffectiveLogLevel returns the log level to use. When Quiet is true the log
// level is overridden to "error" regardless of the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// Terminator returns the byte sequence that ends a CSV row.
func (c *Config) Terminator() string {
	if c.LineEnding == LineEndingLF {
		return "\n"
	}

	return "\r\n"
}

// Load initialises configuration from flags, environment variables, and an
// optional config file. A fresh viper instance is used on every call so that
// Load is safe for concurrent tests.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("no-color", false)
	v.SetDefault("quiet", false)
	v.SetDefault("extent.min-lon", d.Extent.MinLon)
	v.SetDefault("extent.min-lat", d.Extent.MinLat)
	v.SetDefault("extent.max-lon", d.Extent.MaxLon)
	v.SetDefault("extent.max-lat", d.Extent.MaxLat)
	v.SetDefault("allow-duplicate-plot-ids", false)
	v.SetDefault("line-ending", d.LineEnding)
}

// configureEnv sets up environment variable support. Nested keys map to
// underscores, e.g. extent.min-lon -> FIELDEXPORT_EXTENT_MIN_LON.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("FIELDEXPORT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
}

// configureFile sets up the config file source.
func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}

		return nil
	}

	v.SetConfigName(".fieldexport")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "fieldexport"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}

		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// bindFlags walks from cmd up to the root and binds all PersistentFlags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}
