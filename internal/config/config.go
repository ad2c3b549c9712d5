// Package config loads the flat options dict the pipeline is constructed
// from: provider/refiner declaration order, requested
// languages, scoring and selection preferences, and pool sizing. Loading
// goes through viper so the same Options can come from a TOML file,
// environment variables, or both, matching the layered config style the
// teacher's CLI commands use viper for.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Options is the flat dict consumed at pipeline construction.
type Options struct {
	Providers       []string      `mapstructure:"providers" toml:"providers"`
	Refiners        []string      `mapstructure:"refiners" toml:"refiners"`
	Languages       []string      `mapstructure:"languages" toml:"languages"`
	MinScore        int           `mapstructure:"min_score" toml:"min_score"`
	HearingImpaired *bool         `mapstructure:"hearing_impaired" toml:"hearing_impaired,omitempty"`
	ForeignOnly     *bool         `mapstructure:"foreign_only" toml:"foreign_only,omitempty"`
	OnlyOne         bool          `mapstructure:"only_one" toml:"only_one"`
	Age             time.Duration `mapstructure:"age" toml:"age"`
	MaxWorkers      int           `mapstructure:"max_workers" toml:"max_workers"`
	Force           bool          `mapstructure:"force" toml:"force"`
	IgnoreSubtitles []string      `mapstructure:"ignore_subtitles" toml:"ignore_subtitles,omitempty"`

	Provider map[string]map[string]any `mapstructure:"provider" toml:"provider,omitempty"`
	Refiner  map[string]map[string]any `mapstructure:"refiner" toml:"refiner,omitempty"`

	Cache  CacheOptions  `mapstructure:"cache" toml:"cache"`
	Logger LoggerOptions `mapstructure:"logger" toml:"logger"`
	Saver  SaverOptions  `mapstructure:"saver" toml:"saver"`
}

// SaverOptions configures the subtitle-file persister the pipeline calls
// after a successful download.
type SaverOptions struct {
	Protocol string         `mapstructure:"protocol" toml:"protocol"`
	Settings map[string]any `mapstructure:"settings" toml:"settings,omitempty"`
}

// CacheOptions configures the process-wide token/show-id cache.
type CacheOptions struct {
	Backend  string `mapstructure:"backend" toml:"backend"` // "memory" or "redis"
	RedisDSN string `mapstructure:"redis_dsn" toml:"redis_dsn,omitempty"`
}

// LoggerOptions configures the zap logger threaded through every component.
type LoggerOptions struct {
	Level string `mapstructure:"level" toml:"level"`
	JSON  bool   `mapstructure:"json" toml:"json"`
}

// Default returns the option values the pipeline falls back to when a
// section or key is absent from the config file.
func Default() *Options {
	return &Options{
		Providers:  []string{"opensubtitles", "napiprojekt"},
		Refiners:   []string{"metadata", "omdb"},
		Languages:  []string{"en"},
		MinScore:   0,
		OnlyOne:    false,
		Age:        0,
		MaxWorkers: 8,
		Cache: CacheOptions{
			Backend: "memory",
		},
		Logger: LoggerOptions{
			Level: "info",
		},
		Saver: SaverOptions{
			Protocol: "local",
		},
	}
}

// Load reads Options from path (TOML), falling back to Default for any
// section left unset, and validates the merged result.
func Load(path string) (*Options, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	def := Default()
	v.SetDefault("providers", def.Providers)
	v.SetDefault("refiners", def.Refiners)
	v.SetDefault("languages", def.Languages)
	v.SetDefault("min_score", def.MinScore)
	v.SetDefault("only_one", def.OnlyOne)
	v.SetDefault("max_workers", def.MaxWorkers)
	v.SetDefault("cache.backend", def.Cache.Backend)
	v.SetDefault("logger.level", def.Logger.Level)
	v.SetDefault("saver.protocol", def.Saver.Protocol)

	v.SetEnvPrefix("SUBTITLES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &opts, nil
}

// Validate applies the bounds each option must satisfy and fills in
// max_workers (when below 1), cache.backend, logger.level, and
// saver.protocol from Default when they are unset. Other fields are
// left as they are.
func (o *Options) Validate() error {
	if o.MinScore < 0 || o.MinScore > 100 {
		return fmt.Errorf("min_score must be between 0 and 100, got %d", o.MinScore)
	}
	if o.MaxWorkers < 1 {
		o.MaxWorkers = Default().MaxWorkers
	}
	if len(o.Providers) == 0 {
		return fmt.Errorf("providers must declare at least one provider")
	}
	if o.Cache.Backend == "" {
		o.Cache.Backend = "memory"
	}
	if o.Cache.Backend != "memory" && o.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be \"memory\" or \"redis\", got %q", o.Cache.Backend)
	}
	if o.Cache.Backend == "redis" && o.Cache.RedisDSN == "" {
		return fmt.Errorf("cache.redis_dsn is required when cache.backend is \"redis\"")
	}
	if o.Logger.Level == "" {
		o.Logger.Level = "info"
	}
	if o.Saver.Protocol == "" {
		o.Saver.Protocol = "local"
	}
	return nil
}

// Example renders the default Options as TOML, for operators scaffolding a
// new config file.
func Example() (string, error) {
	b, err := toml.Marshal(Default())
	if err != nil {
		return "", err
	}
	return string(b), nil
}
