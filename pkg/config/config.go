// Package config loads service and parser settings from flags, environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/efortin/vllm-toolparser/pkg/pythonic"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "TOOLPARSER"

// Config holds the configuration for the parser service
type Config struct {
	Port            string   `mapstructure:"port"`
	Engine          string   `mapstructure:"engine"`
	StartMarker     string   `mapstructure:"start_marker"`
	EndMarker       string   `mapstructure:"end_marker"`
	MaxDepth        int      `mapstructure:"max_depth"`
	PromotionDepth  int      `mapstructure:"promotion_depth"`
	DisableFallback bool     `mapstructure:"disable_fallback"`
	MaxSessions     int      `mapstructure:"max_sessions"`
	TrimThreshold   int      `mapstructure:"trim_threshold"`
	Debug           bool     `mapstructure:"debug"`
	// AllowOrigins enables CORS for the listed origins ("*" for any)
	AllowOrigins    []string `mapstructure:"allow_origins"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Port:           "8080",
		Engine:         string(pythonic.EnginePrimary),
		StartMarker:    pythonic.DefaultStartMarker,
		EndMarker:      pythonic.DefaultEndMarker,
		MaxDepth:       pythonic.DefaultMaxDepth,
		PromotionDepth: 0,
		MaxSessions:    1024,
		TrimThreshold:  pythonic.DefaultTrimThreshold,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", c.Port, err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of range", port)
	}
	if _, err := pythonic.ParseEngineKind(c.Engine); err != nil {
		return fmt.Errorf("invalid engine: %w", err)
	}
	if c.StartMarker == "" || c.EndMarker == "" {
		return errors.New("markers cannot be empty")
	}
	if c.StartMarker == c.EndMarker {
		return errors.New("start and end markers must differ")
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max depth must be positive, got %d", c.MaxDepth)
	}
	if c.PromotionDepth < 0 {
		return fmt.Errorf("promotion depth cannot be negative, got %d", c.PromotionDepth)
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("max sessions must be positive, got %d", c.MaxSessions)
	}
	if c.TrimThreshold < 1 {
		return fmt.Errorf("trim threshold must be positive, got %d", c.TrimThreshold)
	}
	for _, origin := range c.AllowOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("invalid CORS origin %q", origin)
		}
	}
	return nil
}

// ParserOptions converts the configuration into parser options. The engine
// must already have passed Validate.
func (c *Config) ParserOptions() pythonic.Options {
	engine, _ := pythonic.ParseEngineKind(c.Engine)
	return pythonic.Options{
		Engine:          engine,
		Markers:         pythonic.Markers{Start: c.StartMarker, End: c.EndMarker},
		MaxDepth:        c.MaxDepth,
		PromotionDepth:  c.PromotionDepth,
		DisableFallback: c.DisableFallback,
		TrimThreshold:   c.TrimThreshold,
		Debug:           c.Debug,
	}
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"port":             "port",
	"engine":           "engine",
	"start-marker":     "start_marker",
	"end-marker":       "end_marker",
	"max-depth":        "max_depth",
	"promotion-depth":  "promotion_depth",
	"disable-fallback": "disable_fallback",
	"max-sessions":     "max_sessions",
	"trim-threshold":   "trim_threshold",
	"debug":            "debug",
	"allow-origin":     "allow_origins",
}

// Load builds the configuration. Precedence, highest first: flags that were
// set explicitly, TOOLPARSER_* environment variables, the config file at
// path, defaults. An empty path looks for toolparser.{yaml,json} in the
// working directory and tolerates its absence. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("port", def.Port)
	v.SetDefault("engine", def.Engine)
	v.SetDefault("start_marker", def.StartMarker)
	v.SetDefault("end_marker", def.EndMarker)
	v.SetDefault("max_depth", def.MaxDepth)
	v.SetDefault("promotion_depth", def.PromotionDepth)
	v.SetDefault("disable_fallback", def.DisableFallback)
	v.SetDefault("max_sessions", def.MaxSessions)
	v.SetDefault("trim_threshold", def.TrimThreshold)
	v.SetDefault("debug", def.Debug)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// no default, so only an explicit setting enables CORS
	if err := v.BindEnv("allow_origins"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("toolparser")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
