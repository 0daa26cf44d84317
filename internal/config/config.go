// Package config loads service configuration from an optional YAML file,
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	RPC        RPCConfig        `mapstructure:"rpc"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Exclusions ExclusionsConfig `mapstructure:"exclusions"`
	Price      PriceConfig      `mapstructure:"price"`
	Log        LogConfig        `mapstructure:"log"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"addr":             "server.addr",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"price-source":     "price.source",
	"min-accounts":     "analysis.min_accounts",
	"max-sol-balance":  "analysis.max_sol_balance",
	"require-activity": "analysis.require_activity",
	"postgres-dsn":     "exclusions.postgres_dsn",
}

// legacyRPCEnv lists the single-URL variables read in addition to the list keys.
var legacyRPCEnv = map[string][]string{
	"primary":  {"RPC_URL", "RPC_URL2", "RPC_URL3"},
	"activity": {"ACTIVITY_RPC_URL", "ACTIVITY_RPC_URL2", "ACTIVITY_RPC_URL3"},
}

// LoadDotEnv loads a .env file into the process environment if present.
// Variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && len(paths) == 0 && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load builds the configuration. path may be empty; flags may be nil.
// Precedence: flags, environment, file, defaults.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// no default, so AutomaticEnv alone would not surface SERVER_ADDR
	if err := v.BindEnv("server.addr"); err != nil {
		return nil, fmt.Errorf("bind server.addr: %w", err)
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

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyLegacyEnv(v, &cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyLegacyEnv folds RPC_URL*, ACTIVITY_RPC_URL* and PORT into cfg.
func applyLegacyEnv(v *viper.Viper, cfg *Config) {
	for pool, vars := range legacyRPCEnv {
		for _, name := range vars {
			_ = v.BindEnv("legacy."+strings.ToLower(name), name)
			url := strings.TrimSpace(v.GetString("legacy." + strings.ToLower(name)))
			if url == "" {
				continue
			}
			if pool == "primary" {
				cfg.RPC.Primary = append(cfg.RPC.Primary, url)
			} else {
				cfg.RPC.Activity = append(cfg.RPC.Activity, url)
			}
		}
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
		_ = v.BindEnv("legacy.port", "PORT")
		if port := strings.TrimSpace(v.GetString("legacy.port")); port != "" {
			cfg.Server.Addr = ":" + port
		}
	}
}

func (cfg *Config) normalize() {
	cfg.RPC.Primary = splitList(cfg.RPC.Primary)
	cfg.RPC.Activity = splitList(cfg.RPC.Activity)
	cfg.Exclusions.Addresses = splitList(cfg.Exclusions.Addresses)
	cfg.Price.Source = strings.ToLower(strings.TrimSpace(cfg.Price.Source))
}

// splitList trims entries, splits comma separated ones and drops blanks.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (cfg *Config) Validate() error {
	if err := cfg.Server.Validate(); err != nil {
		return err
	}
	if err := cfg.RPC.Validate(); err != nil {
		return err
	}
	if err := cfg.Analysis.Validate(); err != nil {
		return err
	}
	if err := cfg.Price.Validate(); err != nil {
		return err
	}
	return nil
}
