package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// DefaultAddr is the listen address used when neither server.addr nor PORT is set.
const DefaultAddr = ":5000"

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
}

func (cfg *ServerConfig) Validate() error {
	if cfg.Addr == "" {
		return errors.New("server.addr is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}
	return nil
}

type BackoffConfig struct {
	Base       time.Duration `mapstructure:"base"`
	Multiplier float64       `mapstructure:"multiplier"`
	Cap        time.Duration `mapstructure:"cap"`
	Jitter     time.Duration `mapstructure:"jitter"`
}

func (cfg *BackoffConfig) validate(key string) error {
	if cfg.Base <= 0 {
		return fmt.Errorf("%s.base must be positive", key)
	}
	if cfg.Multiplier < 1 {
		return fmt.Errorf("%s.multiplier must be at least 1", key)
	}
	if cfg.Cap < cfg.Base {
		return fmt.Errorf("%s.cap (%s) must not be below %s.base (%s)", key, cfg.Cap, key, cfg.Base)
	}
	if cfg.Jitter < 0 {
		return fmt.Errorf("%s.jitter must not be negative", key)
	}
	return nil
}

type RPCConfig struct {
	Primary        []string      `mapstructure:"primary"`
	Activity       []string      `mapstructure:"activity"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Attempts       uint          `mapstructure:"attempts"`
	QueryAttempts  uint          `mapstructure:"query_attempts"`
	MinInterval    time.Duration `mapstructure:"min_interval"`
	HealthCooldown time.Duration `mapstructure:"health_cooldown"`
	Backoff        BackoffConfig `mapstructure:"backoff"`
	// QueryBackoff spaces the outer attempts of each typed query.
	QueryBackoff   BackoffConfig `mapstructure:"query_backoff"`
}

func (cfg *RPCConfig) Validate() error {
	if len(cfg.Primary) == 0 {
		return errors.New("at least one primary RPC endpoint is required (rpc.primary or RPC_URL)")
	}
	if cfg.Timeout <= 0 {
		return errors.New("rpc.timeout must be positive")
	}
	if cfg.Attempts == 0 {
		return errors.New("rpc.attempts must be positive")
	}
	if cfg.QueryAttempts == 0 {
		return errors.New("rpc.query_attempts must be positive")
	}
	if cfg.MinInterval < 0 {
		return errors.New("rpc.min_interval must not be negative")
	}
	if err := cfg.Backoff.validate("rpc.backoff"); err != nil {
		return err
	}
	return cfg.QueryBackoff.validate("rpc.query_backoff")
}

type AnalysisConfig struct {
	MinHolderUSD           float64       `mapstructure:"min_holder_usd"`
	MinAccounts            int           `mapstructure:"min_accounts"`
	MaxSolBalance          float64       `mapstructure:"max_sol_balance"`
	GroupSize              int           `mapstructure:"group_size"`
	MaxConcurrency         int           `mapstructure:"max_concurrency"`
	StaggerDelay           time.Duration `mapstructure:"stagger_delay"`
	WalletAttempts         uint          `mapstructure:"wallet_attempts"`
	Backoff                BackoffConfig `mapstructure:"backoff"`
	RequireActivity        bool          `mapstructure:"require_activity"`
	ActivitySignatureLimit int           `mapstructure:"activity_signature_limit"`
	RentPerAccountLamports uint64        `mapstructure:"rent_per_account_lamports"`
	ExcludeOffCurve        bool          `mapstructure:"exclude_off_curve"`
}

func (cfg *AnalysisConfig) Validate() error {
	if cfg.MinHolderUSD <= 0 {
		return errors.New("analysis.min_holder_usd must be positive")
	}
	if cfg.MinAccounts < 0 {
		return errors.New("analysis.min_accounts must not be negative")
	}
	if cfg.MaxSolBalance < 0 {
		return errors.New("analysis.max_sol_balance must not be negative")
	}
	if cfg.GroupSize <= 0 {
		return errors.New("analysis.group_size must be positive")
	}
	if cfg.MaxConcurrency < 0 {
		return errors.New("analysis.max_concurrency must not be negative")
	}
	if cfg.WalletAttempts == 0 {
		return errors.New("analysis.wallet_attempts must be positive")
	}
	if err := cfg.Backoff.validate("analysis.backoff"); err != nil {
		return err
	}
	if cfg.ActivitySignatureLimit <= 0 || cfg.ActivitySignatureLimit > 1000 {
		return errors.New("analysis.activity_signature_limit must be between 1 and 1000")
	}
	if cfg.RentPerAccountLamports == 0 {
		return errors.New("analysis.rent_per_account_lamports must be positive")
	}
	return nil
}

type ExclusionsConfig struct {
	// Addresses are excluded in addition to the built-in list.
	Addresses   []string `mapstructure:"addresses"`
	PostgresDSN string   `mapstructure:"postgres_dsn"`
}

type PriceConfig struct {
	Source       string        `mapstructure:"source"`
	Timeout      time.Duration `mapstructure:"timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	CacheSize    int           `mapstructure:"cache_size"`
	CoinGeckoURL string        `mapstructure:"coingecko_url"`
	JupiterURL   string        `mapstructure:"jupiter_url"`
}

func (cfg *PriceConfig) Validate() error {
	switch cfg.Source {
	case "coingecko", "jupiter", "auto":
	default:
		return fmt.Errorf("price.source %q is not one of coingecko, jupiter, auto", cfg.Source)
	}
	if cfg.Timeout <= 0 {
		return errors.New("price.timeout must be positive")
	}
	if cfg.CoinGeckoURL == "" || cfg.JupiterURL == "" {
		return errors.New("price.coingecko_url and price.jupiter_url are required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.ping_interval", 15*time.Second)

	v.SetDefault("rpc.primary", []string{})
	v.SetDefault("rpc.activity", []string{})
	v.SetDefault("rpc.timeout", 50*time.Second)
	v.SetDefault("rpc.attempts", 6)
	v.SetDefault("rpc.query_attempts", 2)
	v.SetDefault("rpc.min_interval", 300*time.Millisecond)
	v.SetDefault("rpc.health_cooldown", 45*time.Second)
	v.SetDefault("rpc.backoff.base", 800*time.Millisecond)
	v.SetDefault("rpc.backoff.multiplier", 1.8)
	v.SetDefault("rpc.backoff.cap", 12*time.Second)
	v.SetDefault("rpc.backoff.jitter", time.Second)
	v.SetDefault("rpc.query_backoff.base", 500*time.Millisecond)
	v.SetDefault("rpc.query_backoff.multiplier", 2.0)
	v.SetDefault("rpc.query_backoff.cap", 5*time.Second)
	v.SetDefault("rpc.query_backoff.jitter", time.Duration(0))

	v.SetDefault("analysis.min_holder_usd", 10.0)
	v.SetDefault("analysis.min_accounts", 0)
	v.SetDefault("analysis.max_sol_balance", 0.0)
	v.SetDefault("analysis.group_size", 20)
	v.SetDefault("analysis.max_concurrency", 0)
	v.SetDefault("analysis.stagger_delay", 50*time.Millisecond)
	v.SetDefault("analysis.wallet_attempts", 3)
	v.SetDefault("analysis.backoff.base", 500*time.Millisecond)
	v.SetDefault("analysis.backoff.multiplier", 2.0)
	v.SetDefault("analysis.backoff.cap", 5*time.Second)
	v.SetDefault("analysis.backoff.jitter", time.Duration(0))
	v.SetDefault("analysis.require_activity", false)
	v.SetDefault("analysis.activity_signature_limit", 25)
	v.SetDefault("analysis.rent_per_account_lamports", 2039280)
	v.SetDefault("analysis.exclude_off_curve", false)

	v.SetDefault("exclusions.addresses", []string{})
	v.SetDefault("exclusions.postgres_dsn", "")

	v.SetDefault("price.source", "coingecko")
	v.SetDefault("price.timeout", 10*time.Second)
	v.SetDefault("price.cache_ttl", time.Minute)
	v.SetDefault("price.cache_size", 256)
	v.SetDefault("price.coingecko_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("price.jupiter_url", "https://api.jup.ag/price/v2")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
