package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"chainradar/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Chains    ChainsConfig    `mapstructure:"chains"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ServerConfig governs the HTTP API listener.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// SchedulerConfig governs the alert evaluation cadence.
type SchedulerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// PricingConfig covers the upstream fiat price provider. Assets maps the
// tracked asset symbol (ETH, BTC, ...) to the provider's coin identifier, so
// adding a tracked asset is a configuration change rather than a code change.
type PricingConfig struct {
	BaseURL        string            `mapstructure:"base_url"`
	APIKey         string            `mapstructure:"api_key"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	TTL            time.Duration     `mapstructure:"ttl"`
	Assets         map[string]string `mapstructure:"assets"`
}

// CacheConfig selects the price cache backend.
type CacheConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig describes the optional Redis cache backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ChainsConfig groups per-chain balance provider settings.
type ChainsConfig struct {
	EVM EVMConfig  `mapstructure:"evm"`
	BTC HTTPConfig `mapstructure:"btc"`
	SOL HTTPConfig `mapstructure:"sol"`
	TON TONConfig  `mapstructure:"ton"`
}

// EVMConfig covers Ethereum JSON-RPC access.
type EVMConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// HTTPConfig covers plain HTTP balance providers.
type HTTPConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TONConfig covers TON Center access.
type TONConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// CatalogConfig points at the opportunity catalog document.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// AlertingConfig defines alert evaluation defaults.
type AlertingConfig struct {
	DefaultCooldown time.Duration `mapstructure:"default_cooldown"`
}

// TelegramConfig 描述 Telegram Bot 参数。
type TelegramConfig struct {
	BotToken      string        `mapstructure:"bot_token"`
	APIBase       string        `mapstructure:"api_base"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	AppURL        string        `mapstructure:"app_url"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
	MaxAuthAge    time.Duration `mapstructure:"max_auth_age"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHAINRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "chainradar")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.listen_addr", ":3000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", "2m")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x72616461))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("pricing.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("pricing.request_timeout", "10s")
	v.SetDefault("pricing.ttl", "1m")
	v.SetDefault("pricing.assets", map[string]string{
		"ETH": "ethereum",
		"BTC": "bitcoin",
		"SOL": "solana",
		"TON": "the-open-network",
	})

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("chains.evm.rpc_url", "https://cloudflare-eth.com")
	v.SetDefault("chains.evm.request_timeout", "10s")
	v.SetDefault("chains.btc.base_url", "https://blockstream.info/api")
	v.SetDefault("chains.btc.request_timeout", "10s")
	v.SetDefault("chains.sol.base_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("chains.sol.request_timeout", "10s")
	v.SetDefault("chains.ton.base_url", "https://toncenter.com/api/v2")
	v.SetDefault("chains.ton.request_timeout", "10s")

	v.SetDefault("catalog.path", "data/opportunities.json")

	v.SetDefault("alerting.default_cooldown", "60m")

	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.send_timeout", "10s")
	v.SetDefault("telegram.max_auth_age", "24h")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Pricing.TTL <= 0 {
		return fmt.Errorf("pricing.ttl must be greater than zero")
	}
	if len(c.Pricing.Assets) == 0 {
		return fmt.Errorf("pricing.assets must list at least one tracked asset")
	}
	if c.Alerting.DefaultCooldown < 0 {
		return fmt.Errorf("alerting.default_cooldown cannot be negative")
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr 必须配置")
	}
	if c.Scheduler.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token 必须配置")
	}
	return nil
}
