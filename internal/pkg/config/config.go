// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/scamgi/inventory-service/internal/core/domain"
)

// Config holds all application configuration
type Config struct {
	App     AppConfig
	Server  ServerConfig
	Redis   RedisConfig
	Ledger  LedgerConfig
	Journal JournalConfig
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	LogLevel    string
	LogFormat   string // json, text
}

// ServerConfig holds HTTP and gRPC listener configuration
type ServerConfig struct {
	HTTPAddr        string
	GRPCAddr        string // empty disables the gRPC listener
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    float64 // 0 disables rate limiting
	RateLimitBurst  int
}

// RedisConfig holds counter store configuration
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	PoolSize       int
	DialTimeout    time.Duration
	CommandTimeout time.Duration
	KeyPrefix      string
}

// LedgerConfig selects the decrement strategy
type LedgerConfig struct {
	Strategy      domain.Strategy
	MaxCASRetries int
}

// JournalConfig holds the optional MySQL movement journal configuration
type JournalConfig struct {
	MySQLDSN     string
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
}

// Enabled reports whether a journal database is configured.
func (j JournalConfig) Enabled() bool {
	return j.MySQLDSN != ""
}

// Load loads configuration from environment variables
func Load(logger *slog.Logger) (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" || env == "local" {
		if err := godotenv.Load(); err != nil {
			logger.Debug("no .env file found, using environment variables",
				slog.String("error", err.Error()))
		} else {
			logger.Info(".env file loaded successfully")
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("app.name"),
			Environment: env,
			LogLevel:    v.GetString("log.level"),
			LogFormat:   v.GetString("log.format"),
		},
		Server: ServerConfig{
			HTTPAddr:        v.GetString("http.addr"),
			GRPCAddr:        v.GetString("grpc.addr"),
			ReadTimeout:     v.GetDuration("server.read.timeout"),
			WriteTimeout:    v.GetDuration("server.write.timeout"),
			IdleTimeout:     v.GetDuration("server.idle.timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown.timeout"),
			RateLimitRPS:    v.GetFloat64("rate.limit.rps"),
			RateLimitBurst:  v.GetInt("rate.limit.burst"),
		},
		Redis: RedisConfig{
			Addr:           v.GetString("redis.addr"),
			Password:       v.GetString("redis.password"),
			DB:             v.GetInt("redis.db"),
			PoolSize:       v.GetInt("redis.pool.size"),
			DialTimeout:    v.GetDuration("redis.dial.timeout"),
			CommandTimeout: v.GetDuration("redis.command.timeout"),
			KeyPrefix:      v.GetString("redis.key.prefix"),
		},
		Ledger: LedgerConfig{
			Strategy:      domain.Strategy(strings.ToLower(v.GetString("ledger.strategy"))),
			MaxCASRetries: v.GetInt("ledger.max.cas.retries"),
		},
		Journal: JournalConfig{
			MySQLDSN:     v.GetString("mysql.dsn"),
			Workers:      v.GetInt("journal.workers"),
			QueueSize:    v.GetInt("journal.queue.size"),
			WriteTimeout: v.GetDuration("journal.write.timeout"),
		},
	}

	if cfg.App.LogFormat == "" {
		cfg.App.LogFormat = defaultLogFormat(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return errors.New("http address is required")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}
	if c.Redis.PoolSize <= 0 {
		return errors.New("redis pool size must be positive")
	}
	if c.Redis.CommandTimeout <= 0 {
		return errors.New("redis command timeout must be positive")
	}
	if !c.Ledger.Strategy.Valid() {
		return fmt.Errorf("unknown ledger strategy %q (want %q or %q)",
			c.Ledger.Strategy, domain.StrategyScript, domain.StrategyCAS)
	}
	if c.Ledger.Strategy == domain.StrategyCAS && c.Ledger.MaxCASRetries <= 0 {
		return errors.New("ledger max cas retries must be positive")
	}
	if c.Server.RateLimitRPS < 0 {
		return errors.New("rate limit rps must not be negative")
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		return errors.New("rate limit burst must be positive when rate limiting is enabled")
	}
	if c.Journal.Enabled() {
		if c.Journal.Workers <= 0 {
			return errors.New("journal workers must be positive")
		}
		if c.Journal.QueueSize <= 0 {
			return errors.New("journal queue size must be positive")
		}
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// defaultLogFormat is json in production and text elsewhere.
func defaultLogFormat(c *Config) string {
	if c.IsProduction() {
		return "json"
	}
	return "text"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "inventory-service")
	v.SetDefault("log.level", "info")

	v.SetDefault("http.addr", ":8083")
	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("server.read.timeout", 10*time.Second)
	v.SetDefault("server.write.timeout", 15*time.Second)
	v.SetDefault("server.idle.timeout", 60*time.Second)
	v.SetDefault("server.shutdown.timeout", 15*time.Second)
	v.SetDefault("rate.limit.rps", 0)
	v.SetDefault("rate.limit.burst", 100)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool.size", 100)
	v.SetDefault("redis.dial.timeout", 5*time.Second)
	v.SetDefault("redis.command.timeout", 2*time.Second)
	v.SetDefault("redis.key.prefix", "inventory:")

	v.SetDefault("ledger.strategy", string(domain.StrategyScript))
	v.SetDefault("ledger.max.cas.retries", 16)

	v.SetDefault("mysql.dsn", "")
	v.SetDefault("journal.workers", 4)
	v.SetDefault("journal.queue.size", 10000)
	v.SetDefault("journal.write.timeout", 5*time.Second)
}
