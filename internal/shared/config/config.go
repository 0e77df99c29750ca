package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "AUCTION_"

type Config struct {
	Environment string `koanf:"environment"`

	Log      LogConfig      `koanf:"log"`
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Auction  AuctionConfig  `koanf:"auction"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type ServerConfig struct {
	Addr            string          `koanf:"addr"`
	ReadTimeout     time.Duration   `koanf:"read_timeout"`
	WriteTimeout    time.Duration   `koanf:"write_timeout"`
	ShutdownTimeout time.Duration   `koanf:"shutdown_timeout"`
	RateLimit       RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	BurstSize         int     `koanf:"burst_size"`
	// IdleTTL is how long a client's bucket is kept after its last request.
	IdleTTL time.Duration `koanf:"idle_ttl"`
}

type StorageConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `koanf:"driver"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name"`
	SSLMode         string        `koanf:"sslmode"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
}

// DSN builds the postgres connection url.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	LockTTL     time.Duration `koanf:"lock_ttl"`
	Channel     string        `koanf:"channel"`
}

type AuctionConfig struct {
	// SettlementPolicy is "close_as_sold" or "close_as_ended".
	SettlementPolicy string        `koanf:"settlement_policy"`
	OperationTimeout time.Duration `koanf:"operation_timeout"`
	SweepInterval    time.Duration `koanf:"sweep_interval"`
	SweepConcurrency int           `koanf:"sweep_concurrency"`
	VerifyBidders    bool          `koanf:"verify_bidders"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Environment: "development",
		Log: LogConfig{
			Level:  "info",
			Format: "development",
		},
		Server: ServerConfig{
			Addr:            ":9000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 20,
				BurstSize:         40,
				IdleTTL:           10 * time.Minute,
			},
		},
		Storage: StorageConfig{Driver: "postgres"},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Name:            "auctions",
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			DialTimeout: 5 * time.Second,
			LockTTL:     10 * time.Second,
			Channel:     "auction-events",
		},
		Auction: AuctionConfig{
			SettlementPolicy: "close_as_sold",
			OperationTimeout: 5 * time.Second,
			SweepInterval:    time.Second,
			SweepConcurrency: 8,
		},
	}
}

// Load layers defaults, the optional yaml file at path, the legacy DB_*
// variables and AUCTION_* variables, in that order. A .env file is loaded first when
// present. Sections are separated by a double underscore: AUCTION_SERVER__ADDR.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("loading config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("DB_", ".", func(s string) string {
		return "database." + strings.ToLower(strings.TrimPrefix(s, "DB_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading DB_ environment variables: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values the service cannot start without.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "development", "production":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Auction.SettlementPolicy {
	case "close_as_sold", "close_as_ended":
	default:
		return fmt.Errorf("config: unknown settlement policy %q", c.Auction.SettlementPolicy)
	}
	if c.Auction.OperationTimeout <= 0 {
		return errors.New("config: auction.operation_timeout must be positive")
	}
	if c.Auction.SweepInterval <= 0 {
		return errors.New("config: auction.sweep_interval must be positive")
	}
	if c.Auction.SweepConcurrency <= 0 {
		return errors.New("config: auction.sweep_concurrency must be positive")
	}
	if c.Redis.Enabled && c.Redis.LockTTL <= c.Auction.OperationTimeout {
		return errors.New("config: redis.lock_ttl must exceed auction.operation_timeout")
	}
	return nil
}
