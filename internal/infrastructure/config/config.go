package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"deltarelay/internal/domain"
)

type Config struct {
	App struct {
		LogLevel    string `toml:"log_level" env:"LOG_LEVEL"`
		Pretty      bool   `toml:"pretty"`
		MetricsAddr string `toml:"metrics_addr" env:"METRICS_ADDR"` // 为空则不启动 ops http
	} `toml:"app"`

	Connector struct {
		Exchange       string     `toml:"exchange"`
		WsURL          string     `toml:"ws_url" env:"WS_URL"`
		RestURL        string     `toml:"rest_url" env:"REST_URL"`
		Topic          string     `toml:"topic"`
		Pairs          [][]string `toml:"pairs"`
		SingleChannels []string   `toml:"single_channels"`
		DualChannels   []string   `toml:"dual_channels"`

		// 采集窗口，RFC3339，可选
		Start string `toml:"start"`
		End   string `toml:"end"`

		InactivityTimeoutSec int  `toml:"inactivity_timeout_sec"`
		RefreshOnReconnect   bool `toml:"refresh_on_reconnect"`

		Retry struct {
			InitialDelayMs int `toml:"initial_delay_ms"`
			MaxDelayMs     int `toml:"max_delay_ms"`
			MaxRetries     int `toml:"max_retries"` // 0 = 不限
		} `toml:"retry"`
	} `toml:"connector"`

	Workers struct {
		Count     int    `toml:"count"`
		QueueSize int    `toml:"queue_size"`
		Overflow  string `toml:"overflow"` // block | drop_oldest
	} `toml:"workers"`

	Redis struct {
		Enabled  bool   `toml:"enabled"`
		Addr     string `toml:"addr" env:"REDIS_ADDR"`
		Password string `toml:"password" env:"REDIS_PASSWORD"`
		DB       int    `toml:"db"`
	} `toml:"redis"`

	SQLite struct {
		Enabled bool   `toml:"enabled"`
		Path    string `toml:"path"`
	} `toml:"sqlite"`

	Postgres struct {
		Enabled bool   `toml:"enabled"`
		DSN     string `toml:"dsn" env:"POSTGRES_DSN"`
	} `toml:"postgres"`

	Archive struct {
		RedisStreams bool   `toml:"redis_streams"`
		StreamPrefix string `toml:"stream_prefix"`
		MaxLen       int64  `toml:"max_len"` // 每个 stream 的近似上限，0 = 不限
	} `toml:"archive"`
}

const (
	OverflowBlock      = "block"
	OverflowDropOldest = "drop_oldest"
)

// EnvPrefix 环境变量覆盖的前缀，例如 DELTARELAY_REDIS_PASSWORD
const EnvPrefix = "DELTARELAY_"

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 不读取文件，仅使用默认值与环境变量
func Default() (*Config, error) {
	var cfg Config
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv 环境变量只覆盖带 env 标签的字段，未设置的保持文件中的值
func applyEnv(cfg *Config) error {
	opts := env.Options{Prefix: EnvPrefix}
	if err := env.ParseWithOptions(&cfg.App, opts); err != nil {
		return fmt.Errorf("env app: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Connector, opts); err != nil {
		return fmt.Errorf("env connector: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Redis, opts); err != nil {
		return fmt.Errorf("env redis: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Postgres, opts); err != nil {
		return fmt.Errorf("env postgres: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.Connector.Exchange == "" {
		cfg.Connector.Exchange = "bitmex"
	}
	if cfg.Connector.InactivityTimeoutSec <= 0 {
		cfg.Connector.InactivityTimeoutSec = 30
	}
	if cfg.Connector.Retry.InitialDelayMs <= 0 {
		cfg.Connector.Retry.InitialDelayMs = 500
	}
	if cfg.Connector.Retry.MaxDelayMs <= 0 {
		cfg.Connector.Retry.MaxDelayMs = 10_000
	}
	if cfg.Workers.Count <= 0 {
		cfg.Workers.Count = 4
	}
	if cfg.Workers.QueueSize <= 0 {
		cfg.Workers.QueueSize = 1024
	}
	if cfg.Workers.Overflow == "" {
		cfg.Workers.Overflow = OverflowBlock
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "data/deltarelay.db"
	}
	if cfg.Archive.StreamPrefix == "" {
		cfg.Archive.StreamPrefix = "deltarelay"
	}
}

func validate(cfg *Config) error {
	cfg.App.LogLevel = strings.ToLower(strings.TrimSpace(cfg.App.LogLevel))
	switch cfg.App.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.log_level %q invalid", cfg.App.LogLevel)
	}

	ex, err := domain.ParseExchange(cfg.Connector.Exchange)
	if err != nil {
		return fmt.Errorf("connector.exchange: %w", err)
	}
	if _, err := cfg.AssetPairs(ex); err != nil {
		return fmt.Errorf("connector.pairs: %w", err)
	}
	if _, _, err := cfg.Window(); err != nil {
		return err
	}

	switch cfg.Workers.Overflow {
	case OverflowBlock, OverflowDropOldest:
	default:
		return fmt.Errorf("workers.overflow %q invalid", cfg.Workers.Overflow)
	}
	if cfg.Connector.Retry.MaxRetries < 0 {
		return errors.New("connector.retry.max_retries must be >= 0")
	}

	if cfg.Postgres.Enabled && strings.TrimSpace(cfg.Postgres.DSN) == "" {
		return errors.New("postgres.dsn empty but enabled")
	}
	if cfg.Archive.RedisStreams && !cfg.Redis.Enabled {
		return errors.New("archive.redis_streams requires redis.enabled")
	}
	return nil
}

// AssetPairs 解析并校验交易对，所有资产必须被交易所支持
func (c *Config) AssetPairs(ex domain.Exchange) ([]domain.AssetPair, error) {
	pairs := make([]domain.AssetPair, 0, len(c.Connector.Pairs))
	for _, raw := range c.Connector.Pairs {
		p, err := domain.ParseAssetPair(raw)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	if _, err := domain.FormatPairs(ex, pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

// Window 采集窗口，未配置的一端为零值
func (c *Config) Window() (start, end time.Time, err error) {
	if s := strings.TrimSpace(c.Connector.Start); s != "" {
		if start, err = time.Parse(time.RFC3339, s); err != nil {
			return start, end, fmt.Errorf("connector.start: %w", err)
		}
	}
	if s := strings.TrimSpace(c.Connector.End); s != "" {
		if end, err = time.Parse(time.RFC3339, s); err != nil {
			return start, end, fmt.Errorf("connector.end: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return start, end, errors.New("connector.end must be after connector.start")
	}
	return start, end, nil
}

func (c *Config) InactivityTimeout() time.Duration {
	return time.Duration(c.Connector.InactivityTimeoutSec) * time.Second
}
