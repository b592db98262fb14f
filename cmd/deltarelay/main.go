package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"deltarelay/internal/infrastructure/config"
	"deltarelay/internal/infrastructure/connector"
	"deltarelay/internal/infrastructure/container"
	"deltarelay/internal/infrastructure/logger"
	"deltarelay/internal/interfaces/httpapi"

	_ "deltarelay/internal/infrastructure/exchange/bitmex"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Setup("info", true)
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel, cfg.App.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("deltarelay exited")
		stop()
		os.Exit(1)
	}
}

// loadConfig 配置文件不存在时使用默认值（仍然读取环境变量）
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default()
	}
	return cfg, err
}

func run(ctx context.Context, cfg *config.Config) error {
	c, err := container.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	factory, ok := connector.Get(cfg.Connector.Exchange)
	if !ok {
		return errors.New("no connector for " + cfg.Connector.Exchange + ", available: " + strings.Join(connector.Names(), ","))
	}
	conn, err := factory(cfg, c.Sinks())
	if err != nil {
		return err
	}

	if cfg.App.MetricsAddr != "" {
		go func() {
			if err := httpapi.Serve(ctx, cfg.App.MetricsAddr, httpapi.NewRouter(conn, c.Metrics().Handler())); err != nil {
				log.Error().Err(err).Msg("ops http failed")
			}
		}()
	}

	log.Info().
		Str("exchange", conn.Name()).
		Strs("connectors", connector.Names()).
		Bool("redis", cfg.Redis.Enabled).
		Bool("sqlite", cfg.SQLite.Enabled).
		Bool("postgres", cfg.Postgres.Enabled).
		Msg("deltarelay started")

	return conn.Run(ctx)
}
