package container

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"deltarelay/internal/application/port"
	"deltarelay/internal/infrastructure/config"
	"deltarelay/internal/infrastructure/connector"
	"deltarelay/internal/infrastructure/metrics"
	pubsub "deltarelay/internal/infrastructure/pubsub/redis"
	"deltarelay/internal/infrastructure/storage"
	"deltarelay/internal/infrastructure/storage/composite"
	pgrepo "deltarelay/internal/infrastructure/storage/postgres"
	redisrepo "deltarelay/internal/infrastructure/storage/redis"
	sqliterepo "deltarelay/internal/infrastructure/storage/sqlite"
	"deltarelay/internal/interfaces/console"
)

// Container 包含所有应用依赖
type Container struct {
	cfg         *config.Config
	redisClient *redis.Client
	publisher   port.Publisher
	archives    []port.Archive
	archive     port.Archive
	sqliteRepo  *sqliterepo.Archive
	metrics     *metrics.Connector
	closeOnce   sync.Once
	closerChain []func() error
}

// New 按配置创建发布端与归档；任一后端初始化失败时关闭已创建的资源
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		metrics:     metrics.NewConnector(),
		closerChain: make([]func() error, 0),
	}

	if err := c.initPublisher(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := c.initStorage(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// initPublisher redis 启用时发布到 pub/sub，否则输出到控制台
func (c *Container) initPublisher(ctx context.Context) error {
	if !c.cfg.Redis.Enabled {
		c.publisher = console.NewSink()
		log.Warn().Msg("redis disabled, publishing to console")
		return nil
	}

	p, err := pubsub.Connect(ctx, pubsub.Options{
		Addr:     c.cfg.Redis.Addr,
		Password: c.cfg.Redis.Password,
		DB:       c.cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("redis init failed: %w", err)
	}
	c.publisher = p
	c.redisClient = p.Client()

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return p.Close()
	})

	log.Info().
		Str("addr", c.cfg.Redis.Addr).
		Int("db", c.cfg.Redis.DB).
		Msg("redis initialized")
	return nil
}

// initStorage 初始化归档后端（SQLite、Postgres、Redis Stream），都未启用时不归档
func (c *Container) initStorage(ctx context.Context) error {
	if c.cfg.SQLite.Enabled {
		if err := c.initSQLite(); err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
	}
	if c.cfg.Postgres.Enabled {
		if err := c.initPostgres(); err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
	}
	if c.cfg.Archive.RedisStreams && c.redisClient != nil {
		c.archives = append(c.archives, redisrepo.New(c.redisClient, c.cfg.Archive.StreamPrefix, c.cfg.Archive.MaxLen))
		log.Info().Str("prefix", c.cfg.Archive.StreamPrefix).Msg("redis stream archive initialized")
	}

	switch len(c.archives) {
	case 0:
		c.archive = storage.NewDiscardArchive()
		log.Warn().Msg("no archive backend enabled, deltas are not archived")
	case 1:
		c.archive = c.archives[0]
	default:
		c.archive = composite.New(c.archives...)
	}
	return nil
}

// initSQLite 初始化 SQLite 数据库
func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.SQLite.Path)
	if err != nil {
		return err
	}
	c.sqliteRepo = repo
	c.archives = append(c.archives, repo)

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", c.cfg.SQLite.Path).
		Msg("sqlite initialized")
	return nil
}

func (c *Container) initPostgres() error {
	repo, err := pgrepo.New(c.cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	c.archives = append(c.archives, repo)

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().Msg("postgres initialized")
	return nil
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// RedisClient redis 未启用时为 nil
func (c *Container) RedisClient() *redis.Client {
	return c.redisClient
}

func (c *Container) Publisher() port.Publisher {
	return c.publisher
}

// Archive 组合后的归档
func (c *Container) Archive() port.Archive {
	return c.archive
}

// SQLiteRepo 获取 SQLite 归档
func (c *Container) SQLiteRepo() *sqliterepo.Archive {
	return c.sqliteRepo
}

func (c *Container) Metrics() *metrics.Connector {
	return c.metrics
}

// Sinks 交给连接器工厂的输出端
func (c *Container) Sinks() connector.Sinks {
	return connector.Sinks{
		Publisher: c.publisher,
		Archive:   c.archive,
		Metrics:   c.metrics,
	}
}

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("container closed")
	})
	return err
}
