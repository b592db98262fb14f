package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"deltarelay/internal/application/port"
)

type Options struct {
	Addr     string
	Password string // 非空时每个连接建立后发送 AUTH
	DB       int
}

// Publisher PUBLISH <topic> <payload>
type Publisher struct {
	rdb *redis.Client
}

// Connect 建立连接并用 PING 校验；密码错误在这里暴露，而不是在第一次发布时
func Connect(ctx context.Context, opts Options) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(cctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Publisher{rdb: rdb}, nil
}

// NewPublisher 复用已有 client
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Client 底层 client，供归档等组件共享连接池
func (p *Publisher) Client() *redis.Client { return p.rdb }

func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return p.rdb.Publish(ctx, topic, payload).Err()
}

func (p *Publisher) Close() error { return p.rdb.Close() }

var _ port.Publisher = (*Publisher)(nil)
