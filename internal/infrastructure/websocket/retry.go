package websocket

import (
	"context"
	"errors"
	"time"
)

// ErrRetriesExhausted 连续重连失败次数超过上限
var ErrRetriesExhausted = errors.New("websocket retries exhausted")

// RetryConfig WebSocket 连接重试配置
type RetryConfig struct {
	MaxRetries int           // 最大连续重试次数，0 表示不限
	InitialDel time.Duration // 初始延迟
	MaxDelay   time.Duration // 最大延迟
}

// DefaultRetryConfig 默认重试配置
var DefaultRetryConfig = RetryConfig{
	MaxRetries: 0,
	InitialDel: 500 * time.Millisecond,
	MaxDelay:   10 * time.Second,
}

// Backoff 指数退避：每次重试延迟翻倍，但不超过最大延迟。
// 非并发安全，由持有连接的 goroutine 独占使用。
type Backoff struct {
	cfg      RetryConfig
	delay    time.Duration
	attempts int
}

func NewBackoff(cfg RetryConfig) *Backoff {
	if cfg.InitialDel <= 0 {
		cfg.InitialDel = DefaultRetryConfig.InitialDel
	}
	if cfg.MaxDelay < cfg.InitialDel {
		cfg.MaxDelay = cfg.InitialDel
	}
	return &Backoff{cfg: cfg, delay: cfg.InitialDel}
}

// Attempts 自上次 Reset 以来的重试次数
func (b *Backoff) Attempts() int { return b.attempts }

// Next 返回下一次等待时长；超过 MaxRetries 时返回 ErrRetriesExhausted
func (b *Backoff) Next() (time.Duration, error) {
	if b.cfg.MaxRetries > 0 && b.attempts >= b.cfg.MaxRetries {
		return 0, ErrRetriesExhausted
	}
	b.attempts++
	d := b.delay
	b.delay = minDur(b.delay*2, b.cfg.MaxDelay)
	return d, nil
}

// Reset 连接成功后调用
func (b *Backoff) Reset() {
	b.attempts = 0
	b.delay = b.cfg.InitialDel
}

// Wait 等待下一次退避时长，ctx 取消时提前返回
func (b *Backoff) Wait(ctx context.Context) error {
	d, err := b.Next()
	if err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
