package bitmex

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"deltarelay/internal/infrastructure/websocket"
	"deltarelay/internal/infrastructure/worker"
)

// errInactivity 超过 InactivityTimeout 没有收到任何帧
var errInactivity = errors.New("inactivity timeout")

// Connector 持有 websocket 连接并驱动状态机，断线后按退避策略重连，
// 重连复用同一个 RuntimeState（合约表与输出端）。
//
// 帧的解码与发布在 worker 池中并发执行，因此不同帧之间的发布顺序不保证；
// 下游需要严格顺序时按 Delta.Seq 重排。
type Connector struct {
	cfg     ConnectorConfig
	rt      *RuntimeState
	handler *Handler
	dialer  *gws.Dialer
}

// New 校验配置并构建运行时状态，cfg.Publisher 必须已设置（见 InitSink）
func New(cfg ConnectorConfig) (*Connector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("%w: no publisher", ErrConfig)
	}
	rt, err := NewRuntimeState(cfg, cfg.Publisher)
	if err != nil {
		return nil, err
	}
	return &Connector{
		cfg:     cfg,
		rt:      rt,
		handler: NewHandler(cfg, rt),
		dialer: &gws.Dialer{
			HandshakeTimeout: 10 * time.Second,
			Proxy:            gws.DefaultDialer.Proxy,
		},
	}, nil
}

// Run 使用调用方配置（为 nil 时使用默认配置），初始化发布端后开始采集，直到 ctx 结束。
func Run(ctx context.Context, override *ConnectorConfig) error {
	cfg := DefaultSettings()
	if override != nil {
		cfg = *override
	}
	pub, err := InitSink(ctx, cfg)
	if err != nil {
		return err
	}
	cfg.Publisher = pub
	c, err := New(cfg)
	if err != nil {
		return err
	}
	return c.Run(ctx)
}

func (c *Connector) Name() string { return Name }

func (c *Connector) State() string { return c.rt.State().String() }

// Tables 运行时合约表
func (c *Connector) Tables() *RuntimeTables { return c.rt.Tables }

// Run 重连循环。ctx 结束或到达采集窗口终点时返回 nil；
// 连续重连次数超过上限时返回 ErrTransport。
func (c *Connector) Run(ctx context.Context) error {
	meta := c.cfg.MetaData
	if !meta.End.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, meta.End)
		defer cancel()
	}
	if !meta.Start.IsZero() {
		if wait := time.Until(meta.Start); wait > 0 {
			log.Info().Str("exchange", Name).Time("start", meta.Start).Msg("waiting for collection window")
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				c.rt.setState(StateStopped)
				return nil
			case <-t.C:
			}
		}
	}

	pool := worker.NewPool(worker.Options{
		Workers:   c.cfg.Workers.Workers,
		QueueSize: c.cfg.Workers.QueueSize,
		Overflow:  c.cfg.Workers.Overflow,
		OnDrop:    func() { c.cfg.Metrics.FrameDropped(Name, "queue_full") },
	})
	// 发布不随连接断开取消，排队中的帧在重连后仍然会被发布；
	// 停止时最多再等待 DrainTimeout，之后取消未完成的输出
	sinkCtx, sinkCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer func() {
		t := time.AfterFunc(c.cfg.DrainTimeout, sinkCancel)
		pool.Close()
		t.Stop()
		sinkCancel()
		c.rt.setState(StateStopped)
		log.Info().Str("exchange", Name).Msg("connector stopped")
	}()

	backoff := websocket.NewBackoff(c.cfg.Retry)
	for {
		c.rt.setState(StateConnecting)
		err := c.session(ctx, sinkCtx, pool, backoff)
		if ctx.Err() != nil {
			return nil
		}
		prev := c.rt.setState(StateReconnecting)

		cause := "close"
		if errors.Is(err, errInactivity) {
			cause = "timeout"
		} else if errors.Is(err, ErrMetadataFetch) {
			cause = "metadata"
		}
		c.cfg.Metrics.Reconnect(Name, cause)
		log.Warn().Err(err).Str("exchange", Name).Str("from", prev.String()).Str("cause", cause).
			Int("attempt", backoff.Attempts()+1).Msg("ws disconnected, reconnecting")

		if werr := backoff.Wait(ctx); werr != nil {
			if errors.Is(werr, websocket.ErrRetriesExhausted) {
				return fmt.Errorf("%w: %v: %v", ErrTransport, werr, err)
			}
			return nil
		}
	}
}

// session 一次连接：建连 -> OnOpen -> 发送订阅 -> 读循环
func (c *Connector) session(ctx, sinkCtx context.Context, pool *worker.Pool, backoff *websocket.Backoff) error {
	sid := uuid.NewString()
	logger := log.With().Str("exchange", Name).Str("session", sid).Logger()

	logger.Info().Str("url", c.cfg.Host).Msg("ws connecting")
	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := c.dialer.DialContext(dctx, c.cfg.Host, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: dial: %v", ErrTransport, err)
	}
	defer conn.Close()

	payload, err := c.handler.OnOpen(ctx)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(gws.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: subscribe: %v", ErrTransport, err)
	}
	c.rt.setState(StateSubscriptionSent)
	backoff.Reset()
	logger.Info().Msg("ws connected & subscribed")

	return c.readLoop(ctx, sinkCtx, conn, pool)
}

func (c *Connector) readLoop(ctx, sinkCtx context.Context, conn *gws.Conn, pool *worker.Pool) error {
	timeout := c.cfg.InactivityTimeout
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(timeout))
	})

	pingTicker := time.NewTicker(c.cfg.PingInterval)
	defer pingTicker.Stop()

	// 首帧信号只属于本次连接，状态由本 goroutine 切换；
	// 上一次连接残留的读 goroutine 不会影响新连接的状态
	started := make(chan struct{})
	first := started
	errCh := make(chan error, 1)
	go func() {
		var once sync.Once
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- classifyReadErr(err)
				return
			}
			f := Frame{Data: b, ReceivedAt: time.Now(), Seq: c.rt.nextSeq()}
			_ = conn.SetReadDeadline(time.Now().Add(timeout))
			c.cfg.Metrics.FrameReceived(Name)
			once.Do(func() { close(started) })

			if err := pool.Submit(ctx, func() { c.handler.HandleFrame(sinkCtx, f) }); err != nil {
				errCh <- err
				return
			}
			c.cfg.Metrics.SetQueueDepth(Name, pool.Depth())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-first:
			c.rt.setState(StateStreaming)
			first = nil
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			if err := conn.WriteControl(gws.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return fmt.Errorf("%w: ping: %v", ErrTransport, err)
			}
		}
	}
}

func classifyReadErr(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %w", ErrTransport, errInactivity)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
