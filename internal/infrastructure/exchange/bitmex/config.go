package bitmex

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"deltarelay/internal/application/port"
	"deltarelay/internal/domain"
	"deltarelay/internal/infrastructure/metrics"
	pubsub "deltarelay/internal/infrastructure/pubsub/redis"
	"deltarelay/internal/infrastructure/storage"
	"deltarelay/internal/infrastructure/websocket"
	"deltarelay/internal/infrastructure/worker"
)

const (
	Name = "bitmex"

	DefaultHost  = "wss://www.bitmex.com/realtime"
	DefaultTopic = "bitmex"
)

// MetaData 采集元数据
type MetaData struct {
	AssetPairs []domain.AssetPair

	// 采集窗口，零值表示不限
	Start time.Time
	End   time.Time
}

// ConnectorConfig 单次运行内不可变的配置
type ConnectorConfig struct {
	Host     string
	RestURL  string
	Topic    string
	MetaData MetaData

	// 无参数频道，原样订阅
	SingleChannels []string
	// 带参数频道，按交易对展开为 "channel:PAIR"
	DualChannels []string

	InactivityTimeout  time.Duration
	PingInterval       time.Duration
	DrainTimeout       time.Duration // 停止时等待排队帧输出的上限
	RefreshOnReconnect bool
	Retry              websocket.RetryConfig
	Workers            worker.Options

	// 外部注入的输出端
	Publisher   port.Publisher
	Archive     port.Archive
	Instruments port.InstrumentSource
	Metrics     *metrics.Connector

	// Publisher 为空时用于 InitSink
	Sink pubsub.Options
}

// DefaultSettings 默认配置：XBTUSD 的 orderBookL2 与 trade，不归档，未认证的本地 redis
func DefaultSettings() ConnectorConfig {
	return ConnectorConfig{
		Host:    DefaultHost,
		RestURL: DefaultRestURL,
		Topic:   DefaultTopic,
		MetaData: MetaData{
			AssetPairs: []domain.AssetPair{ReferencePair},
		},
		SingleChannels:    []string{},
		DualChannels:      []string{"orderBookL2", "trade"},
		InactivityTimeout: 30 * time.Second,
		PingInterval:      25 * time.Second,
		DrainTimeout:      5 * time.Second,
		Retry:             websocket.DefaultRetryConfig,
		Workers: worker.Options{
			Workers:   4,
			QueueSize: 1024,
			Overflow:  worker.Block,
		},
		Archive: storage.NewDiscardArchive(),
		Sink:    pubsub.Options{Addr: "localhost:6379"},
	}
}

// InitSink 返回发布端；未注入时连接 redis，配置了密码则连接时认证，认证失败直接返回错误
func InitSink(ctx context.Context, cfg ConnectorConfig) (port.Publisher, error) {
	if cfg.Publisher != nil {
		return cfg.Publisher, nil
	}
	p, err := pubsub.Connect(ctx, cfg.Sink)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSink, err)
	}
	return p, nil
}

func (c *ConnectorConfig) validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("%w: empty host", ErrConfig)
	}
	if len(c.DualChannels) > 0 && len(c.MetaData.AssetPairs) == 0 {
		return fmt.Errorf("%w: no asset pairs for dual channels", ErrConfig)
	}
	if len(c.SingleChannels)+len(c.DualChannels) == 0 {
		return fmt.Errorf("%w: no channels", ErrConfig)
	}
	if _, err := domain.FormatPairs(domain.BitMEX, c.MetaData.AssetPairs); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = 30 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.InactivityTimeout {
		c.PingInterval = c.InactivityTimeout * 5 / 6
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 5 * time.Second
	}
	if c.Archive == nil {
		c.Archive = storage.NewDiscardArchive()
	}
	if c.Instruments == nil {
		c.Instruments = NewInstrumentClient(c.RestURL)
	}
	return nil
}

// RuntimeState 跨重连共享的可变状态，每次运行由 NewRuntimeState 构建一次
type RuntimeState struct {
	Tables *RuntimeTables

	// 输出端不假定并发安全，各自串行使用
	pubMu     sync.Mutex
	publisher port.Publisher
	archMu    sync.Mutex
	archive   port.Archive

	// 已确认存在的归档名
	provisioned sync.Map
	// 需要创建归档的合约：参考合约 + 跟踪的交易对
	provision map[string]struct{}

	seq   atomic.Uint64
	state atomic.Int32
}

func NewRuntimeState(cfg ConnectorConfig, publisher port.Publisher) (*RuntimeState, error) {
	symbols, err := domain.FormatPairs(domain.BitMEX, cfg.MetaData.AssetPairs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	provision := map[string]struct{}{ReferenceSymbol: {}}
	for _, s := range symbols {
		provision[s] = struct{}{}
	}
	rt := &RuntimeState{
		Tables:    NewRuntimeTables(),
		publisher: publisher,
		archive:   cfg.Archive,
		provision: provision,
	}
	rt.state.Store(int32(StateIdle))
	return rt, nil
}

// nextSeq 连接器级别的接收序号，跨重连单调递增
func (rt *RuntimeState) nextSeq() uint64 { return rt.seq.Add(1) }

func (rt *RuntimeState) State() State { return State(rt.state.Load()) }

func (rt *RuntimeState) setState(s State) State {
	return State(rt.state.Swap(int32(s)))
}

func (rt *RuntimeState) publish(ctx context.Context, topic string, payload []byte) error {
	rt.pubMu.Lock()
	defer rt.pubMu.Unlock()
	return rt.publisher.Publish(ctx, topic, payload)
}

func (rt *RuntimeState) isProvisioned(name string) bool {
	_, ok := rt.provisioned.Load(name)
	return ok
}

// ensureArchive 归档不存在且合约需要归档时创建
func (rt *RuntimeState) ensureArchive(ctx context.Context, symbol string) (created bool, err error) {
	name := storage.ArchiveName(Name, symbol)
	if _, want := rt.provision[symbol]; !want || rt.isProvisioned(name) {
		return false, nil
	}

	rt.archMu.Lock()
	defer rt.archMu.Unlock()
	ok, err := rt.archive.Exists(ctx, name)
	if err != nil {
		return false, err
	}
	if !ok {
		if err := rt.archive.Create(ctx, name); err != nil {
			return false, err
		}
		created = true
	}
	rt.provisioned.Store(name, struct{}{})
	return created, nil
}

// appendArchive 只追加需要归档的合约；建连时创建失败的归档在这里补建
func (rt *RuntimeState) appendArchive(ctx context.Context, symbol string, deltas []domain.Delta) error {
	if _, want := rt.provision[symbol]; !want {
		return nil
	}
	name := storage.ArchiveName(Name, symbol)
	if !rt.isProvisioned(name) {
		if _, err := rt.ensureArchive(ctx, symbol); err != nil {
			return fmt.Errorf("provision %s: %w", name, err)
		}
	}
	rt.archMu.Lock()
	defer rt.archMu.Unlock()
	return rt.archive.Append(ctx, name, deltas)
}
