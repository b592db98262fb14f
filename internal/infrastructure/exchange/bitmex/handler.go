package bitmex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"deltarelay/internal/domain"
	"deltarelay/internal/infrastructure/storage"
)

// sinkTimeout 单次发布或归档的超时
const sinkTimeout = 5 * time.Second

// Frame 一条收到的消息，接收时间与序号在读 goroutine 上打上
type Frame struct {
	Data       []byte
	ReceivedAt time.Time
	Seq        uint64
}

// Handler 处理连接生命周期事件：建立时订阅，收到消息时解码并发布
type Handler struct {
	cfg ConnectorConfig
	rt  *RuntimeState
}

func NewHandler(cfg ConnectorConfig, rt *RuntimeState) *Handler {
	return &Handler{cfg: cfg, rt: rt}
}

// Subscription 单频道原样订阅，双参数频道按交易对展开
func (h *Handler) Subscription() (subscription, error) {
	msg := subscription{Op: "subscribe", Args: make([]string, 0, len(h.cfg.SingleChannels))}
	msg.Args = append(msg.Args, h.cfg.SingleChannels...)

	pairs, err := domain.FormatPairs(domain.BitMEX, h.cfg.MetaData.AssetPairs)
	if err != nil {
		return subscription{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	for _, ch := range h.cfg.DualChannels {
		for _, p := range pairs {
			msg.Args = append(msg.Args, ch+":"+p)
		}
	}
	return msg, nil
}

// OnOpen 连接建立：首次（或配置了刷新时）拉取合约表并准备归档，返回需要发送的订阅请求。
// 返回错误时本次连接作废，由重连策略处理。
func (h *Handler) OnOpen(ctx context.Context) ([]byte, error) {
	sub, err := h.Subscription()
	if err != nil {
		return nil, err
	}

	if !h.rt.Tables.Loaded() || h.cfg.RefreshOnReconnect {
		if err := h.loadInstruments(ctx); err != nil {
			return nil, err
		}
	}

	b, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal subscription: %v", ErrConfig, err)
	}
	log.Info().Str("exchange", Name).Strs("args", sub.Args).Msg("subscribing")
	return b, nil
}

func (h *Handler) loadInstruments(ctx context.Context) error {
	instruments, err := h.cfg.Instruments.Instruments(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMetadataFetch, err)
	}
	if len(instruments) == 0 {
		return fmt.Errorf("%w: empty instrument list", ErrMetadataFetch)
	}
	h.rt.Tables.Replace(instruments)

	for _, inst := range instruments {
		created, err := h.rt.ensureArchive(ctx, inst.Symbol)
		if err != nil {
			h.cfg.Metrics.SinkError(Name, "archive")
			log.Error().Err(err).Str("exchange", Name).Str("symbol", inst.Symbol).Msg("archive provisioning failed")
			continue
		}
		if created {
			log.Info().Str("exchange", Name).Str("archive", storage.ArchiveName(Name, inst.Symbol)).Msg("archive created")
		}
	}

	log.Info().Str("exchange", Name).Int("instruments", len(instruments)).Msg("instrument tables loaded")
	return nil
}

// Normalize 将一帧转换为 delta。快照返回空；无法解析的帧返回 ErrDecode。
// 单条更新缺少 id 或无法解码时只丢弃该条。
func (h *Handler) Normalize(f Frame) ([]domain.Delta, error) {
	var msg bitmexMessage
	if err := json.Unmarshal(f.Data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if isSnapshot(msg.Action) {
		return nil, nil
	}

	ts := float64(f.ReceivedAt.UnixMilli()) * 0.001
	isTrade := msg.Action == actionTrade || msg.Table == tableTrade
	deltas := make([]domain.Delta, 0, len(msg.Data))

	for _, u := range msg.Data {
		if u.ID == nil {
			h.cfg.Metrics.UpdateDropped(Name, "missing_id")
			continue
		}
		price, err := DecodePrice(h.rt.Tables, u.Symbol, *u.ID)
		if err != nil {
			h.dropUpdate(u.Symbol, err)
			continue
		}
		var size float64
		if u.Size != nil {
			size = *u.Size
		}
		if size < 0 {
			h.dropUpdate(u.Symbol, fmt.Errorf("%w: %v", ErrNegativeSize, size))
			continue
		}

		deltas = append(deltas, domain.Delta{
			Symbol: u.Symbol,
			Price:  price.InexactFloat64(),
			Size:   size,
			Seq:    f.Seq,
			Event:  domain.Event(u.Side == sideBuy, isTrade),
			Ts:     ts,
		})
	}
	return deltas, nil
}

func (h *Handler) dropUpdate(symbol string, err error) {
	reason := "decode"
	switch {
	case errors.Is(err, ErrUnknownSymbol):
		reason = "unknown_symbol"
	case errors.Is(err, ErrInvalidID):
		reason = "invalid_id"
	case errors.Is(err, ErrNegativeSize):
		reason = "negative_size"
	}
	h.cfg.Metrics.UpdateDropped(Name, reason)
	log.Warn().Err(err).Str("exchange", Name).Str("symbol", symbol).Msg("update dropped")
}

// HandleFrame 解码一帧，整批发布为一条消息，并追加到已存在的归档。
// 输出端失败只记录日志，不影响连接。
func (h *Handler) HandleFrame(ctx context.Context, f Frame) {
	deltas, err := h.Normalize(f)
	if err != nil {
		h.cfg.Metrics.FrameDropped(Name, "decode")
		log.Error().Err(err).Str("exchange", Name).Uint64("seq", f.Seq).Msg("frame dropped")
		return
	}
	if len(deltas) == 0 {
		return
	}

	payload, err := json.Marshal(deltas)
	if err != nil {
		h.cfg.Metrics.FrameDropped(Name, "encode")
		log.Error().Err(err).Str("exchange", Name).Msg("delta encode failed")
		return
	}

	pctx, cancel := context.WithTimeout(ctx, sinkTimeout)
	err = h.rt.publish(pctx, h.cfg.Topic, payload)
	cancel()
	if err != nil {
		h.cfg.Metrics.SinkError(Name, "publish")
		log.Error().Err(fmt.Errorf("%w: %v", ErrSink, err)).Str("exchange", Name).Str("topic", h.cfg.Topic).Msg("publish failed")
	} else {
		h.cfg.Metrics.DeltasPublished(Name, len(deltas))
	}

	h.archive(ctx, deltas)
	h.cfg.Metrics.ObserveDecode(float64(time.Since(f.ReceivedAt).Microseconds()) / 1000)
}

func (h *Handler) archive(ctx context.Context, deltas []domain.Delta) {
	bySymbol := make(map[string][]domain.Delta)
	order := make([]string, 0, 1)
	for _, d := range deltas {
		if _, ok := bySymbol[d.Symbol]; !ok {
			order = append(order, d.Symbol)
		}
		bySymbol[d.Symbol] = append(bySymbol[d.Symbol], d)
	}

	for _, sym := range order {
		actx, cancel := context.WithTimeout(ctx, sinkTimeout)
		err := h.rt.appendArchive(actx, sym, bySymbol[sym])
		cancel()
		if err != nil {
			h.cfg.Metrics.SinkError(Name, "archive")
			log.Error().Err(fmt.Errorf("%w: %v", ErrSink, err)).Str("exchange", Name).Str("symbol", sym).Msg("archive append failed")
		}
	}
}
