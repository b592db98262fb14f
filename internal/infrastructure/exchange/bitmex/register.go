package bitmex

import (
	"time"

	"deltarelay/internal/application/port"
	"deltarelay/internal/domain"
	"deltarelay/internal/infrastructure/config"
	"deltarelay/internal/infrastructure/connector"
	"deltarelay/internal/infrastructure/websocket"
	"deltarelay/internal/infrastructure/worker"
)

// init() automatically registers the BitMEX connector factory
func init() {
	connector.Register(Name, func(cfg *config.Config, sinks connector.Sinks) (port.Connector, error) {
		cc, err := FromConfig(cfg)
		if err != nil {
			return nil, err
		}
		cc.Publisher = sinks.Publisher
		if sinks.Archive != nil {
			cc.Archive = sinks.Archive
		}
		cc.Metrics = sinks.Metrics
		return New(cc)
	})
}

// FromConfig 以 DefaultSettings 为基础，覆盖配置文件中给出的字段
func FromConfig(cfg *config.Config) (ConnectorConfig, error) {
	cc := DefaultSettings()
	c := cfg.Connector

	if c.WsURL != "" {
		cc.Host = c.WsURL
	}
	if c.RestURL != "" {
		cc.RestURL = c.RestURL
	}
	if c.Topic != "" {
		cc.Topic = c.Topic
	}
	if len(c.Pairs) > 0 {
		pairs, err := cfg.AssetPairs(domain.BitMEX)
		if err != nil {
			return cc, err
		}
		cc.MetaData.AssetPairs = pairs
	}
	start, end, err := cfg.Window()
	if err != nil {
		return cc, err
	}
	cc.MetaData.Start, cc.MetaData.End = start, end

	if c.SingleChannels != nil {
		cc.SingleChannels = c.SingleChannels
	}
	if c.DualChannels != nil {
		cc.DualChannels = c.DualChannels
	}
	if c.InactivityTimeoutSec > 0 {
		cc.InactivityTimeout = cfg.InactivityTimeout()
		cc.PingInterval = 0
	}
	cc.RefreshOnReconnect = c.RefreshOnReconnect
	cc.Retry = websocket.RetryConfig{
		MaxRetries: c.Retry.MaxRetries,
		InitialDel: time.Duration(c.Retry.InitialDelayMs) * time.Millisecond,
		MaxDelay:   time.Duration(c.Retry.MaxDelayMs) * time.Millisecond,
	}

	cc.Workers.Workers = cfg.Workers.Count
	cc.Workers.QueueSize = cfg.Workers.QueueSize
	cc.Workers.Overflow = worker.Block
	if cfg.Workers.Overflow == config.OverflowDropOldest {
		cc.Workers.Overflow = worker.DropOldest
	}

	cc.Sink.Addr = cfg.Redis.Addr
	cc.Sink.Password = cfg.Redis.Password
	cc.Sink.DB = cfg.Redis.DB
	cc.Instruments = NewInstrumentClient(cc.RestURL)
	return cc, nil
}
