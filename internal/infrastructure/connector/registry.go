package connector

import (
	"sort"

	"github.com/rs/zerolog/log"

	"deltarelay/internal/application/port"
	"deltarelay/internal/infrastructure/config"
	"deltarelay/internal/infrastructure/metrics"
)

// Sinks 由容器创建、注入到各交易所采集器的输出端
type Sinks struct {
	Publisher port.Publisher
	Archive   port.Archive
	Metrics   *metrics.Connector
}

// Factory 根据配置创建采集器
type Factory func(cfg *config.Config, sinks Sinks) (port.Connector, error)

// registry maps exchange names to their connector factories
var registry = make(map[string]Factory)

// Register 注册交易所采集器工厂，由各交易所包的 init() 调用
func Register(exchangeName string, factory Factory) {
	if factory == nil {
		log.Warn().Str("exchange", exchangeName).Msg("invalid connector factory")
		return
	}
	if _, exists := registry[exchangeName]; exists {
		log.Warn().Str("exchange", exchangeName).Msg("connector factory already registered, overwriting")
	}
	registry[exchangeName] = factory
	log.Debug().Str("exchange", exchangeName).Msg("connector factory registered")
}

// Get 获取已注册的采集器工厂
func Get(exchangeName string) (Factory, bool) {
	factory, ok := registry[exchangeName]
	return factory, ok
}

// Names 已注册的交易所
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
