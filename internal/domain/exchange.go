package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedAsset 资产在该交易所没有对应的符号
var ErrUnsupportedAsset = errors.New("unsupported asset")

// Exchange 支持的交易所，同时作为数据来源的唯一标识
type Exchange int

const (
	Poloniex Exchange = iota
	GDAX
	BitMEX
)

// venuePolicy 每个交易所固定的交易对格式规则与能力
type venuePolicy struct {
	name        string
	marketFirst bool
	separator   string
	symbols     map[Asset]string
	spot        bool
	options     bool
	futures     bool
}

var venues = map[Exchange]venuePolicy{
	Poloniex: {
		name:        "poloniex",
		marketFirst: true,
		separator:   "-",
		symbols: map[Asset]string{
			BTC:  "BTC",
			ETH:  "ETH",
			LTC:  "LTC",
			USDT: "USDT",
		},
		spot: true,
	},
	GDAX: {
		name:        "gdax",
		marketFirst: false,
		separator:   "-",
		symbols: map[Asset]string{
			BTC:  "BTC",
			ETH:  "ETH",
			LTC:  "LTC",
			USD:  "USD",
			USDC: "USDC",
		},
		spot: true,
	},
	BitMEX: {
		name:        "bitmex",
		marketFirst: false,
		separator:   "",
		symbols: map[Asset]string{
			BTC: "XBT",
			ETH: "ETH",
			LTC: "LTC",
			USD: "USD",
		},
		options: true,
		futures: true,
	},
}

// SupportedExchanges 返回支持的交易所名称
func SupportedExchanges() []string {
	return []string{
		venues[Poloniex].name,
		venues[GDAX].name,
		venues[BitMEX].name,
	}
}

// ParseExchange "bitmex" -> BitMEX
func ParseExchange(s string) (Exchange, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	for e, p := range venues {
		if p.name == n {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown exchange %q", s)
}

func (e Exchange) String() string {
	if p, ok := venues[e]; ok {
		return p.name
	}
	return fmt.Sprintf("Exchange(%d)", int(e))
}

// MarketFirst 交易对中市场是否在前（USD-BTC 为 true，BTC-USD 为 false）
func (e Exchange) MarketFirst() bool { return venues[e].marketFirst }

// Separator 交易对分隔符，无分隔符时为空字符串
func (e Exchange) Separator() string { return venues[e].separator }

// SupportsSpot 是否支持无合约的普通现货买卖
func (e Exchange) SupportsSpot() bool { return venues[e].spot }

// SupportsOptions 是否支持期权
func (e Exchange) SupportsOptions() bool { return venues[e].options }

// SupportsFutures 是否支持期货
func (e Exchange) SupportsFutures() bool { return venues[e].futures }

// NormalizeAsset 资产在交易所上的写法，例如 BTC 在 BitMEX 上是 XBT。
// 第二个返回值为 false 表示该交易所不支持此资产。
func (e Exchange) NormalizeAsset(a Asset) (string, bool) {
	s, ok := venues[e].symbols[a]
	return s, ok
}
