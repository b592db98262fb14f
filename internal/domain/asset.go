package domain

import (
	"fmt"
	"strings"
)

// Asset 统一的资产枚举（包含法币，法币在多数交易所都是合法的计价市场）
type Asset int

const (
	BTC Asset = iota
	ETH
	LTC
	USDT
	USDC

	// 法币
	USD
	JPY
	CNY
	KRW
	EUR
	GBP
	CAD
	AUD
)

var assetNames = map[Asset]string{
	BTC:  "BTC",
	ETH:  "ETH",
	LTC:  "LTC",
	USDT: "USDT",
	USDC: "USDC",
	USD:  "USD",
	JPY:  "JPY",
	CNY:  "CNY",
	KRW:  "KRW",
	EUR:  "EUR",
	GBP:  "GBP",
	CAD:  "CAD",
	AUD:  "AUD",
}

func (a Asset) String() string {
	if s, ok := assetNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Asset(%d)", int(a))
}

// IsFiat 是否为法币
func (a Asset) IsFiat() bool {
	return a >= USD && a <= AUD
}

// ParseAsset 将 "btc" / "BTC" 解析为 Asset
func ParseAsset(s string) (Asset, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for a, name := range assetNames {
		if name == u {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown asset %q", s)
}

// OptionsAsset 期权资产，支持期权的资产很少，单独分组
type OptionsAsset int

const (
	OptionsBTC OptionsAsset = iota
	OptionsETH
)

// FuturesAsset 期货资产
type FuturesAsset int

const (
	FuturesBTC FuturesAsset = iota
	FuturesETH
)
