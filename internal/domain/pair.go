package domain

import (
	"fmt"
	"strings"
)

// AssetPair 有序的 [资产, 市场] 二元组，例如 {BTC, USD}
type AssetPair [2]Asset

func (p AssetPair) String() string {
	return p[0].String() + "/" + p[1].String()
}

// FormatPair 按交易所规则格式化交易对。
// 任一资产不被交易所支持时返回 ErrUnsupportedAsset，不会返回半截字符串。
func FormatPair(e Exchange, p AssetPair) (string, error) {
	first, second := p[0], p[1]
	if e.MarketFirst() {
		first, second = second, first
	}

	a, ok := e.NormalizeAsset(first)
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrUnsupportedAsset, first, e)
	}
	b, ok := e.NormalizeAsset(second)
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrUnsupportedAsset, second, e)
	}

	var sb strings.Builder
	sb.Grow(16)
	sb.WriteString(a)
	sb.WriteString(e.Separator())
	sb.WriteString(b)
	return sb.String(), nil
}

// FormatPairs 批量格式化，保持输入顺序。
// 遇到第一个不支持的资产即返回错误（附带下标），与 FormatPair 的策略一致。
func FormatPairs(e Exchange, pairs []AssetPair) ([]string, error) {
	out := make([]string, 0, len(pairs))
	for i, p := range pairs {
		s, err := FormatPair(e, p)
		if err != nil {
			return nil, fmt.Errorf("pair %d (%s): %w", i, p, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// ParseAssetPair ["BTC","USD"] -> AssetPair
func ParseAssetPair(parts []string) (AssetPair, error) {
	if len(parts) != 2 {
		return AssetPair{}, fmt.Errorf("asset pair needs 2 assets, got %d", len(parts))
	}
	a, err := ParseAsset(parts[0])
	if err != nil {
		return AssetPair{}, err
	}
	b, err := ParseAsset(parts[1])
	if err != nil {
		return AssetPair{}, err
	}
	return AssetPair{a, b}, nil
}
