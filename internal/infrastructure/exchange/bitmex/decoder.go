package bitmex

import (
	"fmt"

	"github.com/shopspring/decimal"

	"deltarelay/internal/domain"
)

// BitMEX 把价格编码进 orderBookL2 的 id：
//
//	price = (BasePerSymbol*index - id) * tickSize
//
// 参考合约 XBTUSD 始终可交易，使用固定偏移与价位，不依赖索引表。
const (
	BasePerSymbol   uint64 = 100_000_000
	ReferenceSymbol        = "XBTUSD"
	referenceOffset uint64 = 8_800_000_000
)

// ReferencePair 参考合约对应的交易对
var ReferencePair = domain.AssetPair{domain.BTC, domain.USD}

var referenceTick = decimal.New(1, -2)

// DecodePrice 由合约与 id 计算价格
func DecodePrice(tables *RuntimeTables, symbol string, id uint64) (decimal.Decimal, error) {
	offset, tick := referenceOffset, referenceTick
	if symbol != ReferenceSymbol {
		index, ts, ok := tables.Lookup(symbol)
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
		}
		offset, tick = BasePerSymbol*index, ts
	}
	if id > offset {
		return decimal.Zero, fmt.Errorf("%w: %s id %d exceeds offset %d", ErrInvalidID, symbol, id, offset)
	}
	return decimal.NewFromInt(int64(offset - id)).Mul(tick), nil
}
