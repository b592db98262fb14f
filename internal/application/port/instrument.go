package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// Instrument REST 侧通道返回的合约元数据
type Instrument struct {
	Symbol    string          `json:"symbol"`
	Timestamp string          `json:"timestamp"`
	TickSize  decimal.Decimal `json:"tickSize"`
}

// InstrumentSource 获取交易所当前合约列表，返回顺序即合约索引
type InstrumentSource interface {
	Instruments(ctx context.Context) ([]Instrument, error)
}
