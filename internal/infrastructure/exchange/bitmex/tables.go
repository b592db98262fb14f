package bitmex

import (
	"sync"

	"github.com/shopspring/decimal"

	"deltarelay/internal/application/port"
)

// RuntimeTables 合约索引表与最小变动价位表。
// 只在连接建立时整体替换，解码 goroutine 并发读取；读者不会看到填充到一半的表。
type RuntimeTables struct {
	mu       sync.RWMutex
	indexes  map[string]uint64
	tickSize map[string]decimal.Decimal
}

func NewRuntimeTables() *RuntimeTables {
	return &RuntimeTables{
		indexes:  make(map[string]uint64),
		tickSize: make(map[string]decimal.Decimal),
	}
}

// Replace 用 REST 快照整体替换两张表，合约索引为其在列表中的位置
func (t *RuntimeTables) Replace(instruments []port.Instrument) {
	indexes := make(map[string]uint64, len(instruments))
	ticks := make(map[string]decimal.Decimal, len(instruments))
	for i, inst := range instruments {
		indexes[inst.Symbol] = uint64(i)
		ticks[inst.Symbol] = inst.TickSize
	}

	t.mu.Lock()
	t.indexes = indexes
	t.tickSize = ticks
	t.mu.Unlock()
}

// Lookup 返回合约的索引与最小变动价位
func (t *RuntimeTables) Lookup(symbol string) (index uint64, tick decimal.Decimal, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	index, ok = t.indexes[symbol]
	if !ok {
		return 0, decimal.Zero, false
	}
	return index, t.tickSize[symbol], true
}

func (t *RuntimeTables) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.indexes)
}

// Loaded 是否已经从 REST 填充过
func (t *RuntimeTables) Loaded() bool { return t.Len() > 0 }
