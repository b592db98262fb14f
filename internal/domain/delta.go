package domain

// 事件标志位：盘口方向 | 成交/盘口更新
const (
	EventAsk    uint8 = 0
	EventBid    uint8 = 1 << 0
	EventUpdate uint8 = 0
	EventTrade  uint8 = 1 << 1
)

// Delta 统一后的一条盘口更新或成交
type Delta struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Size   float64 `json:"size"`  // 0 表示该价位被移除
	Seq    uint64  `json:"seq"`   // 连接器接收序号，同一帧内的 delta 相同
	Event  uint8   `json:"event"` // EventBid/EventAsk 与 EventTrade/EventUpdate 的组合
	Ts     float64 `json:"ts"`    // 接收时间，unix 秒（毫秒精度）
}

// Event 组合方向与类型
func Event(isBid, isTrade bool) uint8 {
	var ev uint8
	if isBid {
		ev |= EventBid
	}
	if isTrade {
		ev |= EventTrade
	}
	return ev
}

func (d Delta) IsBid() bool { return d.Event&EventBid != 0 }
func (d Delta) IsTrade() bool { return d.Event&EventTrade != 0 }
