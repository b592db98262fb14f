package bitmex

// 快照 action，不归档
const (
	actionNone    = ""
	actionPartial = "partial"
	actionTrade   = "Trade"

	tableTrade = "trade"
	sideBuy    = "Buy"
)

// subscription {"op":"subscribe","args":["orderBookL2:XBTUSD", ...]}
type subscription struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// bitmexMessage 一帧推送，可能是快照也可能是增量
type bitmexMessage struct {
	Table  string       `json:"table"`
	Action string       `json:"action"`
	Data   []bitmexData `json:"data"`
}

type bitmexData struct {
	Symbol string   `json:"symbol"`
	Side   string   `json:"side"`
	ID     *uint64  `json:"id"`    // 价格编码在 id 中
	Size   *float64 `json:"size"`  // 缺失表示该价位被移除
	Price  *float64 `json:"price"` // 只在 insert 与快照中出现
}

func isSnapshot(action string) bool {
	return action == actionNone || action == actionPartial
}
