package port

import "context"

// Connector 一个交易所的行情采集器
type Connector interface {
	Name() string
	Run(ctx context.Context) error
	State() string
}
