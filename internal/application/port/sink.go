package port

import "context"

// Publisher 发布订阅输出端（只发布）
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}
