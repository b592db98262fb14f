package port

import (
	"context"

	"deltarelay/internal/domain"
)

// Archive 行情归档存储，按 "{venue}_{symbol}" 命名
type Archive interface {
	Exists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, name string) error
	Append(ctx context.Context, name string, deltas []domain.Delta) error

	// Connection management
	Close() error
}
