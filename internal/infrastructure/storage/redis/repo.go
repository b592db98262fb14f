package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"deltarelay/internal/application/port"
	"deltarelay/internal/domain"
)

// Archive 使用 Redis：SET 记录已创建的归档，每个归档一个 Stream
type Archive struct {
	rdb      *redis.Client
	prefix   string
	keyIndex string // prefix + ":archives"
	maxLen   int64
}

// New 复用已有 client，Close 不关闭它
func New(rdb *redis.Client, prefix string, maxLen int64) *Archive {
	return &Archive{
		rdb:      rdb,
		prefix:   prefix,
		keyIndex: prefix + ":archives",
		maxLen:   maxLen,
	}
}

func (a *Archive) streamKey(name string) string {
	return fmt.Sprintf("%s:archive:%s", a.prefix, name)
}

func (a *Archive) Exists(ctx context.Context, name string) (bool, error) {
	return a.rdb.SIsMember(ctx, a.keyIndex, name).Result()
}

func (a *Archive) Create(ctx context.Context, name string) error {
	return a.rdb.SAdd(ctx, a.keyIndex, name).Err()
}

func (a *Archive) Append(ctx context.Context, name string, deltas []domain.Delta) error {
	if len(deltas) == 0 {
		return nil
	}
	pipe := a.rdb.Pipeline()
	for _, d := range deltas {
		b, err := json.Marshal(d)
		if err != nil {
			return err
		}
		// XADD <stream> MAXLEN ~ n * delta <json>
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: a.streamKey(name),
			MaxLen: a.maxLen,
			Approx: a.maxLen > 0,
			Values: map[string]any{"delta": string(b)},
		})
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (a *Archive) Close() error { return nil }

var _ port.Archive = (*Archive)(nil)
