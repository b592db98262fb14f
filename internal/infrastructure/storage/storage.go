package storage

import (
	"context"
	"fmt"
	"sync"

	"deltarelay/internal/application/port"
	"deltarelay/internal/domain"
)

// ArchiveName 归档名称 "{venue}_{symbol}"，例如 bitmex_XBTUSD
func ArchiveName(venue, symbol string) string {
	return fmt.Sprintf("%s_%s", venue, symbol)
}

// InMemoryArchive 内存归档，保留全部 delta，仅用于测试
type InMemoryArchive struct {
	mu       sync.RWMutex
	archives map[string][]domain.Delta
}

func NewInMemoryArchive() *InMemoryArchive {
	return &InMemoryArchive{archives: make(map[string][]domain.Delta)}
}

func (a *InMemoryArchive) Exists(ctx context.Context, name string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.archives[name]
	return ok, nil
}

func (a *InMemoryArchive) Create(ctx context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.archives[name]; !ok {
		a.archives[name] = make([]domain.Delta, 0)
	}
	return nil
}

func (a *InMemoryArchive) Append(ctx context.Context, name string, deltas []domain.Delta) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur, ok := a.archives[name]
	if !ok {
		return fmt.Errorf("archive %s does not exist", name)
	}
	a.archives[name] = append(cur, deltas...)
	return nil
}

// Deltas 归档内容的副本
func (a *InMemoryArchive) Deltas(name string) []domain.Delta {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]domain.Delta(nil), a.archives[name]...)
}

func (a *InMemoryArchive) Close() error {
	return nil
}

var _ port.Archive = (*InMemoryArchive)(nil)

// DiscardArchive 未配置归档后端时使用：归档视为已存在，追加直接丢弃
type DiscardArchive struct{}

func NewDiscardArchive() port.Archive { return DiscardArchive{} }

func (DiscardArchive) Exists(ctx context.Context, name string) (bool, error) { return true, nil }

func (DiscardArchive) Create(ctx context.Context, name string) error { return nil }

func (DiscardArchive) Append(ctx context.Context, name string, deltas []domain.Delta) error {
	return nil
}

func (DiscardArchive) Close() error { return nil }
