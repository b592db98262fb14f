package composite

import (
	"context"

	"deltarelay/internal/application/port"
	"deltarelay/internal/domain"
)

// Archive 扇出到多个归档
type Archive struct {
	archives []port.Archive
}

func New(archives ...port.Archive) *Archive {
	// nil archives are allowed; filter in constructor for safety
	out := make([]port.Archive, 0, len(archives))
	for _, a := range archives {
		if a != nil {
			out = append(out, a)
		}
	}
	return &Archive{archives: out}
}

// Len 实际归档数量
func (c *Archive) Len() int { return len(c.archives) }

// Exists 所有归档都存在才返回 true，缺任何一个都需要 Create
func (c *Archive) Exists(ctx context.Context, name string) (bool, error) {
	if len(c.archives) == 0 {
		return false, nil
	}
	for _, a := range c.archives {
		ok, err := a.Exists(ctx, name)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (c *Archive) Create(ctx context.Context, name string) error {
	var firstErr error
	for _, a := range c.archives {
		if err := a.Create(ctx, name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Archive) Append(ctx context.Context, name string, deltas []domain.Delta) error {
	var firstErr error
	for _, a := range c.archives {
		if err := a.Append(ctx, name, deltas); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Archive) Close() error {
	var firstErr error
	for _, a := range c.archives {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.Archive = (*Archive)(nil)
