package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"deltarelay/internal/application/port"
)

// Sink 未启用 redis 时的发布端：每条消息打印一行 "<topic> <payload>"
type Sink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewSink() port.Publisher { return &Sink{out: os.Stdout} }

// NewSinkTo 输出到指定 writer
func NewSinkTo(w io.Writer) *Sink { return &Sink{out: w} }

func (s *Sink) Publish(ctx context.Context, topic string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "%s %s\n", topic, payload)
	return err
}

func (s *Sink) Close() error { return nil }
