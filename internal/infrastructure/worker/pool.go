package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed 池已关闭
var ErrPoolClosed = errors.New("worker pool closed")

// Overflow 队列满时的策略
type Overflow int

const (
	// Block 阻塞生产者（背压传导到读 goroutine）
	Block Overflow = iota
	// DropOldest 丢弃队列中最旧的任务
	DropOldest
)

type Job func()

type Options struct {
	Workers   int
	QueueSize int
	Overflow  Overflow
	OnDrop    func() // 每丢弃一个任务调用一次，可为 nil
}

// Pool 固定数量 worker + 有界队列
type Pool struct {
	opts    Options
	queue   chan Job
	quit    chan struct{}
	mu      sync.RWMutex
	closed  bool
	once    sync.Once
	wg      sync.WaitGroup
	dropped atomic.Int64
}

func NewPool(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	p := &Pool{
		opts:  opts,
		queue: make(chan Job, opts.QueueSize),
		quit:  make(chan struct{}),
	}
	p.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for job := range p.queue {
		job()
	}
}

// Submit 提交任务。Block 策略下队列满时等待，直到 ctx 取消或池关闭。
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	if p.opts.Overflow == DropOldest {
		for {
			select {
			case p.queue <- job:
				return nil
			default:
			}
			select {
			case <-p.queue:
				p.drop()
			default:
			}
		}
	}

	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrPoolClosed
	}
}

func (p *Pool) drop() {
	p.dropped.Add(1)
	if p.opts.OnDrop != nil {
		p.opts.OnDrop()
	}
}

// Depth 当前排队任务数
func (p *Pool) Depth() int { return len(p.queue) }

// Dropped 累计丢弃任务数
func (p *Pool) Dropped() int64 { return p.dropped.Load() }

// Close 停止接收新任务，等待已排队任务执行完毕
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.quit)
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
		p.wg.Wait()
	})
}
