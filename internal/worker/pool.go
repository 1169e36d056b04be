package worker

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/baharkarakas/pix-reconciler/internal/metrics"
)

type task func()

// Pool runs side effects (event publication) off the request path.
type Pool struct {
	wg       sync.WaitGroup
	jobs     chan task
	stopOnce sync.Once
}

const queueSize = 1024

// ErrQueueFull is returned by Submit instead of blocking the caller.
var ErrQueueFull = errors.New("worker queue full")

func NewPool(n int) *Pool { return NewPoolSize(n, queueSize) }

// NewPoolSize is NewPool with an explicit queue capacity.
func NewPoolSize(n, size int) *Pool {
	if n <= 0 {
		n = 1
	}
	if size < 0 {
		size = 0
	}
	p := &Pool{jobs: make(chan task, size)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
				run(job)
			}
		}()
	}
	return p
}

// Kuyruk doluysa beklemez, ErrQueueFull döner
func (p *Pool) Submit(f task) error {
	select {
	case p.jobs <- f:
		metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop drains queued jobs and waits for the workers. Safe to call twice.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.jobs) })
	p.wg.Wait()
}

func run(job task) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("worker panic", "err", rec)
		}
	}()
	job()
}
