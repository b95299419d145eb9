package scanner

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Pool is a fixed-width goroutine pool. Submit blocks while all workers are
// busy, so at most Size tasks run at once.
type Pool struct {
	pool *ants.Pool
	wg   sync.WaitGroup
}

// NewPool creates a pool with size workers. A size below 1 means 1.
func NewPool(size int) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	return &Pool{pool: p}, nil
}

// Submit queues task, blocking until a worker is free.
func (p *Pool) Submit(task func()) error {
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		task()
	})
	if err != nil {
		p.wg.Done()
		return err
	}
	return nil
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Release frees the pool's workers. The pool cannot be reused.
func (p *Pool) Release() {
	p.pool.Release()
}

// ForEach runs fn for every item with at most width concurrent calls and
// waits for them. Once ctx is done no further items are started.
func ForEach[T any](ctx context.Context, width int, items []T, fn func(T)) error {
	pool, err := NewPool(width)
	if err != nil {
		return err
	}
	defer pool.Release()

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		item := item
		if err := pool.Submit(func() { fn(item) }); err != nil {
			pool.Wait()
			return fmt.Errorf("submitting task: %w", err)
		}
	}

	pool.Wait()
	return nil
}
