package common

import (
	"context"
	"sync"
)

// ParallelPool bounds the number of concurrently running jobs and lets the
// owner wait for all of them.
type ParallelPool struct {
	waitfor sync.WaitGroup
	slots   chan struct{}
}

func NewParallelPool(parallel int) *ParallelPool {
	if parallel <= 0 {
		parallel = 1
	}
	return &ParallelPool{
		slots: make(chan struct{}, parallel),
	}
}

// Go runs f on a new goroutine once a slot is free. Wait accounts for f from
// the moment Go returns, including the time spent queued for a slot.
func (p *ParallelPool) Go(f func()) {
	p.waitfor.Add(1)
	go func() {
		defer p.waitfor.Done()
		p.slots <- struct{}{}
		defer func() { <-p.slots }()
		f()
	}()
}

func (p *ParallelPool) Running() int {
	return len(p.slots)
}

func (p *ParallelPool) Wait() {
	p.waitfor.Wait()
}

// WaitContext is Wait bounded by ctx. It reports whether all jobs finished.
func (p *ParallelPool) WaitContext(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		p.waitfor.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
