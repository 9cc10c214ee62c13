// internal/pool/pool.go

// Package pool provides a bounded-concurrency job pool. Jobs are admitted in
// FIFO order and at most `limit` jobs execute at any moment. Submission never
// blocks the caller, and a failing job does not affect any other job.
package pool

import "sync"

// Result carries the outcome of a submitted job.
type Result[T any] struct {
	Value T
	Err   error
}

// Pool is a FIFO job queue capped at a fixed number of in-flight jobs.
// The zero value is not usable; use New.
type Pool struct {
	mu      sync.Mutex
	limit   int
	running int
	queue   []func()
}

// New creates a pool that runs at most limit jobs concurrently.
// A limit below 1 is treated as 1.
func New(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{limit: limit}
}

// Submit schedules fn for execution and returns a channel that receives its
// outcome once it completes. The channel is buffered, so the result can be
// ignored without leaking a goroutine.
func Submit[T any](p *Pool, fn func() (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)
	p.enqueue(func() {
		value, err := fn()
		out <- Result[T]{Value: value, Err: err}
	})
	return out
}

// Run schedules fn and blocks until it has executed, returning its outcome.
func Run[T any](p *Pool, fn func() (T, error)) (T, error) {
	result := <-Submit(p, fn)
	return result.Value, result.Err
}

// Do schedules fn and blocks until it has executed, returning its error.
func (p *Pool) Do(fn func() error) error {
	_, err := Run(p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (p *Pool) enqueue(job func()) {
	p.mu.Lock()
	p.queue = append(p.queue, job)
	p.mu.Unlock()
	p.dispatch()
}

// dispatch admits queued jobs until the in-flight cap is reached. It is called
// on every submission and every completion, so the pool drains itself.
func (p *Pool) dispatch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.running < p.limit && len(p.queue) > 0 {
		job := p.queue[0]
		p.queue = p.queue[1:]
		p.running++
		go func() {
			defer func() {
				p.mu.Lock()
				p.running--
				p.mu.Unlock()
				p.dispatch()
			}()
			job()
		}()
	}
}
