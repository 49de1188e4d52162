// Package primary serializes work onto the single authoritative context that
// owns live world and shop state.
package primary

import (
	"context"
	"errors"
	"fmt"
)

var ErrStopped = errors.New("primary loop stopped")

// Executor runs fn on the primary context and waits for it.
type Executor interface {
	Do(ctx context.Context, fn func() error) error
}

type task struct {
	fn   func() error
	done chan error
}

// Loop is an Executor backed by one goroutine draining a queue.
type Loop struct {
	queue chan task
	stop  chan struct{}
}

func NewLoop(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Loop{
		queue: make(chan task, queueSize),
		stop:  make(chan struct{}),
	}
}

// Run drains the queue until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case t := <-l.queue:
			t.done <- runSafe(t.fn)
		}
	}
}

func (l *Loop) Stop() { close(l.stop) }

func (l *Loop) Do(ctx context.Context, fn func() error) error {
	select {
	case <-l.stop:
		return ErrStopped
	default:
	}
	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stop:
		return ErrStopped
	case l.queue <- t:
	}
	select {
	case <-ctx.Done():
		// fn still runs; its result is discarded.
		return ctx.Err()
	case err := <-t.done:
		return err
	}
}

// Inline runs fn in the caller's goroutine. For tools and tests that own
// their state outright.
type Inline struct{}

func (Inline) Do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return runSafe(fn)
}

func runSafe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("primary task panic: %v", r)
		}
	}()
	return fn()
}
