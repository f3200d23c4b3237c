// Package worker runs display read-back off the UI goroutine. The pool
// has a single-slot input queue for strict back-pressure: a submit while
// a capture is outstanding is refused, never queued.
package worker

import (
	"context"
	"image"
	"log"
	"sync"
)

// CaptureFunc performs the actual (possibly slow) pixel read-back.
type CaptureFunc func() (*image.RGBA, error)

// ResultCallback is invoked on completion from a worker goroutine. The
// event loop passes a closure that posts back onto itself.
type ResultCallback func(img *image.RGBA, err error)

type job struct {
	ctx     context.Context
	capture CaptureFunc
	cb      ResultCallback
}

// Pool is a fixed-size capture executor with a 1-slot queue.
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup
}

// New creates a pool. Captures are serialized, so size defaults to 1.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				img, err := runWithContext(j.ctx, j.capture)
				j.cb(img, err)
			}
		}()
	}
}

// Submit enqueues a capture if the single-slot queue is free. Returns
// false if dropped.
func (p *Pool) Submit(ctx context.Context, capture CaptureFunc, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, capture: capture, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// runWithContext honors ctx cancellation while the platform capture call
// runs; the underlying call cannot be interrupted, so a cancelled context
// abandons its result.
func runWithContext(ctx context.Context, capture CaptureFunc) (*image.RGBA, error) {
	if ctx == nil || ctx.Done() == nil {
		return capture()
	}
	type res struct {
		img *image.RGBA
		err error
	}
	resCh := make(chan res, 1)
	go func() {
		img, err := capture()
		resCh <- res{img: img, err: err}
	}()
	select {
	case r := <-resCh:
		return r.img, r.err
	case <-ctx.Done():
		log.Printf("worker: capture abandoned: %v", ctx.Err())
		return nil, ctx.Err()
	}
}
