// Package discardpool bounds the concurrency of recursive subpage
// teardown so a large merged subtree does not make the evicting session
// pay for every absorbed child's page_out/track_wrapup serially.
//
// Grounded on docdb's internal/docdb/healing.go, which lazily builds an
// ants.PoolWithFunc sized from config and recovers worker panics with
// ants.WithPanicHandler rather than letting one bad teardown take the
// process down. Unlike healing.go's tasks, discard's recurse: a worker
// tearing down an internal subpage submits its own children's teardown
// back onto this same pool and then blocks in Batch.Wait for them. A
// blocking pool (ants's default) can saturate every worker this way - one
// per level of a deep merged subtree, or one per sibling at a wide
// internal page - with each one parked inside Invoke waiting for a free
// worker that will never come free. WithNonblocking(true) is required so
// a saturated pool fails Invoke immediately instead of blocking, letting
// Batch.Submit's inline fallback run the task on the caller's own
// goroutine instead of wedging.
package discardpool

import (
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kartikbazzad/bunbase/bunder-evict/internal/logger"
)

// Pool runs discard tasks (page_out + track_wrapup for one subpage) on a
// bounded goroutine pool and lets the caller wait for a batch to drain.
type Pool struct {
	mu   sync.Mutex
	pool *ants.PoolWithFunc
	size int
}

type task struct {
	fn func()
	wg *sync.WaitGroup
}

// New creates a discard pool with the given worker capacity. Capacity <=
// 0 falls back to 1 (always at least one worker, never unbounded).
func New(capacity int) (*Pool, error) {
	if capacity <= 0 {
		capacity = 1
	}
	p := &Pool{size: capacity}
	pool, err := ants.NewPoolWithFunc(capacity, func(arg any) {
		t := arg.(*task)
		defer t.wg.Done()
		t.fn()
	}, ants.WithPanicHandler(func(v any) {
		logger.Get().Error("discard worker panic", "value", v)
	}), ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

// Batch returns a handle for submitting a group of discard tasks and
// waiting for all of them to complete before the evictor returns control
// to its caller - parallel teardown, synchronous completion.
func (p *Pool) Batch() *Batch {
	return &Batch{pool: p}
}

// Batch accumulates discard tasks for one recursive discard call.
type Batch struct {
	pool *Pool
	wg   sync.WaitGroup
}

// Submit runs fn on the pool, falling back to running it inline if the
// pool is saturated or submission otherwise fails - a discard must never
// be dropped.
func (b *Batch) Submit(fn func()) {
	b.wg.Add(1)
	t := &task{fn: fn, wg: &b.wg}
	if err := b.pool.pool.Invoke(t); err != nil {
		t.wg.Done()
		fn()
	}
}

// Wait blocks until every task submitted to this batch has completed.
func (b *Batch) Wait() {
	b.wg.Wait()
}

// Release frees the pool's workers. Call on engine shutdown.
func (p *Pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.Release()
	}
}

// Cap reports the pool's configured worker capacity.
func (p *Pool) Cap() int {
	return p.size
}
