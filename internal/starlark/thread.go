package starlark

import (
	"sync"

	"go.starlark.net/starlark"
)

// ThreadPool recycles Starlark threads between evaluations.
type ThreadPool struct {
	mu       sync.Mutex
	threads  []*starlark.Thread
	maxSize  int
	maxSteps uint64
}

// NewThreadPool creates a pool that keeps at most maxSize idle threads.
// maxSteps bounds the computation of one evaluation; 0 means unbounded.
func NewThreadPool(maxSize int, maxSteps uint64) *ThreadPool {
	if maxSize <= 0 {
		maxSize = 10 // default pool size
	}
	return &ThreadPool{
		threads:  make([]*starlark.Thread, 0, maxSize),
		maxSize:  maxSize,
		maxSteps: maxSteps,
	}
}

// Get retrieves an idle thread or creates a new one, ready to run.
func (p *ThreadPool) Get(name string) *starlark.Thread {
	p.mu.Lock()
	var thread *starlark.Thread
	if n := len(p.threads); n > 0 {
		thread = p.threads[n-1]
		p.threads = p.threads[:n-1]
	}
	p.mu.Unlock()

	if thread == nil {
		thread = &starlark.Thread{
			Print: func(_ *starlark.Thread, _ string) {},
		}
	}
	thread.Name = name
	thread.Steps = 0
	thread.Uncancel()
	if p.maxSteps > 0 {
		thread.SetMaxExecutionSteps(p.maxSteps)
	}
	return thread
}

// Put returns a thread to the pool. Threads beyond the pool size are
// discarded.
func (p *ThreadPool) Put(thread *starlark.Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) < p.maxSize {
		thread.Name = ""
		p.threads = append(p.threads, thread)
	}
}

// Size returns the number of idle threads.
func (p *ThreadPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.threads)
}
