package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Job is a unit of work executed by the pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a job produces
type Result interface {
	GetError() error
}

// PanicResult replaces the result of a job that panicked
type PanicResult struct {
	Value any
}

// GetError describes the recovered panic
func (r *PanicResult) GetError() error {
	return fmt.Errorf("job panicked: %v", r.Value)
}

// Pool runs jobs on a fixed number of goroutines
type Pool struct {
	workers  int
	progress func(done, total int)
}

// PoolOption configures a Pool
type PoolOption func(*Pool)

// WithProgress calls fn after every finished job. Calls are serialised.
func WithProgress(fn func(done, total int)) PoolOption {
	return func(p *Pool) { p.progress = fn }
}

// NewPool creates a pool with the given number of workers (at least one)
func NewPool(workers int, opts ...PoolOption) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{workers: workers}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Workers returns the pool size
func (p *Pool) Workers() int {
	return p.workers
}

// Run executes jobs and returns their results at the index of their job.
// Once ctx is done no further job starts and the slots of jobs that never
// ran stay nil.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	indices := make(chan int)
	var (
		wg         sync.WaitGroup
		done       atomic.Int32
		progressMu sync.Mutex
	)

	workers := min(p.workers, len(jobs))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				if ctx.Err() != nil {
					continue
				}
				results[i] = execute(ctx, jobs[i])
				n := int(done.Add(1))
				if p.progress != nil {
					progressMu.Lock()
					p.progress(n, len(jobs))
					progressMu.Unlock()
				}
			}
		}()
	}

feed:
	for i := range jobs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case indices <- i:
		}
	}
	close(indices)
	wg.Wait()

	return results
}

func execute(ctx context.Context, job Job) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = &PanicResult{Value: r}
		}
	}()
	return job.Execute(ctx)
}
