package parallel

import (
	"context"
	"runtime"
	"sync"
)

// Pool runs indexed tasks over a fixed number of goroutines. A failing task
// never cancels its siblings; each error is reported at the task's index.
type Pool struct {
	workers int
}

// NewPool creates a pool with the given number of workers.
// workers <= 0 uses one worker per CPU.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers}
}

// Workers returns the number of goroutines the pool runs
func (p *Pool) Workers() int {
	return p.workers
}

// Run calls fn(ctx, i) for every i in [0, n) and returns the per-task errors.
// Once ctx is done no new tasks are dispatched and the remaining ones report ctx.Err().
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	for range min(p.workers, n) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = fn(ctx, i)
			}
		}()
	}

	next := 0
dispatch:
	for ; next < n; next++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- next:
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < n; i++ {
		errs[i] = ctx.Err()
	}

	return errs
}

// Map applies fn to every item on the pool and returns results and errors in input order
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, []error) {
	results := make([]R, len(items))
	errs := p.Run(ctx, len(items), func(ctx context.Context, i int) error {
		r, err := fn(ctx, items[i])
		results[i] = r
		return err
	})
	return results, errs
}
