package fetch

import (
	"context"
	"sync"
)

// runPool runs work over jobs on a fixed number of goroutines. Results are
// handed to collect on the calling goroutine, one at a time, in completion
// order. If collect returns an error, no further jobs are started, the
// remaining in-flight results are discarded and the error is returned.
func runPool[J, R any](ctx context.Context, workers int, jobs []J, work func(context.Context, J) R, collect func(R) error) error {
	if len(jobs) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobCh := make(chan J, workers*2)
	results := make(chan R, workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if ctx.Err() != nil {
					return
				}
				r := work(ctx, job)
				select {
				case results <- r:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for r := range results {
		if firstErr != nil {
			continue
		}
		if err := collect(r); err != nil {
			firstErr = err
			cancel()
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
