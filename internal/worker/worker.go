package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

type FailurePolicy int

const (
	FailurePolicyPartialOutput FailurePolicy = iota
	FailurePolicyFailFast
)

type Options struct {
	Workers int

	// RateLimitRPS is a global limit on item starts across all workers. Set to <=0 to disable.
	RateLimitRPS float64

	FailurePolicy FailurePolicy
}

// Result holds the output for one input item.
type Result[In any, Out any] struct {
	Input  In
	Output Out
	Err    error
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	return o
}

// ProcessAll runs fn over items with a bounded number of goroutines. Results come back in
// input order. With FailurePolicyFailFast the first item error cancels the rest and is returned.
func ProcessAll[In any, Out any](
	ctx context.Context,
	items []In,
	fn func(context.Context, In) (Out, error),
	opts Options,
) ([]Result[In, Out], error) {
	opts = opts.withDefaults()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	out := make([]Result[In, Out], len(items))
	jobs := make(chan int)

	var mu sync.Mutex
	var firstErr error
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res := Result[In, Out]{Input: items[idx]}
				if err := runCtx.Err(); err != nil {
					res.Err = err
					out[idx] = res
					continue
				}
				if limiter != nil {
					if err := limiter.Wait(runCtx); err != nil {
						res.Err = err
						out[idx] = res
						continue
					}
				}
				res.Output, res.Err = fn(runCtx, items[idx])
				out[idx] = res
				if res.Err != nil && opts.FailurePolicy == FailurePolicyFailFast {
					fail(res.Err)
				}
			}
		}()
	}

feed:
	for i := range items {
		select {
		case jobs <- i:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
