// File: internal/scenario/batch.go
package scenario

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Batch runs a set of scenarios with bounded parallelism. Session
// launches are additionally rate limited so a burst of workers does not
// fork a burst of browser processes at once.
type Batch struct {
	runner      *Runner
	logger      *zap.Logger
	concurrency int64
	launchRate  float64
}

// NewBatch creates a Batch around an existing Runner.
func NewBatch(runner *Runner, logger *zap.Logger, concurrency int, launchRate float64) *Batch {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Batch{
		runner:      runner,
		logger:      logger.Named("batch"),
		concurrency: int64(concurrency),
		launchRate:  launchRate,
	}
}

// Run executes all scenarios and returns one result per scenario, in the
// input order. Cancellation stops admitting new scenarios; runs that
// never started are reported as failed with an aborted reason.
func (b *Batch) Run(ctx context.Context, scenarios []Scenario) []Result {
	results := make([]Result, len(scenarios))
	sem := semaphore.NewWeighted(b.concurrency)
	limiter := rate.NewLimiter(rate.Limit(b.launchRate), 1)

	var wg sync.WaitGroup
	for i, sc := range scenarios {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = abortedResult(sc)
			b.logger.Warn("Scenario skipped, batch cancelled.", zap.String("scenario", sc.Name))
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			sem.Release(1)
			results[i] = abortedResult(sc)
			b.logger.Warn("Scenario skipped, batch cancelled.", zap.String("scenario", sc.Name))
			continue
		}

		wg.Add(1)
		go func(idx int, sc Scenario) {
			defer wg.Done()
			defer sem.Release(1)
			results[idx] = b.runner.Run(ctx, sc)
		}(i, sc)
	}
	wg.Wait()
	return results
}

func abortedResult(sc Scenario) Result {
	now := time.Now()
	return Result{
		Scenario:  sc.Name,
		Status:    StatusFailed,
		Reason:    "run aborted before the scenario started",
		StartedAt: now,
	}
}
