// Package maintenance runs the periodic background jobs: expired-record
// cleanup, pruning of long-dead denylist rows, and the anomaly scan. Jobs are
// idempotent and independently scheduled; one failing job never stops the
// others or the scheduler itself.
package maintenance

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is one periodic task. Run must be idempotent: overlapping or repeated
// runs are harmless.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Scheduler drives a set of jobs on independent tickers.
type Scheduler struct {
	jobs []Job
}

// NewScheduler returns a Scheduler for the given jobs. Jobs with a
// non-positive interval are dropped with a log line.
func NewScheduler(jobs ...Job) *Scheduler {
	kept := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Every <= 0 || j.Run == nil {
			log.Printf("maintenance: dropping job %q: no interval or runner", j.Name)
			continue
		}
		kept = append(kept, j)
	}
	return &Scheduler{jobs: kept}
}

// Start launches one goroutine per job and blocks until ctx is cancelled.
// Each tick runs the job once; errors and panics are logged and the next
// tick proceeds.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			ticker := time.NewTicker(j.Every)
			defer ticker.Stop()
			log.Printf("maintenance: job %q every %s", j.Name, j.Every)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					runJob(ctx, j)
				}
			}
		}(job)
	}
	wg.Wait()
}

// RunAllOnce runs every job once, sequentially. Used at worker startup so a
// long interval does not delay the first pass, and by tests.
func (s *Scheduler) RunAllOnce(ctx context.Context) {
	for _, j := range s.jobs {
		runJob(ctx, j)
	}
}

func runJob(ctx context.Context, j Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("maintenance: job %q panicked: %v", j.Name, r)
		}
	}()
	if err := j.Run(ctx); err != nil {
		log.Printf("maintenance: job %q failed: %v", j.Name, err)
	}
}
