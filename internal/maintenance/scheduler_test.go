package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_RunsJobsOnTheirTickers(t *testing.T) {
	var a, b atomic.Int64
	s := NewScheduler(
		Job{Name: "a", Every: 10 * time.Millisecond, Run: func(context.Context) error {
			a.Add(1)
			return nil
		}},
		Job{Name: "b", Every: 10 * time.Millisecond, Run: func(context.Context) error {
			b.Add(1)
			return nil
		}},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	if a.Load() == 0 || b.Load() == 0 {
		t.Fatalf("jobs did not run: a=%d b=%d", a.Load(), b.Load())
	}
}

func TestScheduler_FailingJobDoesNotStopOthers(t *testing.T) {
	var failing, healthy atomic.Int64
	s := NewScheduler(
		Job{Name: "failing", Every: 10 * time.Millisecond, Run: func(context.Context) error {
			failing.Add(1)
			return errors.New("store unavailable")
		}},
		Job{Name: "healthy", Every: 10 * time.Millisecond, Run: func(context.Context) error {
			healthy.Add(1)
			return nil
		}},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	if failing.Load() < 2 {
		t.Errorf("failing job ran %d times, want repeated ticks after errors", failing.Load())
	}
	if healthy.Load() == 0 {
		t.Error("healthy job starved by failing one")
	}
}

func TestScheduler_PanickingJobIsRecovered(t *testing.T) {
	var runs atomic.Int64
	s := NewScheduler(
		Job{Name: "panicky", Every: 10 * time.Millisecond, Run: func(context.Context) error {
			runs.Add(1)
			panic("boom")
		}},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	if runs.Load() < 2 {
		t.Errorf("job ran %d times, want ticks to continue past panics", runs.Load())
	}
}

func TestScheduler_DropsInvalidJobs(t *testing.T) {
	s := NewScheduler(
		Job{Name: "no-interval", Run: func(context.Context) error { return nil }},
		Job{Name: "no-runner", Every: time.Minute},
	)
	if len(s.jobs) != 0 {
		t.Errorf("kept %d invalid jobs", len(s.jobs))
	}
}

func TestScheduler_RunAllOnce(t *testing.T) {
	var runs atomic.Int64
	s := NewScheduler(
		Job{Name: "one", Every: time.Hour, Run: func(context.Context) error {
			runs.Add(1)
			return nil
		}},
		Job{Name: "two", Every: time.Hour, Run: func(context.Context) error {
			runs.Add(1)
			return errors.New("ignored")
		}},
	)
	s.RunAllOnce(context.Background())
	if runs.Load() != 2 {
		t.Errorf("runs = %d, want 2", runs.Load())
	}
}
