// pkg/batch/batch.go - bounded fan-out of one per-target operation over many targets.

package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/windowsadmins/cimisweep/pkg/config"
	"github.com/windowsadmins/cimisweep/pkg/logging"
	"github.com/windowsadmins/cimisweep/pkg/metrics"
)

// ErrConcurrencyRange is returned by New for a pool size outside 1..16.
var ErrConcurrencyRange = fmt.Errorf("concurrency must be between %d and %d", config.MinConcurrency, config.MaxConcurrency)

// JobState is the lifecycle of one BatchJob.
type JobState int

const (
	Queued JobState = iota
	Running
	Completed
	Failed
)

func (s JobState) String() string {
	switch s {
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Operation removes a single target. It is the standard uninstaller, the
// escalation engine or packaged-app removal depending on the batch mode.
type Operation func(ctx context.Context, identifier string) error

// Job is one target's unit of work.
type Job struct {
	Identifier string
	State      JobState
	Err        error
	Started    time.Time
	Finished   time.Time
}

// Summary is returned once every job is terminal.
type Summary struct {
	// Processed lists every identifier in submission order.
	Processed []string
	Failed    int
	Jobs      []Job
	Duration  time.Duration
}

// Failures returns the jobs that ended in Failed.
func (s Summary) Failures() []Job {
	var out []Job
	for _, j := range s.Jobs {
		if j.State == Failed {
			out = append(out, j)
		}
	}
	return out
}

// Orchestrator runs at most Concurrency jobs at once. A failing job never
// cancels or affects its siblings.
type Orchestrator struct {
	concurrency int
	log         *logging.Logger
	metrics     *metrics.Metrics
}

// New validates concurrency. m may be nil.
func New(concurrency int, log *logging.Logger, m *metrics.Metrics) (*Orchestrator, error) {
	if concurrency < config.MinConcurrency || concurrency > config.MaxConcurrency {
		return nil, fmt.Errorf("%w, got %d", ErrConcurrencyRange, concurrency)
	}
	return &Orchestrator{concurrency: concurrency, log: log, metrics: m}, nil
}

// Concurrency is the pool size.
func (o *Orchestrator) Concurrency() int {
	return o.concurrency
}

// Run admits one job per target as slots free up and waits for all of them.
// ctx governs admission only: jobs run under a context detached from its
// cancellation, so once started they finish. If ctx ends during admission,
// targets not yet admitted are marked Failed with the context error.
func (o *Orchestrator) Run(ctx context.Context, targets []string, op Operation) Summary {
	start := time.Now()
	jobs := make([]Job, len(targets))
	for i, id := range targets {
		jobs[i] = Job{Identifier: id, State: Queued}
	}

	sem := semaphore.NewWeighted(int64(o.concurrency))
	jobCtx := context.WithoutCancel(ctx)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	setJob := func(i int, update func(*Job)) {
		mu.Lock()
		defer mu.Unlock()
		update(&jobs[i])
	}

	for i := range jobs {
		err := ctx.Err()
		if err == nil {
			err = sem.Acquire(ctx, 1)
		}
		if err != nil {
			for j := i; j < len(jobs); j++ {
				setJob(j, func(job *Job) {
					job.State = Failed
					job.Err = fmt.Errorf("not started: %w", err)
				})
			}
			o.log.Error("Batch admission stopped", "error", err, "remaining", len(jobs)-i)
			break
		}

		setJob(i, func(job *Job) {
			job.State = Running
			job.Started = time.Now()
		})
		o.metrics.JobStarted()

		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			defer sem.Release(1)

			began := time.Now()
			err := runJob(jobCtx, op, id)
			o.metrics.JobFinished(err != nil, time.Since(began))

			setJob(i, func(job *Job) {
				job.Finished = time.Now()
				job.Err = err
				job.State = Completed
				if err != nil {
					job.State = Failed
				}
			})
			if err != nil {
				o.log.Error("Batch job failed", "target", id, "error", err)
			} else {
				o.log.Debug("Batch job completed", "target", id)
			}
		}(i, jobs[i].Identifier)
	}
	wg.Wait()

	summary := Summary{Jobs: jobs, Duration: time.Since(start)}
	for _, j := range jobs {
		summary.Processed = append(summary.Processed, j.Identifier)
		if j.State == Failed {
			summary.Failed++
		}
	}
	level := logging.LevelInfo
	if summary.Failed > 0 {
		level = logging.LevelWarn
	}
	o.log.Log(level, "batch complete",
		"processed", len(summary.Processed),
		"failed", summary.Failed,
		"targets", summary.Processed,
		"concurrency", o.concurrency,
		"duration", summary.Duration.Round(time.Millisecond).String(),
	)
	return summary
}

var errPanic = errors.New("job panicked")

// runJob confines a panicking operation to its own job.
func runJob(ctx context.Context, op Operation, id string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", errPanic, r, debug.Stack())
		}
	}()
	return op(ctx, id)
}
