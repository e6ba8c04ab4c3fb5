package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mangarecap/internal/chapters"
	"mangarecap/internal/logging"
	"mangarecap/internal/pipeline"
	"mangarecap/internal/services"
)

// DefaultWorkers is used when the caller asks for zero workers.
const DefaultWorkers = 4

// Status tracks a chapter job through the batch.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is the process-lifetime record of one chapter in a batch.
type Job struct {
	Chapter    chapters.Chapter
	Status     Status
	Result     pipeline.Result
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time

	order int
}

// Elapsed returns how long the job ran.
func (j *Job) Elapsed() time.Duration {
	if j.StartedAt.IsZero() || j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// Outcomes maps chapter IDs to their jobs.
type Outcomes map[string]*Job

// Sorted returns the jobs in dispatch order.
func (o Outcomes) Sorted() []*Job {
	jobs := make([]*Job, 0, len(o))
	for _, job := range o {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].order < jobs[j].order })
	return jobs
}

// Failed returns the failed jobs in dispatch order.
func (o Outcomes) Failed() []*Job {
	var failed []*Job
	for _, job := range o.Sorted() {
		if job.Status == StatusFailed {
			failed = append(failed, job)
		}
	}
	return failed
}

// AllDone reports whether every job finished successfully.
func (o Outcomes) AllDone() bool {
	for _, job := range o {
		if job.Status != StatusDone {
			return false
		}
	}
	return true
}

// Count returns the number of jobs in status.
func (o Outcomes) Count(status Status) int {
	n := 0
	for _, job := range o {
		if job.Status == status {
			n++
		}
	}
	return n
}

// Runner processes one chapter. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, ch chapters.Chapter) (pipeline.Result, error)
}

// Scheduler dispatches chapters to a Runner.
type Scheduler struct {
	runner Runner
	runID  string
	logger *slog.Logger
}

// NewRunID returns a fresh run correlation identifier.
func NewRunID() string {
	return uuid.NewString()
}

// New builds a scheduler. An empty runID gets a generated one.
func New(runner Runner, runID string, logger *slog.Logger) *Scheduler {
	if runID == "" {
		runID = NewRunID()
	}
	return &Scheduler{
		runner: runner,
		runID:  runID,
		logger: logging.WithRunID(logging.NewComponentLogger(logger, "batch"), runID),
	}
}

// RunID returns the identifier attached to every log record of the batch.
func (s *Scheduler) RunID() string {
	return s.runID
}

// Run processes chapters with at most maxWorkers running at once and returns
// once every dispatched chapter finished. Duplicate chapter IDs run once.
// A configuration error stops dispatching; chapters not yet started stay
// pending.
func (s *Scheduler) Run(ctx context.Context, chs []chapters.Chapter, maxWorkers int) Outcomes {
	if maxWorkers <= 0 {
		maxWorkers = DefaultWorkers
	}
	ctx = services.WithRunID(ctx, s.runID)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(Outcomes, len(chs))
	queue := make([]*Job, 0, len(chs))
	for _, ch := range chs {
		if _, dup := outcomes[ch.ID]; dup {
			s.logger.Debug("duplicate chapter skipped", logging.String(logging.FieldChapterID, ch.ID))
			continue
		}
		job := &Job{Chapter: ch, Status: StatusPending, order: len(queue)}
		outcomes[ch.ID] = job
		queue = append(queue, job)
	}

	s.logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("chapters", len(queue)),
		logging.Int("workers", maxWorkers),
	)
	start := time.Now()

	var mu sync.Mutex
	var group errgroup.Group
	group.SetLimit(maxWorkers)
	for _, job := range queue {
		if ctx.Err() != nil {
			break
		}
		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			mu.Lock()
			job.Status = StatusRunning
			job.StartedAt = time.Now()
			mu.Unlock()

			result, err := s.runOne(ctx, job.Chapter)

			mu.Lock()
			job.Result = result
			job.Err = err
			job.FinishedAt = time.Now()
			job.Status = StatusDone
			if err != nil {
				job.Status = StatusFailed
			}
			mu.Unlock()

			s.logFinished(job)
			if services.IsFatal(err) {
				cancel()
			}
			return nil
		})
	}
	_ = group.Wait()

	s.logger.Info("batch completed",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("done", outcomes.Count(StatusDone)),
		logging.Int("failed", outcomes.Count(StatusFailed)),
		logging.Int("pending", outcomes.Count(StatusPending)),
		logging.Duration("batch_duration", time.Since(start)),
	)
	return outcomes
}

// runOne shields the pool from a panicking runner.
func (s *Scheduler) runOne(ctx context.Context, ch chapters.Chapter) (result pipeline.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chapter %s panicked: %v", ch.ID, r)
			result = pipeline.Result{ChapterID: ch.ID, State: pipeline.StateFailed, Err: err}
		}
	}()
	result, err = s.runner.Run(ctx, ch)
	if err == nil && result.State == pipeline.StateFailed {
		err = result.Err
		if err == nil {
			err = fmt.Errorf("chapter %s failed", ch.ID)
		}
	}
	return result, err
}

func (s *Scheduler) logFinished(job *Job) {
	attrs := []logging.Attr{
		logging.String(logging.FieldChapterID, job.Chapter.ID),
		logging.String("status", string(job.Status)),
		logging.Duration("chapter_duration", job.Elapsed()),
	}
	if job.Err != nil {
		attrs = append(attrs,
			logging.String("failed_stage", string(job.Result.FailedStage)),
			logging.String("error_kind", services.Kind(job.Err)),
			logging.Error(job.Err),
		)
		logging.WarnWithContext(s.logger, "chapter failed", "chapter_failed", append(attrs,
			logging.String(logging.FieldErrorHint, "rerun to resume from the failed stage"),
			logging.String(logging.FieldImpact, "no video for this chapter"),
		)...)
		return
	}
	s.logger.Info("chapter finished", logging.Args(attrs...)...)
}
