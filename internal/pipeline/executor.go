package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/The-Batman-Code/literate-happiness/internal/utils"
)

const defaultGracePeriod = time.Second

// Options bounds one Run call. Concurrency is always an explicit
// parameter, never process-wide state, so callers and tests can vary it
// per invocation.
type Options struct {
	// MaxConcurrency caps simultaneously active workers. Values <= 0
	// are a configuration error.
	MaxConcurrency int
	// PerTaskTimeout bounds each task individually. Zero disables the
	// per-task deadline.
	PerTaskTimeout time.Duration
	// GracePeriod bounds how long an abandoned worker is waited on
	// after its context is cancelled.
	GracePeriod time.Duration
}

// Executor runs independent tasks with bounded parallelism. A failure
// or timeout in one task never cancels or affects its siblings.
type Executor struct {
	logger *zap.Logger
}

func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger}
}

// Run dispatches every task to a pool of at most MaxConcurrency workers
// and blocks until each one has produced a result or been abandoned
// past the grace period. The returned slice holds exactly one result
// per submitted descriptor, in submission order regardless of
// completion order.
func (e *Executor) Run(ctx context.Context, tasks []TaskDescriptor, worker Worker, opts Options) ([]TaskResult, error) {
	if opts.MaxConcurrency <= 0 {
		return nil, &ConfigError{Field: "max_concurrency", Reason: "must be positive"}
	}
	if worker == nil {
		return nil, &ConfigError{Field: "worker", Reason: "is required"}
	}

	results := make([]TaskResult, len(tasks))

	var group errgroup.Group
	group.SetLimit(opts.MaxConcurrency)

	for i, task := range tasks {
		group.Go(func() error {
			results[i] = e.runOne(ctx, task, worker, opts)
			return nil
		})
	}

	// Fan-in barrier. Workers never surface errors to the group, so
	// this only waits.
	_ = group.Wait()

	return results, nil
}

func (e *Executor) runOne(ctx context.Context, task TaskDescriptor, worker Worker, opts Options) TaskResult {
	start := time.Now()

	taskCtx := ctx
	cancel := context.CancelFunc(func() {})
	if opts.PerTaskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, opts.PerTaskTimeout)
	}
	defer cancel()

	type outcome struct {
		value any
		err   error
	}

	done := make(chan outcome, 1)
	go func() {
		value, err := worker(taskCtx, task)
		done <- outcome{value: value, err: err}
	}()

	result := TaskResult{TaskID: task.ID}

	select {
	case out := <-done:
		result.Value = out.value
		result.Err = out.err
	case <-taskCtx.Done():
		// Best-effort cancellation: the context is cancelled and the
		// worker gets a bounded grace period to notice before we
		// abandon it.
		cancel()

		grace := opts.GracePeriod
		if grace <= 0 {
			grace = defaultGracePeriod
		}

		// Sleep up to the grace period, cut short as soon as the worker
		// notices the cancellation.
		graceCtx, settled := context.WithCancel(context.Background())
		go func() {
			<-done
			settled()
		}()
		if utils.WaitFor(graceCtx, grace) == nil {
			e.logger.Warn("abandoning unresponsive task",
				zap.String("task_id", task.ID),
				zap.Duration("grace_period", grace),
			)
		}
		settled()

		if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			result.Err = fmt.Errorf("%w: %s", ErrTaskTimeout, task.ID)
		} else {
			result.Err = taskCtx.Err()
		}
	}

	result.Duration = time.Since(start)

	if result.Err != nil {
		e.logger.Debug("task failed",
			zap.String("task_id", task.ID),
			zap.String("kind", task.Kind),
			zap.Duration("duration", result.Duration),
			zap.Error(result.Err),
		)
	}

	return result
}
