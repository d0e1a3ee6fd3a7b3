package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func numberedTasks(n int) []TaskDescriptor {
	tasks := make([]TaskDescriptor, 0, n)
	for i := 0; i < n; i++ {
		payload := map[string]string{"n": strconv.Itoa(i)}
		tasks = append(tasks, TaskDescriptor{
			ID:      canonicalID("probe", payload),
			Kind:    "probe",
			Payload: payload,
		})
	}
	return tasks
}

func TestRunReturnsOneResultPerTaskInSubmissionOrder(t *testing.T) {
	t.Parallel()

	tasks := numberedTasks(12)

	// Later tasks finish first so completion order differs from
	// submission order.
	worker := func(_ context.Context, task TaskDescriptor) (any, error) {
		n, _ := strconv.Atoi(task.Payload["n"])
		time.Sleep(time.Duration(12-n) * time.Millisecond)
		return n, nil
	}

	executor := NewExecutor(zap.NewNop())
	results, err := executor.Run(context.Background(), tasks, worker, Options{MaxConcurrency: 12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != len(tasks) {
		t.Fatalf("expected %d results, got %d", len(tasks), len(results))
	}

	for i, result := range results {
		if result.TaskID != tasks[i].ID {
			t.Fatalf("result %d: expected task %q, got %q", i, tasks[i].ID, result.TaskID)
		}
		if value, ok := result.Value.(int); !ok || value != i {
			t.Fatalf("result %d: expected value %d, got %v", i, i, result.Value)
		}
	}
}

func TestRunFailureDoesNotAffectSiblings(t *testing.T) {
	t.Parallel()

	tasks := numberedTasks(10)
	failing := errors.New("boom")

	worker := func(_ context.Context, task TaskDescriptor) (any, error) {
		if task.Payload["n"] == "4" {
			return nil, failing
		}
		return task.Payload["n"], nil
	}

	executor := NewExecutor(zap.NewNop())
	results, err := executor.Run(context.Background(), tasks, worker, Options{MaxConcurrency: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, result := range results {
		if i == 4 {
			if !errors.Is(result.Err, failing) {
				t.Fatalf("expected task 4 to fail with boom, got %v", result.Err)
			}
			continue
		}
		if !result.Ok() {
			t.Fatalf("task %d must not be affected by its sibling's failure: %v", i, result.Err)
		}
		if result.Value != strconv.Itoa(i) {
			t.Fatalf("task %d: unexpected value %v", i, result.Value)
		}
	}
}

func TestRunRespectsConcurrencyCeiling(t *testing.T) {
	t.Parallel()

	const limit = 3

	var active, peak int64
	var mu sync.Mutex

	worker := func(_ context.Context, _ TaskDescriptor) (any, error) {
		current := atomic.AddInt64(&active, 1)
		mu.Lock()
		if current > peak {
			peak = current
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return nil, nil
	}

	executor := NewExecutor(zap.NewNop())
	if _, err := executor.Run(context.Background(), numberedTasks(20), worker, Options{MaxConcurrency: limit}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > limit {
		t.Fatalf("observed %d simultaneously active workers, limit is %d", peak, limit)
	}
	if peak == 0 {
		t.Fatal("no worker ever ran")
	}
}

func TestRunTimesOutSlowTask(t *testing.T) {
	t.Parallel()

	tasks := numberedTasks(3)

	worker := func(ctx context.Context, task TaskDescriptor) (any, error) {
		if task.Payload["n"] == "1" {
			select {
			case <-time.After(2 * time.Second):
				return "too late", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return "ok", nil
	}

	executor := NewExecutor(zap.NewNop())
	results, err := executor.Run(context.Background(), tasks, worker, Options{
		MaxConcurrency: 3,
		PerTaskTimeout: 20 * time.Millisecond,
		GracePeriod:    20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !errors.Is(results[1].Err, ErrTaskTimeout) {
		t.Fatalf("expected ErrTaskTimeout, got %v", results[1].Err)
	}
	for _, i := range []int{0, 2} {
		if !results[i].Ok() {
			t.Fatalf("task %d must survive its sibling's timeout: %v", i, results[i].Err)
		}
	}
}

func TestRunAbandonsUnresponsiveWorkerAfterGrace(t *testing.T) {
	t.Parallel()

	// The worker ignores cancellation entirely; Run must still return
	// once the grace period expires.
	release := make(chan struct{})
	worker := func(_ context.Context, _ TaskDescriptor) (any, error) {
		<-release
		return nil, nil
	}

	executor := NewExecutor(zap.NewNop())

	start := time.Now()
	results, err := executor.Run(context.Background(), numberedTasks(1), worker, Options{
		MaxConcurrency: 1,
		PerTaskTimeout: 10 * time.Millisecond,
		GracePeriod:    30 * time.Millisecond,
	})
	elapsed := time.Since(start)
	close(release)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(results[0].Err, ErrTaskTimeout) {
		t.Fatalf("expected ErrTaskTimeout, got %v", results[0].Err)
	}
	if elapsed > time.Second {
		t.Fatalf("executor blocked on an unresponsive worker for %s", elapsed)
	}
}

func TestRunRejectsInvalidConcurrency(t *testing.T) {
	t.Parallel()

	executor := NewExecutor(zap.NewNop())

	dispatched := false
	worker := func(_ context.Context, _ TaskDescriptor) (any, error) {
		dispatched = true
		return nil, nil
	}

	for _, limit := range []int{0, -1} {
		_, err := executor.Run(context.Background(), numberedTasks(2), worker, Options{MaxConcurrency: limit})

		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("limit %d: expected ConfigError, got %v", limit, err)
		}
	}

	if dispatched {
		t.Fatal("no task may be dispatched on a config error")
	}
}

func TestRunRecordsDuration(t *testing.T) {
	t.Parallel()

	worker := func(_ context.Context, _ TaskDescriptor) (any, error) {
		time.Sleep(10 * time.Millisecond)
		return nil, nil
	}

	executor := NewExecutor(zap.NewNop())
	results, err := executor.Run(context.Background(), numberedTasks(1), worker, Options{MaxConcurrency: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if results[0].Duration < 10*time.Millisecond {
		t.Fatalf("expected duration of at least 10ms, got %s", results[0].Duration)
	}
}

func TestRunEmptyTaskList(t *testing.T) {
	t.Parallel()

	executor := NewExecutor(zap.NewNop())
	results, err := executor.Run(context.Background(), nil, func(_ context.Context, _ TaskDescriptor) (any, error) {
		return nil, fmt.Errorf("must not run")
	}, Options{MaxConcurrency: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}
