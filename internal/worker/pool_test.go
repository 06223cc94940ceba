package worker

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// mockProcessor simulates track processing for testing
type mockProcessor struct {
	delay     time.Duration
	fail      map[string]bool // inputs that should fail
	callCount atomic.Int32
}

func (m *mockProcessor) Process(ctx context.Context, task Task) (Output, error) {
	m.callCount.Add(1)

	select {
	case <-ctx.Done():
		return Output{}, ctx.Err()
	case <-time.After(m.delay):
	}

	if m.fail[task.Input] {
		return Output{}, errors.New("simulated failure")
	}

	return Output{
		Path:      "/tmp/" + strings.TrimSuffix(task.Input, ".yaml") + ".geojson",
		Waypoints: int(task.Step),
	}, nil
}

func inputs(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{Input: string(rune('a'+i)) + ".yaml", Step: float64(i + 1)}
	}
	return tasks
}

func TestPool_BasicExecution(t *testing.T) {
	proc := &mockProcessor{delay: 10 * time.Millisecond}

	pool := New(Config{
		Workers:   2,
		Processor: proc,
	})

	tasks := inputs(3)
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Fatalf("Expected %d results, got %d", len(tasks), len(results))
	}

	for i, r := range results {
		if r.Err != nil {
			t.Errorf("Unexpected error for %s: %v", r.Task.Input, r.Err)
		}
		if r.Task != tasks[i] {
			t.Errorf("Result %d belongs to %v, want %v", i, r.Task, tasks[i])
		}
		if r.Output.Waypoints != i+1 {
			t.Errorf("Expected %d waypoints for %s, got %d", i+1, r.Task.Input, r.Output.Waypoints)
		}
	}

	if proc.callCount.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d processor calls, got %d", len(tasks), proc.callCount.Load())
	}
}

func TestPool_Parallelism(t *testing.T) {
	proc := &mockProcessor{delay: 50 * time.Millisecond}

	pool := New(Config{
		Workers:   4,
		Processor: proc,
	})

	tasks := inputs(8)

	start := time.Now()
	results := pool.Run(context.Background(), tasks)
	elapsed := time.Since(start)

	// With 4 workers and 8 tasks at 50ms each, should take ~100ms (2 batches)
	maxExpected := 300 * time.Millisecond
	if elapsed > maxExpected {
		t.Errorf("Expected parallel execution in ~100ms, took %v", elapsed)
	}

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	proc := &mockProcessor{
		delay: 10 * time.Millisecond,
		fail:  map[string]bool{"b.yaml": true},
	}

	pool := New(Config{
		Workers:   2,
		Processor: proc,
	})

	results := pool.Run(context.Background(), inputs(3))

	var failCount int
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		failCount++
		if r.Task.Input != "b.yaml" {
			t.Errorf("Unexpected failure for %s", r.Task.Input)
		}
	}

	if failCount != 1 {
		t.Errorf("Expected 1 failure, got %d", failCount)
	}
}

func TestPool_Cancellation(t *testing.T) {
	proc := &mockProcessor{delay: 100 * time.Millisecond}

	pool := New(Config{
		Workers:   2,
		Processor: proc,
	})

	tasks := inputs(10)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := pool.Run(ctx, tasks)
	elapsed := time.Since(start)

	if elapsed > 300*time.Millisecond {
		t.Errorf("Expected early cancellation, took %v", elapsed)
	}
	if len(results) != len(tasks) {
		t.Fatalf("Expected a result for every task, got %d", len(results))
	}

	var cancelledCount int
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			cancelledCount++
		}
	}
	if cancelledCount < len(tasks)-2 {
		t.Errorf("Expected at least %d cancelled results, got %d", len(tasks)-2, cancelledCount)
	}
}

func TestPool_ProgressCallback(t *testing.T) {
	proc := &mockProcessor{delay: 10 * time.Millisecond}

	var progressCalls atomic.Int32
	var lastCompleted, lastTotal, lastFailed int

	pool := New(Config{
		Workers:   2,
		Processor: proc,
		OnProgress: func(r Result, completed, total int) {
			progressCalls.Add(1)
			lastCompleted = completed
			lastTotal = total
			if r.Err != nil {
				lastFailed++
			}
		},
	})

	tasks := inputs(3)
	proc.fail = map[string]bool{"c.yaml": true}
	pool.Run(context.Background(), tasks)

	if progressCalls.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d progress callbacks, got %d", len(tasks), progressCalls.Load())
	}
	if lastCompleted != len(tasks) || lastTotal != len(tasks) {
		t.Errorf("Expected final progress %d/%d, got %d/%d", len(tasks), len(tasks), lastCompleted, lastTotal)
	}
	if lastFailed != 1 {
		t.Errorf("Expected 1 failed, got %d", lastFailed)
	}
}

func TestPool_EmptyTasks(t *testing.T) {
	proc := &mockProcessor{}

	pool := New(Config{
		Workers:   2,
		Processor: proc,
	})

	if results := pool.Run(context.Background(), nil); len(results) != 0 {
		t.Errorf("Expected 0 results for empty tasks, got %d", len(results))
	}
	if proc.callCount.Load() != 0 {
		t.Errorf("Expected 0 processor calls for empty tasks, got %d", proc.callCount.Load())
	}
}

func TestProcessorFunc(t *testing.T) {
	pool := New(Config{Processor: ProcessorFunc(func(_ context.Context, task Task) (Output, error) {
		return Output{Path: task.Input + ".out"}, nil
	})})

	results := pool.Run(context.Background(), []Task{{Input: "x"}})
	if len(results) != 1 || results[0].Output.Path != "x.out" {
		t.Errorf("Unexpected results: %+v", results)
	}
}
