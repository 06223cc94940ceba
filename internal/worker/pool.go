// Package worker runs batch track jobs (resampling, export) in parallel.
package worker

import (
	"context"
	"sync"
	"time"
)

// Processor handles one track file. The CLI's resampler implements it.
type Processor interface {
	Process(ctx context.Context, task Task) (Output, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, task Task) (Output, error)

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, task Task) (Output, error) {
	return f(ctx, task)
}

// Task is a single input file to process.
type Task struct {
	Input string
	Step  float64
}

// Output is what a processor produced for a task.
type Output struct {
	Path      string
	Waypoints int
}

// Result represents the outcome of a task.
type Result struct {
	Task    Task
	Output  Output
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each task completes with its result and
// the number of tasks finished so far.
type ProgressFunc func(r Result, completed, total int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Processor  Processor
	OnProgress ProgressFunc
}

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	workers    int
	processor  Processor
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		processor:  cfg.Processor,
		onProgress: cfg.OnProgress,
	}
}

// Run executes all tasks and returns one result per task, in input order.
// Tasks not started before ctx is cancelled fail with ctx.Err().
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	type indexed struct {
		i      int
		result Result
	}

	taskCh := make(chan int)
	resultCh := make(chan indexed, len(tasks))

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskCh {
				resultCh <- indexed{i, p.run(ctx, tasks[i])}
			}
		}()
	}

	// Feed tasks; anything left after cancellation is reported as cancelled
	go func() {
		defer close(taskCh)
		for i := range tasks {
			select {
			case taskCh <- i:
			case <-ctx.Done():
				for j := i; j < len(tasks); j++ {
					resultCh <- indexed{j, Result{Task: tasks[j], Err: ctx.Err()}}
				}
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]Result, len(tasks))
	completed := 0
	for r := range resultCh {
		results[r.i] = r.result
		completed++
		if p.onProgress != nil {
			p.onProgress(r.result, completed, len(tasks))
		}
	}

	return results
}

func (p *Pool) run(ctx context.Context, task Task) Result {
	if err := ctx.Err(); err != nil {
		return Result{Task: task, Err: err}
	}

	start := time.Now()
	out, err := p.processor.Process(ctx, task)
	return Result{
		Task:    task,
		Output:  out,
		Err:     err,
		Elapsed: time.Since(start),
	}
}
