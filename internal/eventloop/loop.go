// Package eventloop runs callbacks one at a time on a single goroutine.
//
// Map state (stores, the popup coordinator, track players) is not safe for
// concurrent use. Everything that touches it runs on a Loop: timer ticks,
// CLI input and pointer events are posted to the loop instead of calling
// into the state directly.
package eventloop

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultQueueSize = 64

// Loop executes posted callbacks sequentially on the goroutine running Run.
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// New creates a loop. logger may be nil.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		tasks:  make(chan func(), defaultQueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run executes callbacks until ctx is cancelled. Callbacks posted after Run
// returned are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Post queues fn and reports whether it was accepted. It blocks while the
// queue is full and returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for it to finish. It must not be
// called from a loop callback.
func (l *Loop) Call(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// Every runs fn on the loop every interval until the returned cancel
// function is called. A tick is skipped while the previous one is still
// queued or running, so ticks never overlap or pile up. Cancel is
// idempotent, and a tick already queued when cancel runs does not call fn.
func (l *Loop) Every(interval time.Duration, fn func()) (cancel func()) {
	var (
		stop      = make(chan struct{})
		cancelled atomic.Bool
		pending   atomic.Bool
		once      sync.Once
	)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-l.done:
				return
			case <-ticker.C:
				if !pending.CompareAndSwap(false, true) {
					continue
				}
				ok := l.Post(func() {
					defer pending.Store(false)
					if cancelled.Load() {
						return
					}
					fn()
				})
				if !ok {
					return
				}
			}
		}
	}()

	l.logger.Debug("Repeating task scheduled", "interval", interval)
	return func() {
		once.Do(func() {
			cancelled.Store(true)
			close(stop)
		})
	}
}
