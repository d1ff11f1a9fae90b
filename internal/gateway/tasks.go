package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/CosmoTheDev/slacknotify/internal/notify"
	"github.com/CosmoTheDev/slacknotify/internal/rules"
)

// ErrQueueFull is returned by Enqueue when no slot is free for a task.
var ErrQueueFull = errors.New("deferred notification queue is full")

// TaskRunner executes deferred rule notifications on a fixed pool of workers.
// Tasks run in no particular order.
type TaskRunner struct {
	queue   chan *rules.Task
	workers int
	onDone  func(*rules.Task, *notify.Result, error)

	wg sync.WaitGroup
}

func newTaskRunner(workers, size int, onDone func(*rules.Task, *notify.Result, error)) *TaskRunner {
	if workers <= 0 {
		workers = 2
	}
	if size <= 0 {
		size = 64
	}
	return &TaskRunner{
		queue:   make(chan *rules.Task, size),
		workers: workers,
		onDone:  onDone,
	}
}

// Start launches the workers. They exit when ctx is cancelled; tasks still
// queued at that point are dropped.
func (r *TaskRunner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func(workerID int) {
			defer r.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task := <-r.queue:
					res, err := task.Run(ctx)
					slog.Debug("gateway: deferred notification finished",
						"worker", workerID, "task", task.String(), "error", err)
					if r.onDone != nil {
						r.onDone(task, res, err)
					}
				}
			}
		}(i)
	}
}

// Enqueue hands task to the workers without blocking.
func (r *TaskRunner) Enqueue(task *rules.Task) error {
	select {
	case r.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of tasks waiting for a worker.
func (r *TaskRunner) Pending() int { return len(r.queue) }

// Wait blocks until every worker has exited.
func (r *TaskRunner) Wait() { r.wg.Wait() }
