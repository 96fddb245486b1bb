// Package runner schedules and executes background tasks on cron
// expressions.
package runner

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner manages and executes scheduled background tasks.
type Runner struct {
	cron     *cron.Cron
	registry *TaskRegistry
	logger   *log.Logger
	wg       sync.WaitGroup
}

func NewRunner(registry *TaskRegistry, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(os.Stdout, "[RUNNER] ", log.LstdFlags)
	}
	return &Runner{
		cron:     cron.New(),
		registry: registry,
		logger:   logger,
	}
}

// Start registers every task with cron and starts the scheduler. It does not
// block; call Stop to shut down.
func (r *Runner) Start(ctx context.Context) error {
	for name, task := range r.registry.All() {
		task := task
		r.logger.Printf("registering task %s with schedule %q", name, task.Schedule())
		if _, err := r.cron.AddFunc(task.Schedule(), func() {
			r.executeTask(ctx, task)
		}); err != nil {
			return fmt.Errorf("schedule task %s: %w", name, err)
		}
	}
	r.cron.Start()
	r.logger.Println("task runner started")
	return nil
}

// RunOnce executes a registered task immediately, outside its schedule.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	task, ok := r.registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	r.executeTask(ctx, task)
	return nil
}

func (r *Runner) executeTask(ctx context.Context, task Task) {
	r.wg.Add(1)
	defer r.wg.Done()

	taskCtx, cancel := context.WithTimeout(ctx, task.Timeout())
	defer cancel()

	start := time.Now()
	if err := task.Run(taskCtx); err != nil {
		r.logger.Printf("task %s failed after %v: %v", task.Name(), time.Since(start), err)
		return
	}
	r.logger.Printf("task %s completed in %v", task.Name(), time.Since(start))
}

// Stop shuts the scheduler down and waits for running tasks to finish.
func (r *Runner) Stop() {
	stopCtx := r.cron.Stop()
	r.wg.Wait()
	<-stopCtx.Done()
	r.logger.Println("task runner stopped")
}
