// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/plugin"
)

// ErrDependencyFailed is the sentinel error wrapped by DependencyFailedError.
var ErrDependencyFailed = errors.New("dependency failed")

type (
	// DependencyFailedError marks a task that never ran because one of its
	// dependencies failed. It wraps ErrDependencyFailed.
	DependencyFailedError struct {
		Plugin     plugin.Name
		Dependency plugin.Name
	}

	// Scheduler executes a plan with bounded concurrency. The zero value is
	// not usable; construct with NewScheduler.
	Scheduler struct {
		concurrency   int
		retryAttempts int
		retryBackoff  time.Duration
		taskTimeout   time.Duration
		cache         *Cache
		logger        *log.Logger
	}

	// Options tunes scheduler behavior. Zero fields fall back to defaults.
	Options struct {
		// Concurrency bounds the number of tasks running at once.
		Concurrency int
		// RetryAttempts is the total number of provider invocations allowed
		// per task for transient failures.
		RetryAttempts int
		// RetryBackoff is the base backoff; it doubles per retry.
		RetryBackoff time.Duration
		// TaskTimeout bounds a single task (all its attempts included run
		// under one deadline).
		TaskTimeout time.Duration
		// Cache deduplicates installs across environments; nil disables
		// caching.
		Cache *Cache
		// Logger receives per-task progress; nil gets a default stderr logger.
		Logger *log.Logger
	}

	// Report is the aggregate outcome of a plan execution. Install runs to
	// completion even when tasks fail; the report says what happened to each.
	Report struct {
		// Tasks holds every task in plan order.
		Tasks []*Task
		// Duration is the wall time of the whole run.
		Duration time.Duration
	}

	// completion is the scheduler-internal signal that a task reached a
	// terminal state.
	completion struct {
		name   plugin.Name
		failed bool
	}
)

// Error implements the error interface.
func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("plugin %q skipped: dependency %q failed", e.Plugin, e.Dependency)
}

// Unwrap returns ErrDependencyFailed so callers can use errors.Is for programmatic detection.
func (e *DependencyFailedError) Unwrap() error { return ErrDependencyFailed }

// NewScheduler creates a scheduler from options.
func NewScheduler(opts Options) *Scheduler {
	s := &Scheduler{
		concurrency:   opts.Concurrency,
		retryAttempts: opts.RetryAttempts,
		retryBackoff:  opts.RetryBackoff,
		taskTimeout:   opts.TaskTimeout,
		cache:         opts.Cache,
		logger:        opts.Logger,
	}
	if s.concurrency <= 0 {
		s.concurrency = 4
	}
	if s.retryAttempts <= 0 {
		s.retryAttempts = 3
	}
	if s.retryBackoff <= 0 {
		s.retryBackoff = 500 * time.Millisecond
	}
	if s.taskTimeout <= 0 {
		s.taskTimeout = 10 * time.Minute
	}
	if s.logger == nil {
		s.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "installer"})
	}
	return s
}

// Run executes the plan. Tasks start as soon as their dependencies succeed,
// never exceeding the concurrency bound. Transient failures retry with
// exponential backoff; permanent failures try the plugin's fallback provider
// once. A failed task fails its transitive dependents without running them.
// Cancellation stops new dispatches, lets in-flight tasks finish, and fails
// everything still pending.
//
// Run always returns a report; the error is non-nil only when the run could
// not proceed at all.
func (s *Scheduler) Run(ctx context.Context, plan *Plan, registry *plugin.Registry) (*Report, error) {
	start := time.Now()
	report := &Report{}
	for _, name := range plan.Order {
		report.Tasks = append(report.Tasks, plan.Tasks[name])
	}

	if plan.Len() == 0 {
		report.Duration = time.Since(start)
		return report, nil
	}

	degrees := plan.Graph.InDegrees()
	done := make(chan completion)
	sem := make(chan struct{}, s.concurrency)

	remaining := plan.Len()
	inflight := 0
	canceled := false
	ctxDone := ctx.Done()
	dispatched := make(map[plugin.Name]bool, plan.Len())

	dispatch := func(name plugin.Name) {
		task := plan.Tasks[name]
		dispatched[name] = true
		inflight++
		go func() {
			sem <- struct{}{}
			failed := s.runTask(ctx, task, registry)
			<-sem
			done <- completion{name: name, failed: failed}
		}()
	}

	// failCascade fails name and every transitive dependent that has not
	// already reached a terminal state.
	failCascade := func(root plugin.Name, cause plugin.Name) {
		stack := []plugin.Name{root}
		for len(stack) > 0 {
			name := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			task := plan.Tasks[name]
			if task.State().Terminal() {
				continue
			}
			_ = task.fail(&DependencyFailedError{Plugin: name, Dependency: cause})
			remaining--
			s.logger.Warn("skipping plugin", "plugin", name, "cause", cause)
			for _, dep := range plan.Graph.DependentsOf(string(name)) {
				stack = append(stack, plugin.Name(dep))
			}
		}
	}

	for _, name := range plan.Order {
		if degrees[string(name)] == 0 {
			dispatch(name)
		}
	}

	for remaining > 0 {
		if inflight == 0 {
			// Nothing running and nothing dispatchable: only possible after
			// cancellation removed the pending frontier.
			break
		}
		select {
		case c := <-done:
			inflight--
			remaining--
			if c.failed {
				for _, dep := range plan.Graph.DependentsOf(string(c.name)) {
					failCascade(plugin.Name(dep), c.name)
				}
				continue
			}
			for _, dep := range plan.Graph.DependentsOf(string(c.name)) {
				degrees[dep]--
				if degrees[dep] == 0 && !canceled {
					dispatch(plugin.Name(dep))
				}
			}
		case <-ctxDone:
			// Disarm so the drain loop below keeps selecting completions.
			ctxDone = nil
			canceled = true
			s.logger.Warn("install canceled, draining in-flight tasks")
			// Dispatched tasks have a goroutine that will report through the
			// done channel exactly once, even if still queued behind the
			// semaphore; only tasks that were never handed to a goroutine are
			// failed here.
			for name, task := range plan.Tasks {
				if !dispatched[name] && task.State() == StatePending {
					_ = task.fail(fmt.Errorf("install canceled: %w", ctx.Err()))
					remaining--
				}
			}
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

// runTask executes one task to a terminal state and reports failure.
func (s *Scheduler) runTask(ctx context.Context, task *Task, registry *plugin.Registry) bool {
	d, err := registry.Lookup(task.Plugin)
	if err != nil {
		_ = task.fail(err)
		return true
	}

	taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()

	if err := task.transition(StateRunning); err != nil {
		_ = task.fail(err)
		return true
	}
	s.logger.Info("installing", "plugin", task.Plugin, "version", task.Version)

	install := func(p plugin.Provider) error {
		if s.cache == nil {
			return p.Install(taskCtx, task.Version)
		}
		return s.cache.Do(CacheKey(string(task.Plugin), task.Version), func() error {
			return p.Install(taskCtx, task.Version)
		})
	}

	err = retryWithBackoff(taskCtx, s.retryAttempts, s.retryBackoff, func(attempt int) (bool, error) {
		if attempt > 0 {
			if terr := task.transition(StateRunning); terr != nil {
				return false, terr
			}
			s.logger.Info("retrying install", "plugin", task.Plugin, "attempt", attempt+1)
		}
		installErr := install(d.Provider)
		if installErr == nil {
			return false, nil
		}
		if plugin.IsTransient(installErr) {
			_ = task.transition(StateRetrying)
			return true, installErr
		}
		return false, installErr
	})

	if err != nil && d.Fallback != nil {
		s.logger.Warn("primary provider failed, trying fallback", "plugin", task.Plugin, "error", err)
		task.markFallback()
		if task.State() == StateRetrying {
			_ = task.transition(StateRunning)
		}
		if fbErr := install(d.Fallback); fbErr == nil {
			err = nil
		} else {
			err = errors.Join(err, fmt.Errorf("fallback: %w", fbErr))
		}
	}

	if err != nil {
		_ = task.fail(err)
		s.logger.Error("install failed", "plugin", task.Plugin, "error", err)
		return true
	}

	if terr := task.transition(StateSucceeded); terr != nil {
		_ = task.fail(terr)
		return true
	}
	s.logger.Info("installed", "plugin", task.Plugin, "version", task.Version, "attempts", task.Attempts())
	return false
}

// Succeeded returns how many tasks succeeded.
func (r *Report) Succeeded() int {
	n := 0
	for _, t := range r.Tasks {
		if t.State() == StateSucceeded {
			n++
		}
	}
	return n
}

// Failed returns the tasks that failed, in plan order.
func (r *Report) Failed() []*Task {
	var failed []*Task
	for _, t := range r.Tasks {
		if t.State() == StateFailed {
			failed = append(failed, t)
		}
	}
	return failed
}

// AllSucceeded reports whether every task succeeded.
func (r *Report) AllSucceeded() bool {
	return len(r.Failed()) == 0
}

// Err returns an aggregate error over failed tasks, nil when all succeeded.
func (r *Report) Err() error {
	var errs []error
	for _, t := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", t.Plugin, t.Err()))
	}
	return errors.Join(errs...)
}
