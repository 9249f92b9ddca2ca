// Package async provides utilities for parallel task execution.
//
// This package contains generic helpers for running multiple operations
// concurrently and collecting their results. It's used for per-resource
// deletions within a teardown step, where every deletion must be attempted
// even if some fail.
package async

import (
	"context"
	"fmt"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunAll executes every task in parallel and waits for all of them to finish.
// Unlike a fail-fast group, one task's failure never prevents the others from
// being attempted; the returned slice holds one entry per failed task, each
// wrapped with the task name. A nil/empty result means every task succeeded.
func RunAll(ctx context.Context, tasks []Task) []error {
	if len(tasks) == 0 {
		return nil
	}

	type result struct {
		index int
		err   error
	}

	resultChan := make(chan result, len(tasks))

	for i, task := range tasks {
		go func() {
			resultChan <- result{index: i, err: task.Func(ctx)}
		}()
	}

	failed := make([]error, len(tasks))
	for range len(tasks) {
		res := <-resultChan
		if res.err != nil {
			failed[res.index] = fmt.Errorf("%s: %w", tasks[res.index].Name, res.err)
		}
	}

	// Compact, preserving task order so error reports are stable.
	var errs []error
	for _, err := range failed {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
