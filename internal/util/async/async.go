// Package async provides utilities for parallel task execution.
//
// The worker configuration phase fans out one task per host; a failing host
// must not abort or obscure its siblings, so results are collected per task
// instead of short-circuiting on the first error.
package async

import "context"

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Result holds the outcome of a single task.
type Result struct {
	Name string
	Err  error
}

// RunParallel executes all tasks concurrently and waits for every task to
// finish. It returns one Result per task, in completion order. Tasks receive
// the shared context; cancellation stops tasks that honor it but RunParallel
// still waits for all of them to return.
func RunParallel(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	resultChan := make(chan Result, len(tasks))

	for _, task := range tasks {
		go func() {
			resultChan <- Result{Name: task.Name, Err: task.Func(ctx)}
		}()
	}

	results := make([]Result, 0, len(tasks))
	for range len(tasks) {
		results = append(results, <-resultChan)
	}
	return results
}

// FirstError returns the first non-nil error among the results, or nil.
func FirstError(results []Result) error {
	for _, res := range results {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}
