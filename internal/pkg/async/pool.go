// Package async runs independent tasks on a bounded set of goroutines.
package async

import (
	"context"
	"sync"
)

type Task struct {
	Name    string
	Execute func(ctx context.Context) (any, error)
}

type Result struct {
	Name string
	Data any
	Err  error
}

// Pool is safe for concurrent use; each Execute call gets its own workers.
type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

type indexedTask struct {
	index int
	task  Task
}

func (p *Pool) worker(ctx context.Context, tasks <-chan indexedTask, results []Result, wg *sync.WaitGroup) {
	defer wg.Done()
	for it := range tasks {
		if err := ctx.Err(); err != nil {
			results[it.index] = Result{Name: it.task.Name, Err: err}
			continue
		}
		data, err := it.task.Execute(ctx)
		results[it.index] = Result{Name: it.task.Name, Data: data, Err: err}
	}
}

// Execute runs tasks and returns their results in input order. Tasks not yet
// started when ctx is cancelled report ctx.Err().
func (p *Pool) Execute(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	workers := p.workerCount
	if workers > len(tasks) {
		workers = len(tasks)
	}

	queue := make(chan indexedTask)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.worker(ctx, queue, results, &wg)
	}

	for i, task := range tasks {
		queue <- indexedTask{index: i, task: task}
	}
	close(queue)
	wg.Wait()

	return results
}
