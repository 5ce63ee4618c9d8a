package executor

import (
	"runtime"
	"sync"
	"time"
)

// 基于切片任务分配：把 [0, total) 切成若干段交给固定数量的 worker
type Executor struct {
	workers int
}

type task struct {
	start int
	end   int
}

func New(workers int) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Executor{workers: workers}
}

// split 每个 worker 分到两段，余数逐个分配
func (e *Executor) split(total int) []task {
	taskLen, remainder := total/e.workers, total%e.workers
	tasks := make([]task, 0, e.workers*2+remainder)
	start := 0
	if taskLen > 0 {
		if taskLen == 1 {
			for start < total-remainder {
				tasks = append(tasks, task{start: start, end: start + 1})
				start++
			}
		} else {
			half1, half2 := taskLen/2, taskLen/2
			if taskLen%2 == 1 {
				half2++
			}
			for start < total-remainder {
				tasks = append(tasks, task{start: start, end: start + half1})
				start += half1
				tasks = append(tasks, task{start: start, end: start + half2})
				start += half2
			}
		}
	}
	for i := 0; i < remainder; i++ {
		tasks = append(tasks, task{start: start, end: start + 1})
		start++
	}
	return tasks
}

// Dispatch runs f over [0, total) split into ranges and waits for all of them.
// f must only touch indices inside its range. A panic in f is re-raised on the
// calling goroutine once every worker has stopped.
func (e *Executor) Dispatch(total int, f func(start, end int)) time.Duration {
	start := time.Now()
	if total <= 0 {
		return 0
	}
	tasks := e.split(total)
	if len(tasks) == 1 || e.workers == 1 {
		for _, t := range tasks {
			f(t.start, t.end)
		}
		return time.Since(start)
	}

	dispatchChan := make(chan task, len(tasks))
	for _, t := range tasks {
		dispatchChan <- t
	}
	close(dispatchChan)

	var (
		wg       sync.WaitGroup
		once     sync.Once
		panicked interface{}
	)
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// worker 中的 panic 交回调用方的 goroutine
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() { panicked = r })
				}
			}()
			for t := range dispatchChan {
				f(t.start, t.end)
			}
		}()
	}
	wg.Wait()
	if panicked != nil {
		panic(panicked)
	}
	return time.Since(start)
}
