package utils

import (
	"sync"
)

// WorkerPool runs submitted tasks on a fixed number of goroutines.
// If all workers are busy, SubmitOrRun executes the task inline
// on the caller's goroutine instead of blocking.
type WorkerPool struct {
	workerCount int
	tasks       chan func()
	done        chan struct{}
	wg          sync.WaitGroup
}

func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &WorkerPool{
		workerCount: workerCount,
		tasks:       make(chan func(), workerCount),
		done:        make(chan struct{}),
	}
}

func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		go func() {
			for {
				select {
				case task := <-wp.tasks:
					task()
					wp.wg.Done()
				case <-wp.done:
					return
				}
			}
		}()
	}
}

func (wp *WorkerPool) SubmitOrRun(task func()) {
	wp.wg.Add(1)
	select {
	case wp.tasks <- task:
	case <-wp.done:
		wp.wg.Done()
	default:
		task()
		wp.wg.Done()
	}
}

func (wp *WorkerPool) Stop() {
	close(wp.done)
}

func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}
