package rabbitmq

import "sync"

// workerPool runs submitted jobs on a fixed number of goroutines.
// Submit blocks while every worker is busy, which keeps prefetch meaningful.
type workerPool struct {
	jobs chan func()
	wg   sync.WaitGroup
	once sync.Once
}

func newWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = 1
	}
	wp := &workerPool{jobs: make(chan func())}
	for i := 0; i < workers; i++ {
		wp.wg.Add(1)
		go func() {
			defer wp.wg.Done()
			for job := range wp.jobs {
				job()
			}
		}()
	}
	return wp
}

func (wp *workerPool) Submit(job func()) {
	wp.jobs <- job
}

// Wait stops intake and blocks until in-flight jobs finish.
func (wp *workerPool) Wait() {
	wp.once.Do(func() { close(wp.jobs) })
	wp.wg.Wait()
}
