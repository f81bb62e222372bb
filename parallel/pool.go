// Package parallel runs independent jobs, such as one image file each, on a
// fixed set of workers.
package parallel

import (
	"runtime"
	"sync"
)

type (
	WorkerFunc func(func())
	WaitFunc   func(done bool)
)

type Pool struct {
	wg      sync.WaitGroup
	pending sync.WaitGroup
	jobs    chan func()
	workers int
	close   func()
}

// Start launches numWorkers workers, or GOMAXPROCS of them when numWorkers is
// not positive. A single worker runs jobs inline on the caller's goroutine.
func Start(numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	pool := &Pool{
		workers: numWorkers,
		close:   func() {},
	}
	if numWorkers == 1 {
		return pool
	}

	pool.jobs = make(chan func(), numWorkers)
	for range numWorkers {
		pool.wg.Go(func() {
			for f := range pool.jobs {
				f()
			}
		})
	}
	pool.close = sync.OnceFunc(func() { close(pool.jobs) })

	return pool
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.workers
}

// Do schedules f. It blocks while every worker is busy and the queue is full.
func (p *Pool) Do(f func()) {
	if p.jobs == nil {
		f()
		return
	}
	p.pending.Add(1)
	p.jobs <- func() {
		defer p.pending.Done()
		f()
	}
}

// Wait blocks until the scheduled jobs finished. With done set, no more jobs
// are accepted and the workers exit.
func (p *Pool) Wait(done bool) {
	p.pending.Wait()
	if done {
		p.close()
		p.wg.Wait()
	}
}
