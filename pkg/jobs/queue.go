// Package jobs runs fire-and-forget background work on a single worker.
// Jobs carry their own error boundary: a failing or panicking job is logged
// and never propagates to the goroutine that enqueued it.
package jobs

import (
	"log"
	"sync"
)

type Job func() error

type Queue struct {
	jobs chan Job
	stop chan struct{}
	wg   sync.WaitGroup
	logf func(format string, args ...any)
}

func NewQueue(logf func(format string, args ...any)) *Queue {
	if logf == nil {
		logf = log.Printf
	}
	q := &Queue{
		jobs: make(chan Job, 128),
		stop: make(chan struct{}),
		logf: logf,
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Enqueue schedules a job. It blocks only when the backlog is full.
func (q *Queue) Enqueue(job Job) {
	q.jobs <- job
}

// Stop drains nothing: queued but unstarted jobs are dropped, the running
// job (if any) completes first.
func (q *Queue) Stop() {
	close(q.stop)
	q.wg.Wait()
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case job := <-q.jobs:
			q.runOne(job)
		case <-q.stop:
			return
		}
	}
}

func (q *Queue) runOne(job Job) {
	defer func() {
		if r := recover(); r != nil {
			q.logf("[JOBS] job panicked: %v", r)
		}
	}()
	if err := job(); err != nil {
		q.logf("[JOBS] job failed: %v", err)
	}
}
