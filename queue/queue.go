package queue

import "sync"

type Job struct {
	Run    func() error
	OnFail func(error)
}

// Queue runs jobs on a fixed number of workers. Jobs beyond the buffer size
// are rejected rather than blocking the caller.
type Queue struct {
	jobs    chan Job
	workers int

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func NewQueue(size, workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		jobs:    make(chan Job, size),
		workers: workers,
	}
}

// Enqueue reports whether job was accepted.
func (q *Queue) Enqueue(job Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}
	select {
	case q.jobs <- job:
		return true
	default:
		return false
	}
}

func (q *Queue) Start() {
	for range q.workers {
		q.wg.Add(1)
		go q.worker()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		if err := job.Run(); err != nil {
			if job.OnFail != nil {
				job.OnFail(err)
			}
		}
	}
}

// Stop rejects new jobs, lets the workers finish what is queued and waits
// for them.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}
