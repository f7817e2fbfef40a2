// Package schedule runs one-shot and periodic jobs from a min-heap ordered by
// due time. Due jobs are handed to a fixed pool of workers.
package schedule

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// Job is a scheduled unit of work
type Job struct {
	ID       string
	DueAt    time.Time
	Run      func()
	interval time.Duration // zero for one-shot jobs
	index    int           // position in the heap, -1 while running
}

// jobHeap is a min-heap of jobs ordered by DueAt
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	return h[i].DueAt.Before(h[j].DueAt)
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	job := x.(*Job)
	job.index = len(*h)
	*h = append(*h, job)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	job.index = -1
	*h = old[:n-1]
	return job
}

// Scheduler owns the job heap and the worker pool
type Scheduler struct {
	heap     jobHeap
	jobs     map[string]*Job
	mu       sync.Mutex
	wakeup   chan struct{}
	work     chan *Job
	workers  int
	executed atomic.Int64
	wg       sync.WaitGroup
	stopped  bool
	stopCh   chan struct{}
}

// New creates a scheduler with the given number of workers
func New(workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		heap:    make(jobHeap, 0),
		jobs:    make(map[string]*Job),
		wakeup:  make(chan struct{}, 1),
		work:    make(chan *Job),
		workers: workers,
		stopCh:  make(chan struct{}),
	}
	heap.Init(&s.heap)
	return s
}

// Start launches the dispatch loop and the workers
func (s *Scheduler) Start() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.wg.Add(1)
	go s.run()
}

// Stop halts dispatching and waits for running jobs to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

// Schedule runs fn once at dueAt. A job with the same id is replaced.
func (s *Scheduler) Schedule(id string, dueAt time.Time, fn func()) error {
	return s.add(&Job{ID: id, DueAt: dueAt, Run: fn})
}

// Every runs fn every interval, first at now+interval, until cancelled.
func (s *Scheduler) Every(id string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	return s.add(&Job{ID: id, DueAt: time.Now().Add(interval), Run: fn, interval: interval})
}

func (s *Scheduler) add(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}

	s.remove(job.ID)
	heap.Push(&s.heap, job)
	s.jobs[job.ID] = job

	if s.heap[0] == job {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}
	return nil
}

// Cancel removes a job. A periodic job that is running finishes its current
// run and is not rescheduled.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(id)
}

func (s *Scheduler) remove(id string) bool {
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	if job.index >= 0 {
		heap.Remove(&s.heap, job.index)
	}
	delete(s.jobs, id)
	return true
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}

		wait := 24 * time.Hour
		if s.heap.Len() > 0 {
			wait = time.Until(s.heap[0].DueAt)
			if wait <= 0 {
				job := heap.Pop(&s.heap).(*Job)
				if job.interval == 0 {
					delete(s.jobs, job.ID)
				}
				s.mu.Unlock()

				select {
				case s.work <- job:
				case <-s.stopCh:
					return
				}
				continue
			}
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wakeup:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case job := <-s.work:
			job.Run()
			s.executed.Add(1)
			s.reschedule(job)
		case <-s.stopCh:
			return
		}
	}
}

// reschedule puts a periodic job back on the heap unless it was cancelled or
// replaced while running. Missed ticks are skipped.
func (s *Scheduler) reschedule(job *Job) {
	if job.interval == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.jobs[job.ID] != job {
		return
	}
	next := job.DueAt.Add(job.interval)
	if now := time.Now(); next.Before(now) {
		next = now.Add(job.interval)
	}
	job.DueAt = next
	heap.Push(&s.heap, job)

	if s.heap[0] == job {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}
}

// Stats returns statistics about the scheduler
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		ScheduledJobs: len(s.jobs),
		Workers:       s.workers,
		Executed:      s.executed.Load(),
	}
}

// Stats contains statistics about the scheduler
type Stats struct {
	ScheduledJobs int
	Workers       int
	Executed      int64
}

var (
	ErrSchedulerStopped = &ScheduleError{"scheduler is stopped"}
	ErrInvalidInterval  = &ScheduleError{"interval must be positive"}
)

// ScheduleError represents a scheduling error
type ScheduleError struct {
	msg string
}

func (e *ScheduleError) Error() string {
	return e.msg
}
