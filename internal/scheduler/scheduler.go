package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is one periodic maintenance task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs registered jobs on their own tickers until stopped.
type Scheduler struct {
	jobs []Job
	wg   sync.WaitGroup
}

// New creates an empty scheduler
func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a job. Jobs with a non-positive interval are ignored.
func (s *Scheduler) Add(job Job) {
	if job.Interval <= 0 {
		log.Printf("⚠️ Skipping job %q: no interval configured", job.Name)
		return
	}
	s.jobs = append(s.jobs, job)
}

// Start launches one goroutine per job. Each job also runs once shortly
// after startup so a restarted server converges without waiting a full
// interval.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, job)
	}
	log.Printf("⏰ Scheduler started with %d jobs", len(s.jobs))
}

// Wait blocks until all job loops have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	defer s.wg.Done()

	// Initial run, delayed so startup is not serialized behind jobs.
	startup := time.NewTimer(30 * time.Second)
	defer startup.Stop()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-startup.C:
			s.runOnce(ctx, job)
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	started := time.Now()
	if err := job.Run(ctx); err != nil {
		log.Printf("⚠️ Job %q failed: %v", job.Name, err)
		return
	}
	log.Printf("🧹 Job %q completed in %s", job.Name, time.Since(started).Round(time.Millisecond))
}
