package ocr

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"go-food-analyzer/internal/logger"
)

// WorkerPool runs blocking CPU-bound jobs on goroutines of their own, never
// more than maxWorkers at a time. Workers are started on demand, so an idle
// pool holds no goroutines; callers beyond the ceiling wait in Submit.
type WorkerPool struct {
	maxWorkers int64
	sem        *semaphore.Weighted
	wg         sync.WaitGroup
	closed     atomic.Bool

	totalJobs     atomic.Int64
	completedJobs atomic.Int64
	activeWorkers atomic.Int64
	queuedJobs    atomic.Int64
}

// PoolStats is a point-in-time snapshot of pool counters.
type PoolStats struct {
	MaxWorkers    int64 `json:"max_workers"`
	ActiveWorkers int64 `json:"active_workers"`
	QueuedJobs    int64 `json:"queued_jobs"`
	TotalJobs     int64 `json:"total_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
}

// NewWorkerPool creates a pool bounded by workers; non-positive values use
// runtime.NumCPU().
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &WorkerPool{
		maxWorkers: int64(workers),
		sem:        semaphore.NewWeighted(int64(workers)),
	}
}

// Submit blocks until a worker slot is free, then runs job asynchronously.
// It returns false if the pool is closed.
func (wp *WorkerPool) Submit(job func()) bool {
	if wp.closed.Load() {
		return false
	}

	wp.wg.Add(1)
	wp.queuedJobs.Add(1)
	// Background context: admission is never cancelled, jobs only queue.
	_ = wp.sem.Acquire(context.Background(), 1)
	wp.queuedJobs.Add(-1)

	wp.totalJobs.Add(1)
	wp.activeWorkers.Add(1)
	go wp.run(job)
	return true
}

func (wp *WorkerPool) run(job func()) {
	defer wp.wg.Done()
	defer func() {
		wp.activeWorkers.Add(-1)
		wp.completedJobs.Add(1)
		wp.sem.Release(1)
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("OCR worker job panicked")
		}
	}()

	job()
}

// Wait waits for all submitted jobs to complete
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Close stops accepting jobs and waits for running ones to finish.
func (wp *WorkerPool) Close() {
	wp.closed.Store(true)
	wp.wg.Wait()
}

// GetStats returns current pool counters.
func (wp *WorkerPool) GetStats() PoolStats {
	return PoolStats{
		MaxWorkers:    wp.maxWorkers,
		ActiveWorkers: wp.activeWorkers.Load(),
		QueuedJobs:    wp.queuedJobs.Load(),
		TotalJobs:     wp.totalJobs.Load(),
		CompletedJobs: wp.completedJobs.Load(),
	}
}
