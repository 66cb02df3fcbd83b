package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storefront-chat/internal/logger"

	"go.uber.org/zap"
)

var ErrJobPanicked = errors.New("queue: job panicked")

type Job struct {
	Fn   func() error
	Errc chan error
}

// RequestQueueManager bounds how many requests run handlers at once.
type RequestQueueManager struct {
	jobs       chan Job
	maxWorkers int
	wg         sync.WaitGroup
	closeOnce  sync.Once
	log        *zap.Logger
}

func NewRequestQueueManager(queueSize int, maxWorkers int) *RequestQueueManager {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	manager := &RequestQueueManager{
		jobs:       make(chan Job, queueSize),
		maxWorkers: maxWorkers,
		log:        logger.L().Named("queue"),
	}
	manager.startWorkers()
	return manager
}

func (rqm *RequestQueueManager) startWorkers() {
	for i := 0; i < rqm.maxWorkers; i++ {
		rqm.wg.Add(1)
		go func(workerID int) {
			defer rqm.wg.Done()
			rqm.log.Debug("worker started", zap.Int("worker", workerID))
			for job := range rqm.jobs {
				err := rqm.run(workerID, job.Fn)
				if job.Errc != nil {
					job.Errc <- err
				}
			}
			rqm.log.Debug("worker stopped", zap.Int("worker", workerID))
		}(i)
	}
}

// run turns a panicking job into an error so one bad request cannot take the
// worker, or the process, down with it.
func (rqm *RequestQueueManager) run(workerID int, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			rqm.log.Error("job panicked", zap.Int("worker", workerID), zap.Any("panic", p), zap.Stack("stack"))
			err = fmt.Errorf("%w: %v", ErrJobPanicked, p)
		}
	}()
	return fn()
}

// EnqueueJob waits for queue space. It returns false when ctx ends first, in
// which case the job never runs.
func (rqm *RequestQueueManager) EnqueueJob(ctx context.Context, job Job) bool {
	select {
	case rqm.jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Depth is the number of jobs waiting for a worker.
func (rqm *RequestQueueManager) Depth() int {
	return len(rqm.jobs)
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (rqm *RequestQueueManager) Shutdown() {
	rqm.closeOnce.Do(func() { close(rqm.jobs) })
	rqm.wg.Wait()
}
