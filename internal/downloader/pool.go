// Package downloader fetches the images referenced by crawled items into a
// folder, several at a time.
package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"tweetcrawl/pkg/logger"
	"tweetcrawl/pkg/ratelimit"
)

// Job is one image to fetch
type Job struct {
	URL string
	// Name is the file name the image is stored under
	Name string
	// ItemURL is the item the image belongs to
	ItemURL string
}

// Result reports one finished job
type Result struct {
	Job      Job
	Skipped  bool
	Err      error
	Duration time.Duration
	Size     int
}

// Fetcher downloads the body at a URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Store keeps fetched images by name
type Store interface {
	Exists(name string) bool
	Save(r io.Reader, name string) error
}

// WorkerPool runs jobs on a fixed number of workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     Fetcher
	store       Store
	limiter     ratelimit.Limiter
	logger      logger.Logger
}

// NewWorkerPool creates a pool; limiter may be nil
func NewWorkerPool(ctx context.Context, numWorkers int, fetcher Fetcher, store Store, limiter ratelimit.Limiter, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		store:       store,
		limiter:     limiter,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop waits for queued jobs to finish and closes Results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// Submit queues job. Results must be drained concurrently.
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the channel of finished jobs
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		result := wp.processJob(job, id)
		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}
	log := wp.logger.WithFields(map[string]interface{}{
		"worker_id": workerID,
		"file":      job.Name,
	})

	if err := wp.ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	if wp.store.Exists(job.Name) {
		log.Debug("Image already downloaded")
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}

	if wp.limiter != nil {
		if err := wp.limiter.Wait(wp.ctx); err != nil {
			result.Err = err
			return result
		}
	}

	data, err := wp.fetcher.Fetch(wp.ctx, job.URL)
	if err != nil {
		result.Err = fmt.Errorf("download failed: %w", err)
		result.Duration = time.Since(start)
		log.WithError(err).Warn("Image download failed")
		return result
	}
	result.Size = len(data)

	if err := wp.store.Save(bytes.NewReader(data), job.Name); err != nil {
		result.Err = fmt.Errorf("save failed: %w", err)
		result.Duration = time.Since(start)
		log.WithError(err).Error("Failed to save image")
		return result
	}

	result.Duration = time.Since(start)
	log.DebugWithFields("Image saved", map[string]interface{}{
		"size":     result.Size,
		"duration": result.Duration.String(),
	})
	return result
}

// Summary counts the outcome of Download
type Summary struct {
	Saved   int
	Skipped int
	Failed  int
	Bytes   int
}

// Download runs jobs on the pool and waits for all of them. onResult, when
// set, is called from a single goroutine for each finished job.
func (wp *WorkerPool) Download(jobs []Job, onResult func(Result)) Summary {
	var summary Summary
	done := make(chan struct{})
	go func() {
		defer close(done)
		for result := range wp.Results() {
			switch {
			case result.Err != nil:
				summary.Failed++
			case result.Skipped:
				summary.Skipped++
			default:
				summary.Saved++
				summary.Bytes += result.Size
			}
			if onResult != nil {
				onResult(result)
			}
		}
	}()

	wp.Start()
	unqueued := 0
	for i, job := range jobs {
		if err := wp.Submit(job); err != nil {
			wp.logger.WithError(err).Warn("Stopped queueing downloads")
			unqueued = len(jobs) - i
			break
		}
	}
	wp.Stop()
	<-done

	summary.Failed += unqueued
	return summary
}
