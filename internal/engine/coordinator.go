package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dwcli/dw/internal/utils"
)

const DefaultParallelRequests = 5

// Options configures a coordinator and the transport it hands to its tasks.
type Options struct {
	Parallelism int
	Retries     int
	Force       bool
	Transport   TransportConfig
}

// Coordinator accepts a batch of requests, bounds how many transfers run at
// once and aggregates their outcomes.
type Coordinator struct {
	opts      Options
	transport *Transport
	policy    Policy
	reporter  Reporter
}

func NewCoordinator(opts Options, reporter Reporter) *Coordinator {
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelRequests
	}
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Coordinator{
		opts:      opts,
		transport: NewTransport(opts.Transport),
		policy:    Policy{MaxRetries: opts.Retries},
		reporter:  reporter,
	}
}

// Run drains the whole batch and returns the aggregate result. Admission is
// first-come-first-served: a fixed pool of workers pulls from the request
// channel, so at most Parallelism tasks are past Pending at any instant.
// One task failing never cancels its siblings; cancelling ctx drains every
// in-flight task to a Cancelled failure.
func (c *Coordinator) Run(ctx context.Context, requests []DownloadRequest) *BatchResult {
	log := utils.GetLogger("coordinator")
	log.Info().Int("totalFiles", len(requests)).Int("parallel", c.opts.Parallelism).Msg("Initiating download batch")
	started := time.Now()
	c.reporter.Publish(ProgressEvent{Name: EventBatchStart, BatchSize: len(requests)})

	result := &BatchResult{}

	// No two tasks may ever write the same destination, so duplicates are
	// rejected before admission.
	seen := make(map[string]bool)
	admitted := make([]DownloadRequest, 0, len(requests))
	for _, req := range requests {
		if seen[req.Destination] {
			err := &TransferError{
				Kind: KindFileExists,
				Err:  fmt.Errorf("duplicate destination in batch: %s", req.Destination),
			}
			c.reporter.Publish(ProgressEvent{
				Name:   EventDownloadError,
				TaskID: req.ID,
				URL:    req.URL,
				Path:   req.Destination,
				State:  TransferState{Status: StatusFailed, FailKind: KindFileExists},
				Err:    err,
			})
			result.record(outcome{req: req, kind: KindFileExists, err: err})
			continue
		}
		seen[req.Destination] = true
		admitted = append(admitted, req)
	}

	requestCh := make(chan DownloadRequest, len(admitted))
	for _, req := range admitted {
		requestCh <- req
	}
	close(requestCh)
	outcomeCh := make(chan outcome, len(admitted))

	var wg sync.WaitGroup
	workers := min(c.opts.Parallelism, len(admitted))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			logger := log.With().Int("workerID", workerID).Logger()
			for req := range requestCh {
				logger.Debug().Str("url", req.URL).Str("output", req.Destination).Msg("Worker starting download")
				t := &task{
					req:       req,
					transport: c.transport,
					policy:    c.policy,
					reporter:  c.reporter,
					force:     c.opts.Force,
					log:       logger,
					state:     TransferState{Status: StatusPending},
				}
				outcomeCh <- t.run(ctx)
			}
		}(i + 1)
	}
	wg.Wait()
	close(outcomeCh)

	for o := range outcomeCh {
		result.record(o)
	}
	result.Elapsed = time.Since(started)
	for _, req := range requests {
		CleanTemp(req.Destination)
	}
	c.reporter.Publish(ProgressEvent{Name: EventBatchFinish, Result: result})
	log.Debug().Int("succeeded", result.Succeeded).Int("failed", result.Failed).Msg("Batch complete")
	return result
}
