package engine

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DownloadRequest describes one resource to fetch and where to store it.
// Requests are immutable once built.
type DownloadRequest struct {
	ID          string
	URL         string
	Destination string
	DisplayName string
}

// NewRequest validates the URL and builds a request with a fresh task ID.
func NewRequest(rawURL, destination string) (DownloadRequest, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return DownloadRequest{}, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return DownloadRequest{}, fmt.Errorf("unsupported scheme %q in %q", parsed.Scheme, rawURL)
	}
	if destination == "" {
		return DownloadRequest{}, fmt.Errorf("no destination for %q", rawURL)
	}
	return DownloadRequest{
		ID:          uuid.NewString(),
		URL:         rawURL,
		Destination: destination,
		DisplayName: filepath.Base(destination),
	}, nil
}

type Status int

const (
	StatusPending Status = iota
	StatusConnecting
	StatusStreaming
	StatusRetrying
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConnecting:
		return "connecting"
	case StatusStreaming:
		return "streaming"
	case StatusRetrying:
		return "retrying"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// TransferState is a snapshot of one task's state machine. The owning task
// is the only writer; reporters receive copies inside events.
//
// TotalBytes is meaningful only once SizeDecided is true: a non-negative
// value means the server supplied a size, -1 means it did not. The decision
// is made once per task and never reverts. Bytes is non-decreasing within
// an attempt and resets to zero when a new attempt starts.
type TransferState struct {
	Status      Status
	Attempt     int
	SizeDecided bool
	TotalBytes  int64
	Bytes       int64
	FailKind    ErrorKind
}

// SizeKnown reports whether the server supplied a total size.
func (s TransferState) SizeKnown() bool {
	return s.SizeDecided && s.TotalBytes >= 0
}

// RetryContext captures the attempt that just failed for the retry
// decision. It is rebuilt per attempt rather than mutated in place so each
// attempt's inputs stay inspectable.
type RetryContext struct {
	Attempt int
	Kind    ErrorKind
	Elapsed time.Duration
}

// Failure records one request that did not complete.
type Failure struct {
	URL  string
	Path string
	Kind ErrorKind
	Err  error
}

// BatchResult is the aggregate outcome of a batch. It is created by the
// coordinator once every task has terminated and owned by the caller after.
type BatchResult struct {
	Succeeded  int
	Failed     int
	Failures   []Failure
	TotalBytes int64
	Elapsed    time.Duration
}

func (r *BatchResult) record(o outcome) {
	if o.kind == KindNone {
		r.Succeeded++
		r.TotalBytes += o.bytes
		return
	}
	r.Failed++
	r.Failures = append(r.Failures, Failure{
		URL:  o.req.URL,
		Path: o.req.Destination,
		Kind: o.kind,
		Err:  o.err,
	})
}
