package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// inflightTracker records the peak number of simultaneous requests.
type inflightTracker struct {
	mu      sync.Mutex
	current int
	peak    int
}

func (t *inflightTracker) enter() {
	t.mu.Lock()
	t.current++
	if t.current > t.peak {
		t.peak = t.current
	}
	t.mu.Unlock()
}

func (t *inflightTracker) leave() {
	t.mu.Lock()
	t.current--
	t.mu.Unlock()
}

func mustRequest(t *testing.T, url, dest string) DownloadRequest {
	t.Helper()
	req, err := NewRequest(url, dest)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return req
}

func TestRunBoundsParallelism(t *testing.T) {
	tracker := &inflightTracker{}
	data := []byte("payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracker.enter()
		defer tracker.leave()
		time.Sleep(100 * time.Millisecond)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}))
	defer server.Close()

	dir := t.TempDir()
	var requests []DownloadRequest
	for i := 0; i < 3; i++ {
		requests = append(requests, mustRequest(t, server.URL+fmt.Sprintf("/file%d", i), filepath.Join(dir, fmt.Sprintf("file%d", i))))
	}

	coordinator := NewCoordinator(Options{Parallelism: 2}, nil)
	result := coordinator.Run(context.Background(), requests)

	if result.Succeeded != 3 || result.Failed != 0 {
		t.Fatalf("expected 3 succeeded, got %+v", result)
	}
	if tracker.peak > 2 {
		t.Fatalf("expected at most 2 in-flight transfers, saw %d", tracker.peak)
	}
	for i := 0; i < 3; i++ {
		if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("file%d", i))); err != nil {
			t.Errorf("file%d missing: %v", i, err)
		}
	}
}

func TestRunRetriesExhaustToFailure(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "broken.bin")
	coordinator := NewCoordinator(Options{Retries: 3}, nil)
	result := coordinator.Run(context.Background(), []DownloadRequest{mustRequest(t, server.URL, dest)})

	if result.Failed != 1 || result.Succeeded != 0 {
		t.Fatalf("expected 1 failure, got %+v", result)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("expected 3 attempts with retries=3, got %d", n)
	}
	if result.Failures[0].Kind != KindHTTPStatus {
		t.Fatalf("expected http status failure, got %v", result.Failures[0].Kind)
	}
}

func TestRunExistingDestination(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "present.bin")
	if err := os.WriteFile(dest, []byte("present"), 0644); err != nil {
		t.Fatal(err)
	}

	coordinator := NewCoordinator(Options{}, nil)
	result := coordinator.Run(context.Background(), []DownloadRequest{mustRequest(t, server.URL, dest)})

	if result.Failed != 1 || result.Failures[0].Kind != KindFileExists {
		t.Fatalf("expected file-exists failure, got %+v", result)
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("expected zero network calls, got %d", n)
	}
	got, _ := os.ReadFile(dest)
	if string(got) != "present" {
		t.Fatal("destination content changed")
	}
}

func TestRunRejectsDuplicateDestinations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "same.bin")
	requests := []DownloadRequest{
		mustRequest(t, server.URL+"/a", dest),
		mustRequest(t, server.URL+"/b", dest),
	}

	coordinator := NewCoordinator(Options{}, nil)
	result := coordinator.Run(context.Background(), requests)

	if result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("expected one success and one rejected duplicate, got %+v", result)
	}
	if result.Failures[0].Kind != KindFileExists {
		t.Fatalf("expected file-exists kind for duplicate, got %v", result.Failures[0].Kind)
	}
}

func TestRunSiblingFailureDoesNotCancelBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	dir := t.TempDir()
	requests := []DownloadRequest{
		mustRequest(t, server.URL+"/bad", filepath.Join(dir, "bad.bin")),
		mustRequest(t, server.URL+"/good", filepath.Join(dir, "good.bin")),
	}

	coordinator := NewCoordinator(Options{Parallelism: 1, Retries: 1}, nil)
	result := coordinator.Run(context.Background(), requests)

	if result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("expected batch to drain with 1 success and 1 failure, got %+v", result)
	}
}

func TestRunCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("partial"))
		flusher.Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	dest := filepath.Join(t.TempDir(), "cancelled.bin")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	coordinator := NewCoordinator(Options{Retries: 1}, nil)
	result := coordinator.Run(ctx, []DownloadRequest{mustRequest(t, server.URL, dest)})

	if result.Failed != 1 {
		t.Fatalf("expected cancelled task recorded as failed, got %+v", result)
	}
	if result.Failures[0].Kind != KindCancelled {
		t.Fatalf("expected cancelled kind, got %v", result.Failures[0].Kind)
	}
}

func TestRunEmitsBatchEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	reporter := &recordingReporter{}
	dest := filepath.Join(t.TempDir(), "evt.bin")
	coordinator := NewCoordinator(Options{}, reporter)
	coordinator.Run(context.Background(), []DownloadRequest{mustRequest(t, server.URL, dest)})

	events := reporter.snapshot()
	if events[0].Name != EventBatchStart || events[0].BatchSize != 1 {
		t.Fatalf("expected batch_start first, got %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Name != EventBatchFinish || last.Result == nil || last.Result.Succeeded != 1 {
		t.Fatalf("expected batch_finish with result last, got %+v", last)
	}
}
