package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const bufferSize = 64 * 1024

const tempDirName = ".dw-temp"

// task owns the full lifecycle of one download: request issuance, streaming
// to the destination, progress emission and the retry loop. Its state is
// mutated only by its own goroutine.
type task struct {
	req       DownloadRequest
	transport *Transport
	policy    Policy
	reporter  Reporter
	force     bool
	log       zerolog.Logger
	state     TransferState
}

type outcome struct {
	req   DownloadRequest
	kind  ErrorKind
	err   error
	bytes int64
}

func (t *task) emit(name string, err error) {
	t.reporter.Publish(ProgressEvent{
		Name:   name,
		TaskID: t.req.ID,
		URL:    t.req.URL,
		Path:   t.req.Destination,
		State:  t.state,
		Err:    err,
	})
}

func (t *task) fail(err error) outcome {
	t.state.Status = StatusFailed
	t.state.FailKind = KindOf(err)
	t.emit(EventDownloadError, err)
	t.log.Error().Err(err).Str("output", t.req.Destination).Msg("Download failed")
	return outcome{req: t.req, kind: t.state.FailKind, err: err}
}

// run drives the state machine to a terminal state. The destination check
// happens before any network call: an existing file without force fails the
// task on the spot.
func (t *task) run(ctx context.Context) outcome {
	if !t.force {
		if _, err := os.Stat(t.req.Destination); err == nil {
			ferr := &TransferError{
				Kind: KindFileExists,
				Err:  fmt.Errorf("destination already exists: %s", t.req.Destination),
			}
			t.emit(EventFileExistsSkip, ferr)
			return t.fail(ferr)
		}
	}
	for attempt := 1; ; attempt++ {
		t.state.Attempt = attempt
		t.state.Bytes = 0
		started := time.Now()
		err := t.attempt(ctx)
		if err == nil {
			t.state.Status = StatusSucceeded
			t.emit(EventDownloadSuccess, nil)
			t.log.Debug().Str("output", t.req.Destination).Int64("bytes", t.state.Bytes).Msg("Download completed successfully")
			return outcome{req: t.req, bytes: t.state.Bytes}
		}
		decision := t.policy.Decide(RetryContext{
			Attempt: attempt,
			Kind:    KindOf(err),
			Elapsed: time.Since(started),
		})
		if !decision.Retry {
			return t.fail(err)
		}
		t.state.Status = StatusRetrying
		t.emit(EventDownloadRetry, err)
		t.log.Warn().Err(err).Msgf("Retrying download for %s (attempt %d/%d)", t.req.Destination, attempt+1, t.policy.MaxRetries)
		select {
		case <-time.After(decision.Backoff):
		case <-ctx.Done():
			return t.fail(&TransferError{Kind: KindCancelled, Err: ctx.Err()})
		}
	}
}

// attempt performs one full connect-and-stream cycle. The temp file is
// created fresh each attempt, so a retry always starts from byte zero.
func (t *task) attempt(ctx context.Context) error {
	t.state.Status = StatusConnecting
	t.emit(EventRequestSent, nil)

	stream, err := t.transport.Open(ctx, t.req.URL)
	if err != nil {
		return err
	}
	defer stream.Close()
	t.emit(EventResponseReceived, nil)

	// Size classification is decided once, on the first response, and kept
	// on later attempts even if a retry's headers differ.
	if !t.state.SizeDecided {
		t.state.SizeDecided = true
		if size, known := stream.Size(); known {
			t.state.TotalBytes = size
			t.emit(EventFileSizeKnown, nil)
		} else {
			t.state.TotalBytes = -1
			t.emit(EventFileSizeUnknown, nil)
		}
	}

	outFile, tempPath, err := t.createTemp()
	if err != nil {
		return err
	}
	t.emit(EventFileCreate, nil)

	t.state.Status = StatusStreaming
	t.emit(EventDownloadStart, nil)

	buffer := make([]byte, bufferSize)
	for {
		select {
		case <-ctx.Done():
			outFile.Close()
			return &TransferError{Kind: KindCancelled, Err: ctx.Err()}
		default:
		}
		bytesRead, readErr := stream.Read(buffer)
		if bytesRead > 0 {
			if _, writeErr := outFile.Write(buffer[:bytesRead]); writeErr != nil {
				outFile.Close()
				return &TransferError{Kind: KindFilesystemWrite, Err: writeErr}
			}
			t.state.Bytes += int64(bytesRead)
			t.emit(EventDownloadProgress, nil)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			outFile.Close()
			return readErr
		}
	}
	if err := outFile.Close(); err != nil {
		return &TransferError{Kind: KindFilesystemWrite, Err: err}
	}
	if err := os.Rename(tempPath, t.req.Destination); err != nil {
		return &TransferError{Kind: KindFilesystemWrite, Err: fmt.Errorf("error finalizing output file: %w", err)}
	}
	return nil
}

func (t *task) createTemp() (*os.File, string, error) {
	outputDir := filepath.Dir(t.req.Destination)
	tempDir := filepath.Join(outputDir, tempDirName)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, "", &TransferError{Kind: KindFilesystemWrite, Err: err}
	}
	tempPath := filepath.Join(tempDir, filepath.Base(t.req.Destination)+".part")
	outFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, "", &TransferError{Kind: KindFilesystemWrite, Err: err}
	}
	return outFile, tempPath, nil
}

// CleanTemp removes the temp directory used for a destination's partial
// files. The coordinator calls it once the batch drains.
func CleanTemp(destination string) error {
	return os.RemoveAll(filepath.Join(filepath.Dir(destination), tempDirName))
}
