package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies transfer failures. Connect, timeout, HTTP status and
// interrupted-stream failures are transient and retried; filesystem and
// file-exists failures terminate the task on the spot.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindConnect
	KindTimeout
	KindHTTPStatus
	KindStreamInterrupted
	KindFilesystemWrite
	KindFileExists
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConnect:
		return "connect error"
	case KindTimeout:
		return "timeout"
	case KindHTTPStatus:
		return "http status error"
	case KindStreamInterrupted:
		return "stream interrupted"
	case KindFilesystemWrite:
		return "filesystem write error"
	case KindFileExists:
		return "file exists"
	case KindCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Transient reports whether failures of this kind are worth another attempt.
func (k ErrorKind) Transient() bool {
	switch k {
	case KindConnect, KindTimeout, KindHTTPStatus, KindStreamInterrupted:
		return true
	}
	return false
}

// TransferError carries the classified kind alongside the underlying error.
// Code is set when Kind is KindHTTPStatus.
type TransferError struct {
	Kind ErrorKind
	Code int
	Err  error
}

func (e *TransferError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// KindOf extracts the classification from an error chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindConnect
}

// classifyRequestError maps a failed http.Client.Do into the taxonomy.
func classifyRequestError(err error) *TransferError {
	if errors.Is(err, context.Canceled) {
		return &TransferError{Kind: KindCancelled, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransferError{Kind: KindTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TransferError{Kind: KindTimeout, Err: err}
	}
	return &TransferError{Kind: KindConnect, Err: err}
}

// classifyReadError maps a mid-stream body read failure. EOF is handled by
// the caller and never reaches here.
func classifyReadError(err error) *TransferError {
	if errors.Is(err, context.Canceled) {
		return &TransferError{Kind: KindCancelled, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransferError{Kind: KindTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TransferError{Kind: KindTimeout, Err: err}
	}
	return &TransferError{Kind: KindStreamInterrupted, Err: err}
}
