package engine

// Lifecycle event names. These are stable identifiers: external renderers
// key configured messages off them, so they must not change between
// releases.
const (
	EventRequestSent      = "request_sent"
	EventResponseReceived = "response_received"
	EventFileSizeKnown    = "file_size_known"
	EventFileSizeUnknown  = "file_size_unknown"
	EventFileExistsSkip   = "file_exists_skip"
	EventFileCreate       = "file_create"
	EventDownloadStart    = "download_start"
	EventDownloadProgress = "download_progress"
	EventDownloadRetry    = "download_retry"
	EventDownloadSuccess  = "download_success"
	EventDownloadError    = "download_error"
	EventBatchStart       = "batch_start"
	EventBatchFinish      = "batch_finish"
)

// ProgressEvent describes one state transition of a task, or a batch-level
// boundary. Events are values; nothing mutates them after emission.
//
// Task-level events carry TaskID, URL, Path and a state snapshot. Events
// from one task arrive in state-machine order; events from different tasks
// interleave freely. Batch-level events carry BatchSize (batch_start) or
// Result (batch_finish) and no task fields.
type ProgressEvent struct {
	Name      string
	TaskID    string
	URL       string
	Path      string
	State     TransferState
	Err       error
	BatchSize int
	Result    *BatchResult
}

// Reporter consumes engine events and renders them. Implementations must
// not block: the engine publishes synchronously from transfer goroutines.
type Reporter interface {
	Publish(ev ProgressEvent)
}

// NopReporter discards every event. Used in silent mode.
type NopReporter struct{}

func (NopReporter) Publish(ProgressEvent) {}
