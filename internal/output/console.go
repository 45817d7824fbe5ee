package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/dwcli/dw/internal/config"
	"github.com/dwcli/dw/internal/engine"
)

type transferRow struct {
	name       string
	state      engine.TransferState
	err        error
	startTime  time.Time
	lastTime   time.Time
	lastBytes  int64
	speed      float64 // MB/s
}

// ConsoleReporter renders engine events as a live multi-line display: a
// determinate bar with percent, speed and ETA when the size is known, an
// indefinite spinner otherwise. Configured message hooks print above the
// live region.
type ConsoleReporter struct {
	mutex    sync.Mutex
	rows     map[string]*transferRow
	order    []string
	numLines int
	frame    int
	doneCh   chan struct{}
	wg       sync.WaitGroup

	maxName      int
	barChars     string
	spinnerChars []rune
	messages     config.Output
}

func NewConsoleReporter(progress config.Progress, messages config.Output) *ConsoleReporter {
	spinner := []rune(progress.SpinnerChars)
	if len(spinner) == 0 {
		spinner = []rune("⠁⠂⠄⡀⢀⠠⠐⠈")
	}
	maxName := progress.MaxDisplayedFilename
	if maxName <= 0 {
		maxName = config.DefaultMaxDisplayedName
	}
	return &ConsoleReporter{
		rows:         make(map[string]*transferRow),
		doneCh:       make(chan struct{}),
		maxName:      maxName,
		barChars:     progress.ProgressBarChars,
		spinnerChars: spinner,
		messages:     messages,
	}
}

// StartDisplay begins the render loop. Call StopDisplay once the batch has
// finished to print the final frame.
func (r *ConsoleReporter) StartDisplay() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(150 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.mutex.Lock()
				r.redraw()
				r.mutex.Unlock()
			case <-r.doneCh:
				return
			}
		}
	}()
}

func (r *ConsoleReporter) StopDisplay() {
	close(r.doneCh)
	r.wg.Wait()
	r.mutex.Lock()
	r.redraw()
	r.mutex.Unlock()
}

// Publish consumes one engine event. Events from one task arrive in order;
// events from different tasks interleave, which is fine since every task
// owns its own row.
func (r *ConsoleReporter) Publish(ev engine.ProgressEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if msg := r.messages.MessageFor(ev.Name); msg != "" {
		r.println(msg)
	}
	switch ev.Name {
	case engine.EventBatchStart, engine.EventBatchFinish:
		return
	}
	row, exists := r.rows[ev.TaskID]
	if !exists {
		row = &transferRow{
			name:      shortenFilename(ev.Path, r.maxName),
			startTime: time.Now(),
			lastTime:  time.Now(),
		}
		r.rows[ev.TaskID] = row
		r.order = append(r.order, ev.TaskID)
	}
	row.state = ev.State
	if ev.Err != nil {
		row.err = ev.Err
	}
}

// println prints a line above the live region; the next tick redraws the
// rows below it.
func (r *ConsoleReporter) println(text string) {
	if r.numLines != 0 {
		fmt.Printf("\033[%dA\033[J", r.numLines)
		r.numLines = 0
	}
	fmt.Println(text)
}

// redraw repaints every row in admission order. Caller holds the mutex.
func (r *ConsoleReporter) redraw() {
	if r.numLines != 0 {
		fmt.Printf("\033[%dA\033[J", r.numLines)
	}
	r.frame++
	for _, id := range r.order {
		row := r.rows[id]
		fmt.Println(r.renderRow(row))
	}
	r.numLines = len(r.order)
}

func (r *ConsoleReporter) renderRow(row *transferRow) string {
	state := row.state
	switch state.Status {
	case engine.StatusPending:
		return pendingStyle.Render(fmt.Sprintf("%s %s: waiting", StyleSymbols["pending"], row.name))
	case engine.StatusConnecting:
		return pendingStyle.Render(fmt.Sprintf("%s %s: connecting", r.spinnerFrame(), row.name))
	case engine.StatusRetrying:
		return warningStyle.Render(fmt.Sprintf("%s %s: retrying (attempt %d)", StyleSymbols["warning"], row.name, state.Attempt+1))
	case engine.StatusSucceeded:
		return successStyle.Render(fmt.Sprintf("%s %s: done, %s", StyleSymbols["pass"], row.name, FormatBytes(uint64(state.Bytes))))
	case engine.StatusFailed:
		reason := state.FailKind.String()
		if row.err != nil {
			reason = row.err.Error()
		}
		return errorStyle.Render(fmt.Sprintf("%s %s: %s", StyleSymbols["fail"], row.name, reason))
	}

	// Streaming: speed is sampled against the previous frame.
	now := time.Now()
	timeDiff := now.Sub(row.lastTime).Seconds()
	if timeDiff > 0.5 {
		row.speed = float64(state.Bytes-row.lastBytes) / timeDiff / 1024 / 1024
		row.lastTime = now
		row.lastBytes = state.Bytes
	}
	if state.SizeKnown() {
		barWidth := 30
		if w := getTerminalWidth(); w < 80 {
			barWidth = max(10, w/3)
		}
		bar := renderBar(state.Bytes, state.TotalBytes, barWidth, r.barChars)
		return fmt.Sprintf("%s %s %s/%s %.2f MB/s ETA: %s",
			infoStyle.Render(row.name), bar,
			FormatBytes(uint64(state.Bytes)), FormatBytes(uint64(state.TotalBytes)),
			row.speed, r.eta(row))
	}
	return fmt.Sprintf("%s %s %s %.2f MB/s",
		r.spinnerFrame(), infoStyle.Render(row.name),
		FormatBytes(uint64(state.Bytes)), row.speed)
}

func (r *ConsoleReporter) spinnerFrame() string {
	return string(r.spinnerChars[r.frame%len(r.spinnerChars)])
}

func (r *ConsoleReporter) eta(row *transferRow) string {
	if row.speed <= 0 || !row.state.SizeKnown() {
		return "calculating..."
	}
	etaSeconds := int64(float64(row.state.TotalBytes-row.state.Bytes) / (row.speed * 1024 * 1024))
	if etaSeconds < 60 {
		return fmt.Sprintf("%ds", etaSeconds)
	} else if etaSeconds < 3600 {
		return fmt.Sprintf("%dm %ds", etaSeconds/60, etaSeconds%60)
	}
	return fmt.Sprintf("%dh %dm", etaSeconds/3600, (etaSeconds%3600)/60)
}

// ShowSummary prints the batch totals after the live display has stopped.
func (r *ConsoleReporter) ShowSummary(result *engine.BatchResult) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	elapsed := result.Elapsed.Seconds()
	overallSpeed := 0.0
	if elapsed > 0 {
		overallSpeed = float64(result.TotalBytes) / elapsed / 1024 / 1024
	}
	fmt.Printf("Total Data: %s, Overall Speed: %.2f MB/s, Time Elapsed: %.2fs\n",
		FormatBytes(uint64(result.TotalBytes)), overallSpeed, elapsed)
}
