// Package progress tracks a conversion page by page and pushes snapshots to
// whoever renders them.
package progress

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Status is the lifecycle state of a conversion.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusAborted    Status = "aborted"
)

// Terminal reports whether no further transitions are possible except Reset.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusAborted
}

// ErrTransition is returned for a state change the lifecycle does not allow.
var ErrTransition = errors.New("invalid progress transition")

// Snapshot is one progress update.
type Snapshot struct {
	ConversionID           string `json:"conversion_id"`
	CurrentPage            int    `json:"current_page"`
	TotalPages             int    `json:"total_pages"`
	Percentage             int    `json:"percentage"`
	EstimatedTimeRemaining int    `json:"estimated_time_remaining"` // seconds
	Status                 Status `json:"status"`
	Error                  string `json:"error,omitempty"`
}

// Sink receives every snapshot the tracker emits.
type Sink interface {
	Publish(Snapshot)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Snapshot)

func (f SinkFunc) Publish(s Snapshot) { f(s) }

// MultiSink fans a snapshot out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Publish(s Snapshot) {
	for _, sink := range m {
		sink.Publish(s)
	}
}

// Tracker owns the single live snapshot of a conversion. It is not safe for
// concurrent use; the conversion loop is its only writer.
type Tracker struct {
	sink  Sink
	now   func() time.Time
	start time.Time
	snap  Snapshot
}

// NewTracker creates an idle tracker. now defaults to time.Now.
func NewTracker(conversionID string, sink Sink, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	if sink == nil {
		sink = SinkFunc(func(Snapshot) {})
	}
	return &Tracker{
		sink: sink,
		now:  now,
		snap: Snapshot{ConversionID: conversionID, Status: StatusIdle},
	}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	return t.snap
}

// Start moves idle to processing and emits the first snapshot.
func (t *Tracker) Start(totalPages int) error {
	if t.snap.Status != StatusIdle {
		return fmt.Errorf("%w: start from %s", ErrTransition, t.snap.Status)
	}

	t.start = t.now()
	t.snap = Snapshot{
		ConversionID: t.snap.ConversionID,
		TotalPages:   totalPages,
		Status:       StatusProcessing,
	}
	t.emit()
	return nil
}

// SetTotal records the page count once the document is open. It is only
// valid before the first page completes.
func (t *Tracker) SetTotal(totalPages int) error {
	if t.snap.Status != StatusProcessing || t.snap.CurrentPage != 0 {
		return fmt.Errorf("%w: set total while %s at page %d", ErrTransition, t.snap.Status, t.snap.CurrentPage)
	}
	t.snap.TotalPages = totalPages
	t.emit()
	return nil
}

// PageDone records that page (one-based) has been assembled.
func (t *Tracker) PageDone(page int) (Snapshot, error) {
	if t.snap.Status != StatusProcessing {
		return t.snap, fmt.Errorf("%w: page done while %s", ErrTransition, t.snap.Status)
	}
	if page < t.snap.CurrentPage || page > t.snap.TotalPages {
		return t.snap, fmt.Errorf("%w: page %d after %d of %d", ErrTransition, page, t.snap.CurrentPage, t.snap.TotalPages)
	}

	elapsed := t.now().Sub(t.start)
	t.snap.CurrentPage = page
	t.snap.Percentage = Percentage(page, t.snap.TotalPages)
	t.snap.EstimatedTimeRemaining = EstimateRemaining(page, t.snap.TotalPages, elapsed)
	t.emit()

	return t.snap, nil
}

// Complete moves processing to completed.
func (t *Tracker) Complete() error {
	return t.finish(StatusCompleted, nil)
}

// Fail moves processing to error.
func (t *Tracker) Fail(cause error) error {
	return t.finish(StatusError, cause)
}

// Abort moves processing to aborted.
func (t *Tracker) Abort() error {
	return t.finish(StatusAborted, nil)
}

// Reset returns a finished tracker to idle so the conversion can be re-run.
func (t *Tracker) Reset() error {
	if t.snap.Status == StatusProcessing {
		return fmt.Errorf("%w: reset while processing", ErrTransition)
	}
	t.snap = Snapshot{ConversionID: t.snap.ConversionID, Status: StatusIdle}
	t.start = time.Time{}
	return nil
}

func (t *Tracker) finish(status Status, cause error) error {
	if t.snap.Status != StatusProcessing {
		return fmt.Errorf("%w: %s from %s", ErrTransition, status, t.snap.Status)
	}

	t.snap.Status = status
	t.snap.EstimatedTimeRemaining = 0
	if cause != nil {
		t.snap.Error = cause.Error()
	}
	t.emit()
	return nil
}

func (t *Tracker) emit() {
	t.sink.Publish(t.snap)
}

// Percentage is round(current/total*100). It stays below 100 until the
// final page so 100 always means done.
func Percentage(current, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(roundHalfUp(float64(current) / float64(total) * 100))
	if pct >= 100 && current < total {
		return 99
	}
	return pct
}

// EstimateRemaining projects the seconds left from the average time spent
// per completed page.
func EstimateRemaining(current, total int, elapsed time.Duration) int {
	if current <= 0 || current >= total {
		return 0
	}
	perPage := float64(elapsed.Milliseconds()) / float64(current)
	return int(roundHalfUp(float64(total-current) * perPage / 1000))
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
