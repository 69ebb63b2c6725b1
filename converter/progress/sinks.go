package progress

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cheggaaa/pb/v3"
	"github.com/sirupsen/logrus"
)

// FormatETA renders seconds as "42s" or "3m 5s".
func FormatETA(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// RemainingLabel is the text shown next to the bar.
func RemainingLabel(s Snapshot) string {
	if s.EstimatedTimeRemaining > 0 {
		return FormatETA(s.EstimatedTimeRemaining) + " remaining"
	}
	return "calculating..."
}

const barTemplate = `{{ bar . " " "━" "━" " " " "}} {{string . "pct"}} {{string . "eta"}}`

// BarSink draws snapshots as a terminal progress bar.
type BarSink struct {
	out io.Writer
	bar *pb.ProgressBar
}

// NewBarSink creates a bar writing to out.
func NewBarSink(out io.Writer) *BarSink {
	return &BarSink{out: out}
}

func (s *BarSink) Publish(snap Snapshot) {
	if snap.Status == StatusProcessing && s.bar == nil {
		s.bar = pb.New(snap.TotalPages).
			SetTemplateString(barTemplate).
			SetWriter(s.out).
			Start()
	}
	if s.bar == nil {
		return
	}

	s.bar.SetTotal(int64(snap.TotalPages))
	s.bar.SetCurrent(int64(snap.CurrentPage))
	s.bar.Set("pct", fmt.Sprintf("%d%%", snap.Percentage))
	if snap.Status == StatusProcessing {
		s.bar.Set("eta", RemainingLabel(snap))
	} else {
		s.bar.Set("eta", string(snap.Status))
	}

	if snap.Status.Terminal() {
		s.bar.Finish()
		s.bar = nil
	}
}

// Publisher is the part of a NATS connection the NATS sink uses.
type Publisher interface {
	Publish(subject string, data []byte) error
	Flush() error
}

// NATSSink publishes every snapshot as JSON on a subject.
type NATSSink struct {
	conn    Publisher
	subject string
	log     *logrus.Entry
}

// NewNATSSink creates a sink publishing on subject through conn.
func NewNATSSink(conn Publisher, subject string, log *logrus.Entry) *NATSSink {
	return &NATSSink{conn: conn, subject: subject, log: log}
}

// Publish never fails the conversion; delivery problems are logged.
func (s *NATSSink) Publish(snap Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		s.log.WithError(err).Warn("Failed to encode progress snapshot")
		return
	}

	if err := s.conn.Publish(s.subject, data); err != nil {
		s.log.WithError(err).WithField("subject", s.subject).Warn("Failed to publish progress snapshot")
		return
	}

	if snap.Status.Terminal() {
		if err := s.conn.Flush(); err != nil {
			s.log.WithError(err).Warn("Failed to flush progress snapshots")
		}
	}
}
