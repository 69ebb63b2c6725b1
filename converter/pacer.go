package converter

import (
	"context"
	"time"
)

// Pacer is called after each page. It exists to smooth progress output and
// has no effect on the converted document.
type Pacer interface {
	Pace(ctx context.Context) error
}

// NoPacer does not wait.
type NoPacer struct{}

func (NoPacer) Pace(context.Context) error { return nil }

// FixedPacer waits Delay after every page, or until ctx is done.
type FixedPacer struct {
	Delay time.Duration
}

// DefaultPacing is the delay the interactive CLI uses between pages.
const DefaultPacing = 100 * time.Millisecond

func (p FixedPacer) Pace(ctx context.Context) error {
	if p.Delay <= 0 {
		return nil
	}

	timer := time.NewTimer(p.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
