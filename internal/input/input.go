// Package input defines the synthetic input adapter contract. All methods
// operate in absolute screen-pixel coordinates; the engine never passes model
// coordinates here.
package input

import (
	"context"
	"time"
)

// Button identifies a mouse button.
type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
)

// Input synthesizes mouse and keyboard events.
type Input interface {
	MoveMouse(x, y int) error
	Click(x, y int, button Button) error
	Drag(x1, y1, x2, y2 int) error
	TypeText(s string) error
}

// PollInterval is the fixed granularity of bounded waits. Long waits are
// split into ticks of this size so pause and cancel stay responsive.
const PollInterval = 100 * time.Millisecond

// WaitUntil polls predicate every PollInterval until it returns true, the
// total duration elapses, or ctx is done. Returns true only when the
// predicate succeeded.
func WaitUntil(ctx context.Context, total time.Duration, predicate func() bool) bool {
	deadline := time.Now().Add(total)
	for {
		if predicate() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(PollInterval):
		}
	}
}

// Sleep waits for the given duration in PollInterval increments, returning
// early (false) when ctx is done.
func Sleep(ctx context.Context, total time.Duration) bool {
	deadline := time.Now().Add(total)
	for time.Now().Before(deadline) {
		remaining := time.Until(deadline)
		step := PollInterval
		if remaining < step {
			step = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(step):
		}
	}
	return true
}
